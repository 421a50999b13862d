package client

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDiskCache_SetGet(t *testing.T) {
	diskCache, err := NewDiskCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}

	url := "http://dopa.test/get_country_list"
	if _, found := diskCache.Get(url); found {
		t.Error("empty cache should miss")
	}

	body := []byte(`{"records":[{"country_id":246}]}`)
	if err := diskCache.Set(url, body); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	cached, found := diskCache.Get(url)
	if !found {
		t.Fatal("expected cache hit")
	}
	if string(cached) != string(body) {
		t.Errorf("body: got %s, want %s", cached, body)
	}

	if _, found := diskCache.Get(url + "?c_un_m49=246"); found {
		t.Error("different URL should miss")
	}
}

func TestDiskCache_Expiry(t *testing.T) {
	cacheDir := t.TempDir()
	diskCache, err := NewDiskCache(cacheDir, time.Minute)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}

	current := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	diskCache.now = func() time.Time { return current }

	url := "http://dopa.test/get_country_pa_stats?c_un_m49=246"
	if err := diskCache.Set(url, []byte(`[]`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	current = current.Add(2 * time.Minute)
	if _, found := diskCache.Get(url); found {
		t.Error("expired entry should miss")
	}
	if _, err := os.Stat(diskCache.pathFor(url)); !os.IsNotExist(err) {
		t.Error("expired entry file should be removed")
	}
}

func TestDiskCache_RejectsNonJSON(t *testing.T) {
	diskCache, err := NewDiskCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	if err := diskCache.Set("http://dopa.test/x", []byte("<html>")); err == nil {
		t.Error("expected error for non-JSON body")
	}
}

func TestDiskCache_CorruptEntry(t *testing.T) {
	diskCache, err := NewDiskCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	url := "http://dopa.test/get_country_list"
	if err := os.WriteFile(diskCache.pathFor(url), []byte("{truncated"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, found := diskCache.Get(url); found {
		t.Error("corrupt entry should miss")
	}
}

func TestDiskCache_Clear(t *testing.T) {
	cacheDir := t.TempDir()
	diskCache, err := NewDiskCache(cacheDir, time.Hour)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}

	for _, url := range []string{"http://dopa.test/a", "http://dopa.test/b"} {
		if err := diskCache.Set(url, []byte(`[]`)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	unrelated := filepath.Join(cacheDir, "README")
	if err := os.WriteFile(unrelated, []byte("keep"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	removed, err := diskCache.Clear()
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed: got %d, want 2", removed)
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Error("Clear should leave unrelated files alone")
	}
}

func TestDiskCache_ClearKeepsForeignFiles(t *testing.T) {
	cacheDir := t.TempDir()
	diskCache, err := NewDiskCache(cacheDir, time.Hour)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}

	if err := diskCache.Set("http://dopa.test/a", []byte(`[]`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	leftover := filepath.Join(cacheDir, "entry-12345.tmp")
	foreign := []string{"package.json", "notes.tmp", "ABCDEF.json", "settings.json"}
	for _, name := range append(foreign, "entry-12345.tmp") {
		if err := os.WriteFile(filepath.Join(cacheDir, name), []byte("{}"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	removed, err := diskCache.Clear()
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed: got %d, want 2", removed)
	}
	for _, name := range foreign {
		if _, err := os.Stat(filepath.Join(cacheDir, name)); err != nil {
			t.Errorf("%s should survive Clear: %v", name, err)
		}
	}
	if _, err := os.Stat(leftover); !os.IsNotExist(err) {
		t.Error("leftover temp entry should be removed")
	}
}

func TestIsCacheFile(t *testing.T) {
	diskCache := &DiskCache{}
	tests := []struct {
		name string
		want bool
	}{
		{diskCache.keyFor("http://dopa.test/a") + ".json", true},
		{"entry-998877.tmp", true},
		{"package.json", false},
		{strings.Repeat("A", 64) + ".json", false},
		{strings.Repeat("a", 63) + ".json", false},
		{"download.tmp", false},
	}
	for _, tc := range tests {
		if got := isCacheFile(tc.name); got != tc.want {
			t.Errorf("isCacheFile(%q): got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNewDiskCache_CreatesDirectory(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "nested", "cache")
	diskCache, err := NewDiskCache(cacheDir, time.Hour)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	if diskCache.Dir() != cacheDir {
		t.Errorf("Dir: got %q, want %q", diskCache.Dir(), cacheDir)
	}
	if info, err := os.Stat(cacheDir); err != nil || !info.IsDir() {
		t.Errorf("cache directory not created: %v", err)
	}
}
