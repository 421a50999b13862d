package country

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/coolbeans/dopa/pkg/dopaerr"
)

func TestResolve_NameRoundTrip(t *testing.T) {
	resolver := NewResolver(nil)

	code, err := resolver.Resolve("Finland", false)
	if err != nil {
		t.Fatalf("Resolve(Finland) failed: %v", err)
	}
	if code != 246 {
		t.Errorf("Resolve(Finland): got %v, want 246", code)
	}

	name, err := resolver.Resolve(code, true)
	if err != nil {
		t.Fatalf("Resolve(%v, true) failed: %v", code, err)
	}
	canonical, err := resolver.Resolve("Finland", true)
	if err != nil {
		t.Fatalf("Resolve(Finland, true) failed: %v", err)
	}
	if name != canonical || name != "Finland" {
		t.Errorf("round trip: got %v and %v, want Finland", name, canonical)
	}
}

func TestResolve_Numeric(t *testing.T) {
	resolver := NewResolver(nil)

	tests := []struct {
		name  string
		input any
	}{
		{"int", 156},
		{"int64", int64(156)},
		{"float64", 156.0},
		{"numeric string", "156"},
		{"padded string", " 156 "},
		{"json number", json.Number("156")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, err := resolver.Resolve(tc.input, false)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if code != 156 {
				t.Errorf("got %v (%T), want 156", code, code)
			}
			name, err := resolver.Resolve(tc.input, true)
			if err != nil {
				t.Fatalf("Resolve full name failed: %v", err)
			}
			if name != "China" {
				t.Errorf("got %v, want China", name)
			}
		})
	}
}

func TestResolve_NameNormalization(t *testing.T) {
	resolver := NewResolver(nil)

	tests := []struct {
		input string
		want  string
		code  int
	}{
		{"finland", "Finland", 246},
		{"  FINLAND ", "Finland", 246},
		{"Cote d'Ivoire", "Côte d’Ivoire", 384},
		{"ivory coast", "Côte d’Ivoire", 384},
		{"Bosnia and Herzegovina", "Bosnia & Herzegovina", 70},
		{"USA", "United States", 840},
		{"Russian Federation", "Russia", 643},
		{"Aland Islands", "Åland Islands", 248},
		{"Guinea-Bissau", "Guinea-Bissau", 624},
		{"guinea bissau", "Guinea-Bissau", 624},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			name, err := resolver.ResolveName(tc.input)
			if err != nil {
				t.Fatalf("ResolveName failed: %v", err)
			}
			if name != tc.want {
				t.Errorf("ResolveName: got %q, want %q", name, tc.want)
			}
			code, err := resolver.ResolveCode(tc.input)
			if err != nil {
				t.Fatalf("ResolveCode failed: %v", err)
			}
			if code != tc.code {
				t.Errorf("ResolveCode: got %d, want %d", code, tc.code)
			}
		})
	}
}

func TestResolve_InvalidCode(t *testing.T) {
	resolver := NewResolver(nil)

	for _, input := range []any{999999, "999999", 156.5, -4} {
		_, err := resolver.Resolve(input, false)
		var resolutionError *dopaerr.ResolutionError
		if !errors.As(err, &resolutionError) {
			t.Fatalf("Resolve(%v): expected ResolutionError, got %v", input, err)
		}
		if !resolutionError.Numeric {
			t.Errorf("Resolve(%v): expected numeric resolution error", input)
		}
	}

	_, err := resolver.Resolve(999999, true)
	if err == nil || !strings.Contains(err.Error(), "999999") {
		t.Errorf("error should name the code, got %v", err)
	}
}

func TestResolve_UnknownName(t *testing.T) {
	_, err := NewResolver(nil).Resolve("Atlantis", false)
	var resolutionError *dopaerr.ResolutionError
	if !errors.As(err, &resolutionError) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
	if resolutionError.Input != "Atlantis" || resolutionError.Numeric {
		t.Errorf("unexpected error fields: %+v", resolutionError)
	}
}

func TestResolve_WrongType(t *testing.T) {
	resolver := NewResolver(nil)

	for _, input := range []any{nil, true, []string{"Finland"}, struct{}{}} {
		_, err := resolver.Resolve(input, false)
		var typeError *dopaerr.TypeError
		if !errors.As(err, &typeError) {
			t.Fatalf("Resolve(%v): expected TypeError, got %v", input, err)
		}
		var resolutionError *dopaerr.ResolutionError
		if errors.As(err, &resolutionError) {
			t.Errorf("Resolve(%v): must not be a resolution error", input)
		}
	}
}

func TestResolve_Deterministic(t *testing.T) {
	resolver := NewResolver(nil)
	first, _ := resolver.Resolve("Viet Nam", true)
	for i := 0; i < 5; i++ {
		again, _ := resolver.Resolve("Viet Nam", true)
		if again != first {
			t.Fatalf("iteration %d: got %v, want %v", i, again, first)
		}
	}
}

// stubReference is a minimal Reference for exercising the resolver contract.
type stubReference struct{}

func (stubReference) CodeForName(name string) (int, string, bool) {
	if name == "Testland" {
		return 1, "Republic of Testland", true
	}
	return 0, "", false
}

func (stubReference) NameForCode(code int) (string, bool) {
	if code == 1 {
		return "Republic of Testland", true
	}
	return "", false
}

func (stubReference) IsValidCode(code int) bool { return code == 1 }

func TestResolver_CustomReference(t *testing.T) {
	resolver := NewResolver(stubReference{})

	name, err := resolver.Resolve("Testland", true)
	if err != nil || name != "Republic of Testland" {
		t.Errorf("got %v, %v", name, err)
	}
	if _, err := resolver.Resolve(246, false); err == nil {
		t.Error("246 is not in the stub reference")
	}
}

func TestParseIdentifier(t *testing.T) {
	identifier, err := ParseIdentifier("004")
	if err != nil {
		t.Fatalf("ParseIdentifier failed: %v", err)
	}
	if identifier.Kind != KindCode || identifier.Code != 4 {
		t.Errorf("got %+v, want code 4", identifier)
	}

	identifier, _ = ParseIdentifier("Finland")
	if identifier.Kind != KindName || identifier.Name != "Finland" {
		t.Errorf("got %+v, want name Finland", identifier)
	}

	identifier, _ = ParseIdentifier("")
	if identifier.Kind != KindName {
		t.Errorf("empty string should stay a name, got %+v", identifier)
	}
}
