package status

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/coolbeans/dopa/pkg/dopaerr"
)

// recordingReporter collects diagnostics for assertions.
type recordingReporter struct {
	messages []string
}

func (reporter *recordingReporter) Warn(msg string, args ...any) {
	reporter.messages = append(reporter.messages, msg+" "+fmt.Sprint(args...))
}

func TestValidate_AllValid(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"single", []string{"EN"}, []string{"EN"}},
		{"pair", []string{"EN", "VU"}, []string{"EN", "VU"}},
		{"duplicates kept", []string{"CR", "CR", "DD"}, []string{"CR", "CR", "DD"}},
		{"every code", []string{"CR", "EN", "VU", "NT", "LC", "EX", "EW", "DD"}, []string{"CR", "EN", "VU", "NT", "LC", "EX", "EW", "DD"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reporter := &recordingReporter{}
			got, err := Validate(tc.input, reporter)
			if err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
			if len(reporter.messages) != 0 {
				t.Errorf("expected no diagnostics, got %v", reporter.messages)
			}
		})
	}
}

func TestValidate_PartiallyInvalid(t *testing.T) {
	reporter := &recordingReporter{}
	got, err := Validate([]string{"EN", "BB"}, reporter)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"EN"}) {
		t.Errorf("got %v, want [EN]", got)
	}
	if len(reporter.messages) != 1 {
		t.Fatalf("expected exactly 1 diagnostic, got %d: %v", len(reporter.messages), reporter.messages)
	}
	if !strings.Contains(reporter.messages[0], `"BB"`) {
		t.Errorf("diagnostic should name BB, got %q", reporter.messages[0])
	}
}

func TestValidate_OrderPreservedAroundInvalid(t *testing.T) {
	got, err := Validate([]string{"LC", "xx", "EN", "en", "LC"}, nil)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"LC", "EN", "LC"}) {
		t.Errorf("got %v, want [LC EN LC]", got)
	}
}

func TestValidate_SingleInvalid(t *testing.T) {
	_, err := Validate([]string{"ZZ"}, nil)
	var validationError *dopaerr.ValidationError
	if !errors.As(err, &validationError) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.HasPrefix(validationError.Message, `status code "ZZ" is not`) {
		t.Errorf("expected single-input message, got %q", validationError.Message)
	}
}

func TestValidate_MultipleInvalid(t *testing.T) {
	reporter := &recordingReporter{}
	_, err := Validate([]string{"ZZ", "YY"}, reporter)
	var validationError *dopaerr.ValidationError
	if !errors.As(err, &validationError) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.HasPrefix(validationError.Message, "none of the 2 status codes") {
		t.Errorf("expected multi-input message, got %q", validationError.Message)
	}
	if !reflect.DeepEqual(validationError.Values, []string{"ZZ", "YY"}) {
		t.Errorf("Values: got %v, want [ZZ YY]", validationError.Values)
	}
	if len(reporter.messages) != 2 {
		t.Errorf("expected 2 diagnostics, got %d", len(reporter.messages))
	}
}

func TestValidate_CaseSensitive(t *testing.T) {
	if _, err := Validate([]string{"en"}, nil); err == nil {
		t.Error("lowercase code should be rejected")
	}
}

func TestValidate_TypedNilReporter(t *testing.T) {
	reporters := map[string]Reporter{
		"slog":      (*slog.Logger)(nil),
		"recording": (*recordingReporter)(nil),
	}
	for name, reporter := range reporters {
		t.Run(name, func(t *testing.T) {
			got, err := Validate([]string{"EN", "BB"}, reporter)
			if err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if !reflect.DeepEqual(got, []string{"EN"}) {
				t.Errorf("got %v, want [EN]", got)
			}
		})
	}
}

func TestValidate_Empty(t *testing.T) {
	_, err := Validate(nil, nil)
	var validationError *dopaerr.ValidationError
	if !errors.As(err, &validationError) {
		t.Fatalf("expected ValidationError for empty input, got %v", err)
	}
}

func TestCode_Description(t *testing.T) {
	if Endangered.Description() != "Endangered" {
		t.Errorf("got %q", Endangered.Description())
	}
	if Code("ZZ").Description() != "" {
		t.Error("unknown code should have empty description")
	}
	if len(AllCodes) != 8 {
		t.Errorf("AllCodes: got %d codes, want 8", len(AllCodes))
	}
}
