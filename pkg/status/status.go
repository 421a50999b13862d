// Package status validates IUCN Red List status codes before they are sent
// to the species endpoints.
package status

import (
	"fmt"
	"reflect"

	"github.com/coolbeans/dopa/pkg/dopaerr"
)

// Code is an IUCN Red List conservation status token.
type Code string

const (
	CriticallyEndangered Code = "CR"
	Endangered           Code = "EN"
	Vulnerable           Code = "VU"
	NearThreatened       Code = "NT"
	LeastConcern         Code = "LC"
	Extinct              Code = "EX"
	ExtinctInTheWild     Code = "EW"
	DataDeficient        Code = "DD"
)

// AllCodes lists every valid status code in Red List order.
var AllCodes = []Code{
	CriticallyEndangered,
	Endangered,
	Vulnerable,
	NearThreatened,
	LeastConcern,
	Extinct,
	ExtinctInTheWild,
	DataDeficient,
}

var descriptions = map[Code]string{
	CriticallyEndangered: "Critically Endangered",
	Endangered:           "Endangered",
	Vulnerable:           "Vulnerable",
	NearThreatened:       "Near Threatened",
	LeastConcern:         "Least Concern",
	Extinct:              "Extinct",
	ExtinctInTheWild:     "Extinct in the Wild",
	DataDeficient:        "Data Deficient",
}

// String returns the token.
func (code Code) String() string {
	return string(code)
}

// Description returns the long form of the code, or "" for unknown codes.
func (code Code) Description() string {
	return descriptions[code]
}

// IsValid reports whether token is one of the eight codes. Matching is exact
// and case-sensitive.
func IsValid(token string) bool {
	_, ok := descriptions[Code(token)]
	return ok
}

// Reporter receives one diagnostic per rejected token. *slog.Logger and
// *logging.Logger satisfy it.
type Reporter interface {
	Warn(msg string, args ...any)
}

// Validate filters statuses down to the valid codes, keeping their order and
// duplicates. Each invalid token is reported to reporter and dropped. A nil
// reporter, including a typed nil pointer, silences diagnostics. If no valid
// token remains a *dopaerr.ValidationError is returned.
func Validate(statuses []string, reporter Reporter) ([]string, error) {
	valid := make([]string, 0, len(statuses))
	invalid := make([]string, 0)

	for _, token := range statuses {
		if IsValid(token) {
			valid = append(valid, token)
			continue
		}
		invalid = append(invalid, token)
		if !isNilReporter(reporter) {
			reporter.Warn(fmt.Sprintf("ignoring invalid IUCN status code %q", token), "status", token)
		}
	}

	if len(valid) > 0 {
		return valid, nil
	}

	if len(statuses) == 1 {
		return nil, dopaerr.NewValidationError("status", invalid,
			"status code %q is not a valid IUCN status code (valid: %v)", statuses[0], AllCodes)
	}
	return nil, dopaerr.NewValidationError("status", invalid,
		"none of the %d status codes %q are valid IUCN status codes (valid: %v)", len(statuses), statuses, AllCodes)
}

func isNilReporter(reporter Reporter) bool {
	if reporter == nil {
		return true
	}
	value := reflect.ValueOf(reporter)
	return value.Kind() == reflect.Pointer && value.IsNil()
}
