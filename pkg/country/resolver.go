// Package country resolves user-supplied country identifiers (names or
// ISO 3166-1 numeric codes) into the numeric codes the DOPA service expects.
package country

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/coolbeans/dopa/pkg/dopaerr"
)

// acceptedForms is reported by TypeError.
var acceptedForms = []string{"a country name (string)", "an ISO 3166-1 numeric code (number)"}

// IdentifierKind discriminates Identifier.
type IdentifierKind int

const (
	// KindName is a free-text country name.
	KindName IdentifierKind = iota
	// KindCode is an ISO 3166-1 numeric code.
	KindCode
)

// Identifier is a parsed country argument: either a name or a numeric code.
type Identifier struct {
	Kind IdentifierKind

	// Name is set for KindName.
	Name string

	// Code is set for KindCode. Codes that are not integral are kept in Raw
	// and fail resolution.
	Code int

	// Raw is the caller's input rendered as text, used in error messages.
	Raw string

	integral bool
}

// ParseIdentifier classifies a raw country argument. Strings that parse
// cleanly as numbers become codes. Values that are neither strings nor
// numbers yield a *dopaerr.TypeError.
func ParseIdentifier(country any) (Identifier, error) {
	switch typed := country.(type) {
	case string:
		trimmed := strings.TrimSpace(typed)
		if number, err := strconv.ParseFloat(trimmed, 64); err == nil && trimmed != "" {
			return numericIdentifier(number, typed), nil
		}
		return Identifier{Kind: KindName, Name: typed, Raw: typed}, nil
	case json.Number:
		number, err := typed.Float64()
		if err != nil {
			return Identifier{Kind: KindName, Name: typed.String(), Raw: typed.String()}, nil
		}
		return numericIdentifier(number, typed.String()), nil
	case int:
		return numericIdentifier(float64(typed), strconv.Itoa(typed)), nil
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		number, _ := strconv.ParseFloat(fmt.Sprint(typed), 64)
		return numericIdentifier(number, fmt.Sprint(typed)), nil
	case float32:
		return numericIdentifier(float64(typed), strconv.FormatFloat(float64(typed), 'f', -1, 32)), nil
	case float64:
		return numericIdentifier(typed, strconv.FormatFloat(typed, 'f', -1, 64)), nil
	default:
		return Identifier{}, &dopaerr.TypeError{Got: fmt.Sprintf("%T", country), Accepted: acceptedForms}
	}
}

func numericIdentifier(number float64, raw string) Identifier {
	identifier := Identifier{Kind: KindCode, Raw: raw}
	if number == math.Trunc(number) && !math.IsInf(number, 0) && math.Abs(number) < math.MaxInt32 {
		identifier.Code = int(number)
		identifier.integral = true
	}
	return identifier
}

// Resolver resolves identifiers against a Reference.
type Resolver struct {
	reference Reference
}

// NewResolver creates a resolver over reference. A nil reference uses the
// embedded ISO 3166-1 table.
func NewResolver(reference Reference) *Resolver {
	if reference == nil {
		reference = Default()
	}
	return &Resolver{reference: reference}
}

// Resolve mirrors the dynamic contract of the service wrappers: it returns an
// int code, or the canonical name (string) when fullName is true.
func (resolver *Resolver) Resolve(country any, fullName bool) (any, error) {
	if fullName {
		return resolver.ResolveName(country)
	}
	return resolver.ResolveCode(country)
}

// ResolveCode returns the ISO 3166-1 numeric code for a name or code.
func (resolver *Resolver) ResolveCode(country any) (int, error) {
	identifier, err := ParseIdentifier(country)
	if err != nil {
		return 0, err
	}
	if identifier.Kind == KindName {
		code, _, ok := resolver.reference.CodeForName(identifier.Name)
		if !ok {
			return 0, &dopaerr.ResolutionError{Input: identifier.Raw}
		}
		return code, nil
	}
	if err := resolver.checkCode(identifier); err != nil {
		return 0, err
	}
	return identifier.Code, nil
}

// ResolveName returns the canonical display name for a name or code. For a
// name this normalizes spelling and casing.
func (resolver *Resolver) ResolveName(country any) (string, error) {
	identifier, err := ParseIdentifier(country)
	if err != nil {
		return "", err
	}
	if identifier.Kind == KindName {
		_, canonical, ok := resolver.reference.CodeForName(identifier.Name)
		if !ok {
			return "", &dopaerr.ResolutionError{Input: identifier.Raw}
		}
		return canonical, nil
	}
	if err := resolver.checkCode(identifier); err != nil {
		return "", err
	}
	name, _ := resolver.reference.NameForCode(identifier.Code)
	return name, nil
}

func (resolver *Resolver) checkCode(identifier Identifier) error {
	if !identifier.integral || !resolver.reference.IsValidCode(identifier.Code) {
		return &dopaerr.ResolutionError{Input: identifier.Raw, Numeric: true}
	}
	return nil
}
