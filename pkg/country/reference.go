package country

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

//go:embed iso3166.csv
var iso3166CSV string

// Reference is the lookup table countries are resolved against. It is
// read-only and must be safe for concurrent use.
type Reference interface {
	// CodeForName matches a country name and returns its numeric code and
	// canonical display name.
	CodeForName(name string) (code int, canonical string, ok bool)

	// NameForCode returns the display name of a numeric code.
	NameForCode(code int) (string, bool)

	// IsValidCode reports whether code is a known ISO 3166-1 numeric code.
	IsValidCode(code int) bool
}

// Entry is one row of the ISO 3166-1 table.
type Entry struct {
	Numeric int
	Alpha3  string
	Name    string
	Aliases []string
}

// ISOTable is a Reference backed by the ISO 3166-1 numeric code list.
type ISOTable struct {
	entries []Entry
	byCode  map[int]int
	byName  map[string]int
}

// NewISOTable parses a CSV with header numeric,alpha3,name,aliases where
// aliases are separated by "|". Two different codes claiming the same folded
// name is an error.
func NewISOTable(source io.Reader) (*ISOTable, error) {
	reader := csv.NewReader(source)
	reader.FieldsPerRecord = 4

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read country table: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("country table is empty")
	}

	isoTable := &ISOTable{
		entries: make([]Entry, 0, len(rows)-1),
		byCode:  make(map[int]int, len(rows)-1),
		byName:  make(map[string]int, 2*len(rows)),
	}
	for lineIdx, row := range rows[1:] {
		numeric, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid numeric code %q: %w", lineIdx+2, row[0], err)
		}
		if _, exists := isoTable.byCode[numeric]; exists {
			return nil, fmt.Errorf("line %d: duplicate numeric code %d", lineIdx+2, numeric)
		}

		entry := Entry{Numeric: numeric, Alpha3: row[1], Name: row[2]}
		if row[3] != "" {
			entry.Aliases = strings.Split(row[3], "|")
		}

		position := len(isoTable.entries)
		isoTable.entries = append(isoTable.entries, entry)
		isoTable.byCode[numeric] = position

		for _, name := range append([]string{entry.Name, entry.Alpha3}, entry.Aliases...) {
			key := foldName(name)
			if existing, claimed := isoTable.byName[key]; claimed && existing != position {
				return nil, fmt.Errorf("line %d: name %q already belongs to %s",
					lineIdx+2, name, isoTable.entries[existing].Name)
			}
			isoTable.byName[key] = position
		}
	}
	return isoTable, nil
}

var (
	defaultTableOnce sync.Once
	defaultTable     *ISOTable
)

// Default returns the embedded ISO 3166-1 table. The embedded data is
// validated by tests, so a parse failure here is a build defect.
func Default() *ISOTable {
	defaultTableOnce.Do(func() {
		isoTable, err := NewISOTable(strings.NewReader(iso3166CSV))
		if err != nil {
			panic(fmt.Sprintf("country: embedded table: %v", err))
		}
		defaultTable = isoTable
	})
	return defaultTable
}

// CodeForName implements Reference.
func (isoTable *ISOTable) CodeForName(name string) (int, string, bool) {
	position, ok := isoTable.byName[foldName(name)]
	if !ok {
		return 0, "", false
	}
	entry := isoTable.entries[position]
	return entry.Numeric, entry.Name, true
}

// NameForCode implements Reference.
func (isoTable *ISOTable) NameForCode(code int) (string, bool) {
	position, ok := isoTable.byCode[code]
	if !ok {
		return "", false
	}
	return isoTable.entries[position].Name, true
}

// IsValidCode implements Reference.
func (isoTable *ISOTable) IsValidCode(code int) bool {
	_, ok := isoTable.byCode[code]
	return ok
}

// Entries returns the table rows sorted by display name.
func (isoTable *ISOTable) Entries() []Entry {
	out := make([]Entry, len(isoTable.entries))
	copy(out, isoTable.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of countries in the table.
func (isoTable *ISOTable) Len() int {
	return len(isoTable.entries)
}

var punctuationReplacer = strings.NewReplacer(
	"&", " and ",
	"’", "'",
	"‘", "'",
	"-", " ",
	".", "",
	",", " ",
)

// foldName reduces a country name to a lookup key: diacritics removed, case
// folded, "&" spelled out, punctuation and repeated spaces collapsed.
func foldName(name string) string {
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripper, name)
	if err != nil {
		stripped = name
	}
	folded := cases.Fold().String(punctuationReplacer.Replace(stripped))
	return strings.Join(strings.Fields(folded), " ")
}
