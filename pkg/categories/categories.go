// Package categories holds the IUCN protected area management categories used
// by the protected-area statistics endpoints.
package categories

import (
	"encoding/json"
	"strconv"

	"github.com/coolbeans/dopa/pkg/table"
)

// Category is one IUCN protected area management category.
type Category struct {
	Token       string `json:"category"`
	Description string `json:"description"`
	Code        int    `json:"code"`
}

// all is ordered by Code. "0" and "Not Applicable" carry no description.
var all = [...]Category{
	{Token: "0", Description: "", Code: 0},
	{Token: "Ia", Description: "Strict Nature Reserve", Code: 1},
	{Token: "Ib", Description: "Wilderness Area", Code: 2},
	{Token: "II", Description: "National Park", Code: 3},
	{Token: "III", Description: "Natural Monument or Feature", Code: 4},
	{Token: "IV", Description: "Habitat/Species Management Area", Code: 5},
	{Token: "V", Description: "Protected Landscape/Seascape", Code: 6},
	{Token: "VI", Description: "Protected area with sustainable use of natural resources", Code: 7},
	{Token: "Not Reported", Description: "Not Reported", Code: 8},
	{Token: "Not Applicable", Description: "", Code: 9},
}

// All returns a copy of the ten categories in code order.
func All() []Category {
	out := make([]Category, len(all))
	copy(out, all[:])
	return out
}

// Lookup finds a category by token.
func Lookup(token string) (Category, bool) {
	for _, category := range all {
		if category.Token == token {
			return category, true
		}
	}
	return Category{}, false
}

// Categories returns the category reference as a table with columns
// category, description and code. Each call builds a fresh table.
func Categories() *table.Table {
	records := make([]table.Record, len(all))
	for i, category := range all {
		records[i] = table.Record{
			{Name: "category", Value: category.Token},
			{Name: "description", Value: category.Description},
			{Name: "code", Value: json.Number(strconv.Itoa(category.Code))},
		}
	}
	return table.Normalize(records, table.DefaultOptions())
}
