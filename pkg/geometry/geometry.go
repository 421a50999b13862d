// Package geometry materializes the WKT polygon column of a normalized table
// into polygon features that carry the remaining row attributes.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geo"

	"github.com/coolbeans/dopa/pkg/dopaerr"
	"github.com/coolbeans/dopa/pkg/table"
)

// DefaultCRS is the coordinate reference system used when none is given.
const DefaultCRS = "+init=epsg:4326"

// FIDColumn is the name of the synthetic feature identifier attribute.
const FIDColumn = "FID"

var (
	// ErrMissingWKT is wrapped by GeometryError when a row has no WKT value.
	ErrMissingWKT = errors.New("missing WKT value")
	// ErrNotText is wrapped by GeometryError when a row's WKT value is not a string.
	ErrNotText = errors.New("WKT value is not text")
	// ErrNotPolygonal is wrapped by GeometryError when the WKT is not a
	// POLYGON or MULTIPOLYGON.
	ErrNotPolygonal = errors.New("geometry is not a polygon or multipolygon")
)

// Feature is one table row paired with its parsed geometry.
type Feature struct {
	// FID is the 1-based row position. It is only stable within one
	// ToGeometries call.
	FID int

	// Geometry is an orb.Polygon or orb.MultiPolygon. A MULTIPOLYGON row
	// stays a single feature.
	Geometry orb.Geometry

	// Attributes aligns with Collection.Columns.
	Attributes []table.Value
}

// AreaKm2 returns the geodesic area of the feature in square kilometres,
// assuming longitude/latitude coordinates.
func (feature Feature) AreaKm2() float64 {
	return math.Abs(geo.Area(feature.Geometry)) / 1e6
}

// Collection is the set of features produced from one table. All features
// share CRS.
type Collection struct {
	CRS string

	// Columns names the attributes of every feature: the source table's
	// columns without the WKT column.
	Columns []string

	Features []Feature
}

// ToGeometries parses the WKT text in wktColumn for every row of source. Each
// feature gets the other columns as attributes and FID = row position
// (1-based). An empty crs means DefaultCRS.
//
// A missing wktColumn yields a *dopaerr.ValidationError before any parsing.
// Any row whose WKT is absent or malformed aborts the whole conversion with a
// *dopaerr.GeometryError naming that row; no partial collection is returned.
func ToGeometries(source *table.Table, wktColumn string, crs string) (*Collection, error) {
	wktIdx := source.ColumnIndex(wktColumn)
	if wktIdx < 0 {
		return nil, dopaerr.NewValidationError("column", []string{wktColumn},
			"WKT column %q not found in table (columns: %v)", wktColumn, source.ColumnNames())
	}
	if crs == "" {
		crs = DefaultCRS
	}

	collection := &Collection{
		CRS:      crs,
		Columns:  make([]string, 0, source.NumCols()-1),
		Features: make([]Feature, 0, source.NumRows()),
	}
	for i, name := range source.ColumnNames() {
		if i != wktIdx {
			collection.Columns = append(collection.Columns, name)
		}
	}

	for rowIdx, row := range source.Rows {
		fid := rowIdx + 1

		parsed, err := parsePolygonal(row[wktIdx])
		if err != nil {
			return nil, &dopaerr.GeometryError{Row: fid, Column: wktColumn, Err: err}
		}

		attributes := make([]table.Value, 0, len(collection.Columns))
		for i, cell := range row {
			if i != wktIdx {
				attributes = append(attributes, cell)
			}
		}
		collection.Features = append(collection.Features, Feature{
			FID:        fid,
			Geometry:   parsed,
			Attributes: attributes,
		})
	}
	return collection, nil
}

func parsePolygonal(cell table.Value) (orb.Geometry, error) {
	if cell.IsMissing() {
		return nil, ErrMissingWKT
	}
	text, ok := cell.Text()
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNotText, cell)
	}

	parsed, err := wkt.Unmarshal(text)
	if err != nil {
		return nil, err
	}
	switch parsed.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return parsed, nil
	default:
		return nil, fmt.Errorf("%w: got %s", ErrNotPolygonal, parsed.GeoJSONType())
	}
}

// Len returns the number of features.
func (collection *Collection) Len() int {
	return len(collection.Features)
}

// Schema returns the attribute columns followed by FIDColumn.
func (collection *Collection) Schema() []string {
	return append(append([]string(nil), collection.Columns...), FIDColumn)
}

// Attribute returns a feature attribute by column name. FIDColumn is
// accepted. Unknown names yield the missing marker.
func (collection *Collection) Attribute(featureIdx int, name string) table.Value {
	if featureIdx < 0 || featureIdx >= len(collection.Features) {
		return table.Missing()
	}
	feature := collection.Features[featureIdx]
	if name == FIDColumn {
		return table.Present(feature.FID)
	}
	for i, column := range collection.Columns {
		if column == name {
			return feature.Attributes[i]
		}
	}
	return table.Missing()
}

// Bound returns the bounding box of all features. An empty collection has
// the zero bound.
func (collection *Collection) Bound() orb.Bound {
	if len(collection.Features) == 0 {
		return orb.Bound{}
	}
	bound := collection.Features[0].Geometry.Bound()
	for _, feature := range collection.Features[1:] {
		bound = bound.Union(feature.Geometry.Bound())
	}
	return bound
}
