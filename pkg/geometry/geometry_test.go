package geometry

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/coolbeans/dopa/pkg/dopaerr"
	"github.com/coolbeans/dopa/pkg/table"
)

const (
	squareWKT      = "POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))"
	shiftedWKT     = "POLYGON((2 2, 3 2, 3 3, 2 3, 2 2))"
	multiSquareWKT = "MULTIPOLYGON(((10 10, 11 10, 11 11, 10 11, 10 10)),((20 20, 21 20, 21 21, 20 21, 20 20)))"
)

func protectedAreaTable(wkts ...any) *table.Table {
	records := make([]table.Record, len(wkts))
	for i, wktText := range wkts {
		records[i] = table.Record{
			{Name: "wdpaid", Value: json.Number(string(rune('1' + i)))},
			{Name: "geom", Value: wktText},
			{Name: "name", Value: "Area " + string(rune('A'+i))},
		}
	}
	return table.Normalize(records, table.DefaultOptions())
}

func TestToGeometries_ThreeRows(t *testing.T) {
	collection, err := ToGeometries(protectedAreaTable(squareWKT, multiSquareWKT, shiftedWKT), "geom", "")
	if err != nil {
		t.Fatalf("ToGeometries failed: %v", err)
	}

	if collection.Len() != 3 {
		t.Fatalf("Len: got %d, want 3", collection.Len())
	}
	if collection.CRS != DefaultCRS {
		t.Errorf("CRS: got %q, want %q", collection.CRS, DefaultCRS)
	}
	for i, feature := range collection.Features {
		if feature.FID != i+1 {
			t.Errorf("feature %d: FID got %d, want %d", i, feature.FID, i+1)
		}
	}
	if _, ok := collection.Features[0].Geometry.(orb.Polygon); !ok {
		t.Errorf("row 1 should be a polygon, got %T", collection.Features[0].Geometry)
	}
	multi, ok := collection.Features[1].Geometry.(orb.MultiPolygon)
	if !ok || len(multi) != 2 {
		t.Errorf("row 2 should stay one multipolygon feature with 2 parts, got %T", collection.Features[1].Geometry)
	}
	if !reflect.DeepEqual(collection.Schema(), []string{"wdpaid", "name", "FID"}) {
		t.Errorf("Schema: got %v", collection.Schema())
	}
	if collection.Attribute(2, "name").String() != "Area C" {
		t.Errorf("row 3 name: got %s", collection.Attribute(2, "name"))
	}
	if fid, _ := collection.Attribute(1, FIDColumn).Int(); fid != 2 {
		t.Errorf("FID attribute: got %d, want 2", fid)
	}
}

func TestToGeometries_MissingColumn(t *testing.T) {
	// Row 1 is malformed too; the column check must come first.
	_, err := ToGeometries(protectedAreaTable("not wkt"), "the_geom", "")
	var validationError *dopaerr.ValidationError
	if !errors.As(err, &validationError) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(validationError.Error(), `"the_geom"`) {
		t.Errorf("error should name the column, got %q", validationError.Error())
	}
}

func TestToGeometries_MalformedRow(t *testing.T) {
	collection, err := ToGeometries(protectedAreaTable(squareWKT, "POLYGON((0 0, 1 0", shiftedWKT), "geom", "")
	if collection != nil {
		t.Error("no partial collection may be returned")
	}
	var geometryError *dopaerr.GeometryError
	if !errors.As(err, &geometryError) {
		t.Fatalf("expected GeometryError, got %v", err)
	}
	if geometryError.Row != 2 {
		t.Errorf("Row: got %d, want 2", geometryError.Row)
	}
	if !strings.Contains(err.Error(), "row 2") {
		t.Errorf("message should name row 2, got %q", err.Error())
	}
}

func TestToGeometries_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		wantErr error
	}{
		{"null", nil, ErrMissingWKT},
		{"number", json.Number("5"), ErrNotText},
		{"point", "POINT(1 2)", ErrNotPolygonal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ToGeometries(protectedAreaTable(squareWKT, tc.value), "geom", "")
			var geometryError *dopaerr.GeometryError
			if !errors.As(err, &geometryError) || geometryError.Row != 2 {
				t.Fatalf("expected GeometryError on row 2, got %v", err)
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestToGeometries_EmptyTable(t *testing.T) {
	source := &table.Table{Columns: []table.Column{{Name: "geom"}}}
	collection, err := ToGeometries(source, "geom", "EPSG:3035")
	if err != nil {
		t.Fatalf("ToGeometries failed: %v", err)
	}
	if collection.Len() != 0 || collection.CRS != "EPSG:3035" {
		t.Errorf("got %d features, CRS %q", collection.Len(), collection.CRS)
	}
	if collection.Bound() != (orb.Bound{}) {
		t.Errorf("empty bound: got %v", collection.Bound())
	}
}

func TestCollection_Bound(t *testing.T) {
	collection, err := ToGeometries(protectedAreaTable(squareWKT, shiftedWKT), "geom", "")
	if err != nil {
		t.Fatalf("ToGeometries failed: %v", err)
	}
	want := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{3, 3}}
	if collection.Bound() != want {
		t.Errorf("Bound: got %v, want %v", collection.Bound(), want)
	}
}

func TestFeature_AreaKm2(t *testing.T) {
	collection, err := ToGeometries(protectedAreaTable(squareWKT), "geom", "")
	if err != nil {
		t.Fatalf("ToGeometries failed: %v", err)
	}
	// One degree square at the equator is roughly 12,300 km².
	area := collection.Features[0].AreaKm2()
	if area < 12000 || area > 12500 {
		t.Errorf("AreaKm2: got %.0f, want about 12300", area)
	}
}

func TestMarshalGeoJSON(t *testing.T) {
	source := table.Normalize([]table.Record{
		{{Name: "geom", Value: squareWKT}, {Name: "iucn_cat", Value: nil}, {Name: "name", Value: "Nuuksio"}},
	}, table.DefaultOptions())
	collection, err := ToGeometries(source, "geom", "")
	if err != nil {
		t.Fatalf("ToGeometries failed: %v", err)
	}

	encoded, err := collection.MarshalGeoJSON()
	if err != nil {
		t.Fatalf("MarshalGeoJSON failed: %v", err)
	}

	var decoded struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
			Geometry   struct {
				Type string `json:"type"`
			} `json:"geometry"`
		} `json:"features"`
		CRS struct {
			Properties struct {
				Name string `json:"name"`
			} `json:"properties"`
		} `json:"crs"`
	}
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("invalid GeoJSON: %v", err)
	}
	if decoded.Type != "FeatureCollection" || len(decoded.Features) != 1 {
		t.Fatalf("unexpected document: %s", encoded)
	}
	properties := decoded.Features[0].Properties
	if properties["name"] != "Nuuksio" || properties["FID"] != float64(1) {
		t.Errorf("properties: got %v", properties)
	}
	if value, present := properties["iucn_cat"]; !present || value != nil {
		t.Errorf("missing attribute should be null, got %v (present %v)", value, present)
	}
	if decoded.Features[0].Geometry.Type != "Polygon" {
		t.Errorf("geometry type: got %s", decoded.Features[0].Geometry.Type)
	}
	if decoded.CRS.Properties.Name != DefaultCRS {
		t.Errorf("crs: got %q", decoded.CRS.Properties.Name)
	}
}
