package geometry

import (
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection converts the collection to GeoJSON. Attributes become
// properties (missing values are null), FID is added, and the CRS is carried
// in the legacy "crs" member.
func (collection *Collection) FeatureCollection() *geojson.FeatureCollection {
	featureCollection := geojson.NewFeatureCollection()
	for _, feature := range collection.Features {
		geoFeature := geojson.NewFeature(feature.Geometry)
		geoFeature.ID = feature.FID
		for i, column := range collection.Columns {
			geoFeature.Properties[column] = feature.Attributes[i].Interface()
		}
		geoFeature.Properties[FIDColumn] = feature.FID
		featureCollection.Append(geoFeature)
	}
	featureCollection.ExtraMembers = geojson.Properties{
		"crs": map[string]any{
			"type":       "name",
			"properties": map[string]any{"name": collection.CRS},
		},
	}
	return featureCollection
}

// MarshalGeoJSON encodes the collection as a GeoJSON FeatureCollection.
func (collection *Collection) MarshalGeoJSON() ([]byte, error) {
	return collection.FeatureCollection().MarshalJSON()
}
