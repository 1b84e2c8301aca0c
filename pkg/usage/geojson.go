package usage

import (
	"bytes"
	"encoding/json"
	"io"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	deperrors "github.com/matzehuels/depglobe/pkg/errors"
	"github.com/matzehuels/depglobe/pkg/geocode"
)

// Property names of a usage feature.
const (
	PropName     = "name"
	PropLocation = "location"
)

// rawCollection and rawFeature decode loosely so that one bad feature does
// not reject the whole document.
type rawCollection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

type rawFeature struct {
	Geometry *struct {
		Type        string            `json:"type"`
		Coordinates []json.RawMessage `json:"coordinates"`
	} `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Read parses a FeatureCollection into usages.
//
// Features without a string name and location, or whose geometry is not a
// point with exactly two numeric coordinates, are skipped and counted.
// Empty input is an empty collection.
func Read(r io.Reader) (usages []Usage, skipped int, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, 0, nil
	}

	var fc rawCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, 0, deperrors.Wrap(deperrors.ErrCodeInvalidArtifact, err, "parse feature collection")
	}
	if fc.Type != "" && fc.Type != "FeatureCollection" {
		return nil, 0, deperrors.New(deperrors.ErrCodeInvalidArtifact, "expected FeatureCollection, got %q", fc.Type)
	}

	for _, raw := range fc.Features {
		u, ok := decodeFeature(raw)
		if !ok {
			skipped++
			continue
		}
		usages = append(usages, u)
	}
	return usages, skipped, nil
}

func decodeFeature(raw json.RawMessage) (Usage, bool) {
	var f rawFeature
	if err := json.Unmarshal(raw, &f); err != nil || f.Geometry == nil {
		return Usage{}, false
	}
	if f.Geometry.Type != "" && f.Geometry.Type != "Point" {
		return Usage{}, false
	}
	if len(f.Geometry.Coordinates) != 2 {
		return Usage{}, false
	}
	lon, ok := number(f.Geometry.Coordinates[0])
	if !ok {
		return Usage{}, false
	}
	lat, ok := number(f.Geometry.Coordinates[1])
	if !ok {
		return Usage{}, false
	}

	name, _ := f.Properties[PropName].(string)
	location, _ := f.Properties[PropLocation].(string)
	if name == "" || location == "" {
		return Usage{}, false
	}
	return Usage{
		Account:     name,
		Location:    location,
		Coordinates: geocode.Coordinates{Latitude: lat, Longitude: lon},
	}, true
}

// number decodes a JSON number. Unmarshalling null into a float64 is a
// no-op, so null has to be rejected through the pointer.
func number(raw json.RawMessage) (float64, bool) {
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return 0, false
	}
	return *v, true
}

// Write encodes usages as a FeatureCollection, one Point per usage,
// ordered by account.
func Write(w io.Writer, usages []Usage) error {
	data, err := Marshal(usages)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Marshal returns the FeatureCollection encoding of usages.
func Marshal(usages []Usage) ([]byte, error) {
	sorted := slices.Clone(usages)
	Sort(sorted)

	fc := geojson.NewFeatureCollection()
	for _, u := range sorted {
		f := geojson.NewFeature(orb.Point{u.Coordinates.Longitude, u.Coordinates.Latitude})
		f.Properties[PropName] = u.Account
		f.Properties[PropLocation] = u.Location
		fc.Append(f)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, deperrors.Wrap(deperrors.ErrCodeInternal, err, "encode feature collection")
	}
	return append(data, '\n'), nil
}
