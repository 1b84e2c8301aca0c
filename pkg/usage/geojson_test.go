package usage

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	deperrors "github.com/matzehuels/depglobe/pkg/errors"
	"github.com/matzehuels/depglobe/pkg/geocode"
)

func TestReadSwapsAxisOrder(t *testing.T) {
	const doc = `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[10.0,20.0]},
		 "properties":{"name":"alice","location":"Somewhere"}}]}`

	usages, skipped, err := Read(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if skipped != 0 || len(usages) != 1 {
		t.Fatalf("Read() = %d usages, %d skipped", len(usages), skipped)
	}
	got := usages[0].Coordinates
	if got.Latitude != 20.0 || got.Longitude != 10.0 {
		t.Errorf("Coordinates = %+v, want lat 20 lon 10", got)
	}

	var buf bytes.Buffer
	if err := Write(&buf, usages); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	var out struct {
		Features []struct {
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]string `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal written document: %v", err)
	}
	f := out.Features[0]
	if f.Geometry.Type != "Point" || len(f.Geometry.Coordinates) != 2 ||
		f.Geometry.Coordinates[0] != 10.0 || f.Geometry.Coordinates[1] != 20.0 {
		t.Errorf("geometry = %+v, want Point [10 20]", f.Geometry)
	}
	if f.Properties["name"] != "alice" || f.Properties["location"] != "Somewhere" {
		t.Errorf("properties = %v", f.Properties)
	}
}

func TestReadSkipsMalformedFeatures(t *testing.T) {
	const doc = `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[-0.13,51.51]},"properties":{"name":"alice","location":"London"}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"location":"No Name"}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"name":"nolocation"}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2,3]},"properties":{"name":"threed","location":"X"}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[1]},"properties":{"name":"oned","location":"X"}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":["1","2"]},"properties":{"name":"strings","location":"X"}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[null,null]},"properties":{"name":"nulls","location":"London"}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[null,5]},"properties":{"name":"halfnull","location":"London"}},
		{"type":"Feature","geometry":{"type":"LineString","coordinates":[[1,2],[3,4]]},"properties":{"name":"line","location":"X"}},
		{"type":"Feature","properties":{"name":"nogeom","location":"X"}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"name":42,"location":"X"}},
		"not an object",
		{"type":"Feature","geometry":{"type":"Point","coordinates":[139.69,35.68]},"properties":{"name":"bob","location":"Tokyo"}}
	]}`

	usages, skipped, err := Read(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if skipped != 11 {
		t.Errorf("skipped = %d, want 11", skipped)
	}
	if len(usages) != 2 || usages[0].Account != "alice" || usages[1].Account != "bob" {
		t.Errorf("usages = %+v, want alice and bob", usages)
	}
}

func TestReadEmptyAndInvalid(t *testing.T) {
	for _, in := range []string{"", "  \n", `{"type":"FeatureCollection","features":[]}`} {
		usages, skipped, err := Read(strings.NewReader(in))
		if err != nil || len(usages) != 0 || skipped != 0 {
			t.Errorf("Read(%q) = %v, %d, %v, want empty", in, usages, skipped, err)
		}
	}

	for _, in := range []string{"{not json", `{"type":"Feature"}`} {
		_, _, err := Read(strings.NewReader(in))
		if !deperrors.Is(err, deperrors.ErrCodeInvalidArtifact) {
			t.Errorf("Read(%q) error = %v, want INVALID_ARTIFACT", in, err)
		}
	}
}

func TestWriteIsSortedAndDeterministic(t *testing.T) {
	usages := []Usage{
		{Account: "carol", Location: "Lima", Coordinates: geocode.Coordinates{Latitude: -12.05, Longitude: -77.04}},
		{Account: "alice", Location: "London", Coordinates: geocode.Coordinates{Latitude: 51.51, Longitude: -0.13}},
		{Account: "bob", Location: "Tokyo", Coordinates: geocode.Coordinates{Latitude: 35.68, Longitude: 139.69}},
	}
	reversed := []Usage{usages[2], usages[1], usages[0]}

	a, err := Marshal(usages)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Marshal(reversed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("Marshal() depends on input order:\n%s\n%s", a, b)
	}

	back, _, err := Read(bytes.NewReader(a))
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []string{"alice", "bob", "carol"} {
		if back[i].Account != want {
			t.Errorf("feature %d = %q, want %q", i, back[i].Account, want)
		}
	}
	if usages[0].Account != "carol" {
		t.Error("Marshal() must not reorder the caller's slice")
	}
}

func TestWriteEmpty(t *testing.T) {
	data, err := Marshal(nil)
	if err != nil {
		t.Fatal(err)
	}
	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		t.Fatal(err)
	}
	if fc.Type != "FeatureCollection" || fc.Features == nil || len(fc.Features) != 0 {
		t.Errorf("Marshal(nil) = %s, want empty FeatureCollection", data)
	}
}
