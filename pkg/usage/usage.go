// Package usage persists the artifact a collection run produces: one
// GeoJSON Point feature per dependent account with a resolved location.
//
// # Axis Order
//
// GeoJSON positions are [longitude, latitude]. In memory, depglobe uses
// [geocode.Coordinates], latitude first. [Read] and [Write] are the only
// places where the two meet.
//
// # Stores
//
// [FileStore] keeps the artifact on disk (global_usage.json by default);
// [MongoStore] keeps the same document in a MongoDB collection. Both report
// a missing artifact as empty prior state.
package usage

import (
	"cmp"
	"slices"

	"github.com/matzehuels/depglobe/pkg/geocode"
)

// Usage records that Account, a dependent of a collected repository, reports
// Location, which geocodes to Coordinates.
type Usage struct {
	Account     string
	Location    string
	Coordinates geocode.Coordinates
}

// Sort orders usages by account.
func Sort(usages []Usage) {
	slices.SortFunc(usages, func(a, b Usage) int { return cmp.Compare(a.Account, b.Account) })
}
