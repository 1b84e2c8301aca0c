// Package pkg provides the libraries behind depglobe, which maps where the
// dependents of an account's GitHub repositories are located.
//
// # Overview
//
// The pkg directory is organized into four areas:
//
//  1. [pipeline] - Orchestration (enumerate → resolve → geocode → save)
//  2. [locate], [geocode], [usage] - Domain logic (account locations,
//     coordinates, the GeoJSON artifact)
//  3. [integrations] - External clients (GitHub API, dependents pages,
//     Nominatim, Mapbox)
//  4. [backoff], [cache], [errors], [observability], [metrics] -
//     Infrastructure shared by the above
//
// # Data Flow
//
//	prior artifact (file or MongoDB)
//	         ↓ seeds
//	    [pipeline.Enumerator] (repositories → packages → dependents)
//	         ↓
//	    [locate.Resolver] (account → profile location)
//	         ↓
//	    [geocode.Cache] (location text → coordinates)
//	         ↓
//	    GeoJSON FeatureCollection
//
// Every upstream call runs under a [backoff.Controller], which sleeps
// through rate limits instead of failing the run.
package pkg
