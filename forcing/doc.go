// Package forcing feeds time-varying external datasets into a running simulation.
//
// # Reading Guide
//
//   - timevarying.go: the TimeVaryingInput contract and its three variants
//     (AnalyticInput, PointwiseInput, GriddedInput)
//   - interpolation.go: interpolation methods and boundary policies
//   - provider.go: SnapshotProvider, which reads, resamples and caches snapshots
//   - lru.go: the LRU cache backing the provider
//   - calendar.go: calendar-period arithmetic used by periodic boundaries
//
// # Architecture
//
// The forcing package defines the DataSource and Resampler collaborators; implementations
// live in sub-packages:
//   - forcing/ncsource/: NetCDF data source
//   - forcing/regrid/: multilinear and nearest-node resamplers
//   - forcing/outputdir/: versioned output folders
//
// Sub-packages register themselves via init() functions that set package-level factory
// variables (OpenSourceFunc, NewResamplerFunc).
//
// # Concurrency
//
// Nothing in this package locks except SourceRegistry. A TimeVaryingInput, its
// SnapshotProvider and the provider's LRUCache belong to one goroutine; callers that
// share them must synchronize externally.
package forcing
