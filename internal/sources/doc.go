// Package sources models the package sources external plugin modules are
// loaded from.
//
// A Source is one of three variants:
//   - GitRepoSource: modules stored in a branch of a git repository
//   - ObjectStorageSource: modules stored in an S3 compatible bucket
//   - FileSystemSource: modules stored in a local directory
//
// Each variant has a stable type tag. A Registry maps tags to the factory that
// builds the variant from its configuration. Registries are built explicitly at
// startup with NewRegistry (or DefaultRegistry for the built-in variants) and
// are read-only afterwards.
//
// A Source never fetches anything itself. Its Importer method returns a new
// importer.Importer bound to the source's connection parameters and declared
// packages, configured with the process-wide ImportSettings.
package sources
