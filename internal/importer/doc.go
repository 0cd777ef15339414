// Package importer fetches plugin modules from package sources and materializes
// them into a local module cache.
//
// Every source variant produces an Importer bound to its connection parameters
// and to the set of modules it declares. Importing a module maps its dotted name
// to a directory at the source (a.b becomes a/b/), fetches every regular file
// below it and writes the files into the cache below <cache>/<source>/<a/b>.
//
// Errors are classified with the sentinels ErrConnection, ErrAuth,
// ErrModuleNotFound and ErrInsecureSource so callers can decide whether to keep
// talking to a source.
package importer
