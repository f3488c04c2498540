// Package registry persists registered object fingerprints in SQLite.
//
// Records are kept in insertion order, which the matchers use to break
// ties. The database remembers the fingerprint generator version it was
// created with and refuses to open under a different version, since
// fingerprints from different geometries are not comparable. Writers
// serialize through a file lock next to the database.
package registry
