// Package preflight provides readiness checks for the filesystem paths and
// registry database objectid depends on.
//
// The CLI "objectid doctor" command runs RunAll and prints each Result.
// Checks never modify the registry.
package preflight
