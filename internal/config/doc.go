// Package config loads, normalizes, and validates objectid configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// OBJECTID_DATA_DIR. The Config type centralizes the registry location, the
// matching thresholds, and logging settings so the CLI and the identity
// service discover them in one pass.
//
// The perceptual-hash geometry (box size, grid, rotation lists) is not
// configurable here; it is versioned together in internal/phash because
// changing it invalidates every stored fingerprint.
package config
