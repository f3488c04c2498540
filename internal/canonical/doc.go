// Package canonical produces the normalized raster every fingerprint is
// computed from.
//
// Canonicalization decodes the input (JPEG, PNG, GIF, BMP, TIFF, WebP),
// honors the EXIF orientation tag, fits the picture into a fixed square box
// without changing its aspect ratio, pads the remainder with white, and runs
// the result through one lossy JPEG round trip so that repeated
// canonicalization is stable. The package also owns the geometric transforms
// used to build fingerprint variants and verification probes.
package canonical
