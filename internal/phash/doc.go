// Package phash computes and compares perceptual fingerprints of canonical
// rasters.
//
// The primary fingerprint is a 256-bit average hash over a 16x16 luminance
// grid rendered as 64 lowercase hex digits. Rasters with no luminance
// structure fall back to a digest of their pixel statistics so that blank
// images of different colors stay distinguishable. Bundles add fingerprints
// of rotated and rescaled variants for tolerant duplicate detection.
package phash
