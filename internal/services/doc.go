// Package services defines shared utilities consumed by the identity workflow
// and its command-line surface.
//
// Key responsibilities:
//   - Context helpers that stamp operation names, record identifiers, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     (validation vs conflict vs internal) so callers can map them to exit
//     codes or user-facing explanations.
//
// Use these helpers when wiring new operations so error handling and
// observability stay uniform across registration and verification.
package services
