// Package matching decides whether a new image depicts an object that is
// already registered.
//
// DuplicateDetector applies the registration rule: a candidate is a
// duplicate when its primary fingerprint, or one of its rotated or rescaled
// variants, lies within a Hamming threshold of a stored primary. Verifier
// runs the staged lookup used for physical verification: a direct
// comparison, then rotation probes, then auxiliary similarity reports.
//
// Both operate on a read-only Store snapshot and never mutate it.
package matching
