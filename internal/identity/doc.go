// Package identity is the application service behind the objectid CLI.
//
// It owns the registry lifecycle: canonicalization timeouts, the write lock
// around check-then-insert registration, and translation of matcher results
// into classified errors.
package identity
