// Package main hosts the objectid CLI entrypoint and command graph.
//
// Commands fingerprint images, compare them, and register or verify
// physical objects against the local registry. Configuration is resolved
// once per invocation; every read command accepts --json for scripting.
package main
