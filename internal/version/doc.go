// Package version exposes build metadata for fleet-pack.
//
// Version, Commit and BuildTime are injected with -ldflags at release time.
package version
