// Package plugin contains the core types of a Fleet Chat plugin package.
//
// Descriptor is what the plugin project declares in package.json, Manifest is
// the host-facing projection of it, and Metadata wraps the Manifest with build
// provenance and the archive checksum.
package plugin
