// Package packager turns a plugin build directory into a sealed .fcp archive.
//
// The archive is built twice: the first pass produces the bytes whose SHA-256
// is recorded in metadata.json, the second pass rewrites the archive with that
// checksum in place. The recorded checksum therefore describes the first-pass
// archive, not the delivered file.
package packager
