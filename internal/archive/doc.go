// Package archive holds the filesystem side of packaging: the staging area,
// the zip writer and the streamed archive checksum.
//
// All functions take an afero.Fs so the same code runs against the OS
// filesystem and against in-memory filesystems in tests.
package archive
