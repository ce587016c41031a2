package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/spf13/afero"
)

// fixedModTime is stamped on every entry so equal staging content gives equal archive bytes.
var fixedModTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Entry is a file written into an archive.
type Entry struct {
	// Name is the slash separated path inside the archive.
	Name string
	// Size is the uncompressed size.
	Size int64
}

// WriteZip walks root in lexical order and writes every regular file into a
// deflate-compressed zip at out, replacing any existing file. Entry names are
// paths relative to root.
func WriteZip(fs afero.Fs, root, out string, level int) (entries []Entry, err error) {
	f, err := fs.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}

	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close archive: %w", closeErr)
		}
	}()

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})

	walkErr := afero.Walk(fs, root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		entry := Entry{Name: filepath.ToSlash(rel), Size: info.Size()}
		if err = addFile(fs, zw, path, entry.Name); err != nil {
			return err
		}

		entries = append(entries, entry)

		return nil
	})
	if walkErr != nil {
		_ = zw.Close()
		return nil, fmt.Errorf("write archive: %w", walkErr)
	}

	if err = zw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive: %w", err)
	}

	return entries, nil
}

func addFile(fs afero.Fs, zw *zip.Writer, path, name string) error {
	src, err := fs.Open(path)
	if err != nil {
		return err
	}

	defer func() {
		_ = src.Close()
	}()

	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: fixedModTime,
	}
	header.SetMode(fileMode)

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}

	if _, err = io.Copy(w, src); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	return nil
}
