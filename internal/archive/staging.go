package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const (
	dirMode  os.FileMode = 0o755
	fileMode os.FileMode = 0o644
)

// Staging is a scratch directory holding exactly the files that go into an archive.
type Staging struct {
	fs  afero.Fs
	dir string
}

// PrepareStaging removes anything at dir and creates it empty.
func PrepareStaging(fs afero.Fs, dir string) (*Staging, error) {
	if err := fs.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("remove stale staging area: %w", err)
	}

	if err := fs.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("create staging area: %w", err)
	}

	return &Staging{fs: fs, dir: dir}, nil
}

// Dir returns the staging root.
func (s *Staging) Dir() string {
	return s.dir
}

// CopyTree mirrors the directory src under name inside the staging area.
// It reports false without error when src does not exist.
func (s *Staging) CopyTree(src, name string) (bool, error) {
	ok, err := afero.DirExists(s.fs, src)
	if err != nil || !ok {
		return false, err
	}

	target := filepath.Join(s.dir, name)

	err = afero.Walk(s.fs, src, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		dst := filepath.Join(target, rel)

		if info.IsDir() {
			return s.fs.MkdirAll(dst, dirMode)
		}

		// Symlinks are followed to the file they point at.
		if info.Mode()&os.ModeSymlink != 0 {
			if info, err = s.fs.Stat(path); err != nil {
				return err
			}
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		return copyFile(s.fs, path, dst)
	})
	if err != nil {
		return false, fmt.Errorf("copy %s: %w", src, err)
	}

	return true, nil
}

// CopyFile copies the regular file src to the staging root under its base name.
// It reports false without error when src does not exist or is not a regular file.
func (s *Staging) CopyFile(src string) (bool, error) {
	info, err := s.fs.Stat(src)
	if os.IsNotExist(err) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("stat %s: %w", src, err)
	}

	if !info.Mode().IsRegular() {
		return false, nil
	}

	if err = copyFile(s.fs, src, filepath.Join(s.dir, filepath.Base(src))); err != nil {
		return false, fmt.Errorf("copy %s: %w", src, err)
	}

	return true, nil
}

// WriteFile writes data to name relative to the staging root, replacing any previous content.
func (s *Staging) WriteFile(name string, data []byte) error {
	if err := afero.WriteFile(s.fs, filepath.Join(s.dir, name), data, fileMode); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	return nil
}

// RemoveStaging deletes the staging area at dir and everything in it.
// A missing directory is not an error.
func RemoveStaging(fs afero.Fs, dir string) error {
	return fs.RemoveAll(dir)
}

func copyFile(fs afero.Fs, src, dst string) (err error) {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}

	defer func() {
		_ = in.Close()
	}()

	if err = fs.MkdirAll(filepath.Dir(dst), dirMode); err != nil {
		return err
	}

	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(out, in)

	return err
}
