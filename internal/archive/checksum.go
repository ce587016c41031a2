package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// checksumChunkSize is how much of the archive is hashed per read.
const checksumChunkSize = 4096

// Checksum returns the lowercase hex SHA-256 of the file at path.
// The file is streamed in fixed-size chunks.
func Checksum(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}

	defer func() {
		_ = f.Close()
	}()

	var (
		hasher = sha256.New()
		chunk  = make([]byte, checksumChunkSize)
	)

	for {
		n, readErr := f.Read(chunk)
		if n > 0 {
			// hash.Hash writes never fail.
			_, _ = hasher.Write(chunk[:n])
		}

		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return "", fmt.Errorf("read %s: %w", path, readErr)
		}
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
