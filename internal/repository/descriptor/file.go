package descriptor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/sternelee/fleet-chat/internal/domain/plugin"
)

// Filename is the descriptor file expected at the plugin root.
const Filename = "package.json"

// Repository loads plugin descriptors.
type Repository interface {
	Load(ctx context.Context) (*plugin.Descriptor, error)
}

// FileRepository reads the descriptor from a plugin directory.
type FileRepository struct {
	fs   afero.Fs
	path string
}

// requiredFields must be present in every descriptor, in reporting order.
var requiredFields = []string{"name", "version", "description", "author"}

// NewFileRepository creates a repository for the descriptor inside pluginDir.
func NewFileRepository(fs afero.Fs, pluginDir string) *FileRepository {
	return &FileRepository{
		fs:   fs,
		path: filepath.Join(filepath.Clean(pluginDir), Filename),
	}
}

// Path returns the descriptor file location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads and validates the descriptor.
// Errors wrap plugin.ErrMissingDescriptor or plugin.ErrInvalidDescriptor where they apply.
func (r *FileRepository) Load(_ context.Context) (*plugin.Descriptor, error) {
	contents, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", plugin.ErrMissingDescriptor, r.path)
		}

		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	var fields map[string]json.RawMessage
	if err = json.Unmarshal(contents, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", plugin.ErrInvalidDescriptor, err)
	}

	return decode(fields)
}

// decode picks the recognized keys and ignores the rest. Only the presence of
// required keys is checked; every value is copied as written.
func decode(fields map[string]json.RawMessage) (*plugin.Descriptor, error) {
	for _, key := range requiredFields {
		if _, ok := fields[key]; !ok {
			return nil, fmt.Errorf("%w: missing required field %q", plugin.ErrInvalidDescriptor, key)
		}
	}

	return &plugin.Descriptor{
		Name:        fields["name"],
		Version:     fields["version"],
		Description: fields["description"],
		Author:      fields["author"],
		Icon:        fields["icon"],
		Commands:    fields["commands"],
		Permissions: fields["permissions"],
	}, nil
}
