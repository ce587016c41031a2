package descriptor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/sternelee/fleet-chat/internal/domain/plugin"
)

func writeDescriptor(t *testing.T, fs afero.Fs, body string) *FileRepository {
	t.Helper()

	require.NoError(t, afero.WriteFile(fs, "/plugin/package.json", []byte(body), 0o644))

	return NewFileRepository(fs, "/plugin")
}

// TestFileRepository_NotFound verifies Load reports a missing descriptor.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(afero.NewMemMapFs(), "/plugin")
	require.Equal(t, "/plugin/package.json", repo.Path())

	d, err := repo.Load(context.Background())
	require.ErrorIs(t, err, plugin.ErrMissingDescriptor)
	require.Nil(t, d)
}

// TestFileRepository_Load reads every recognized field and ignores unknown ones.
func TestFileRepository_Load(t *testing.T) {
	t.Parallel()

	repo := writeDescriptor(t, afero.NewMemMapFs(), `{
		"name": "weather",
		"version": "2.1.0",
		"description": "Forecasts in chat",
		"author": "Fleet",
		"icon": "assets/icon.png",
		"commands": [{"name": "forecast", "mode": "view"}],
		"permissions": ["network"],
		"scripts": {"build": "vite build"},
		"dependencies": {"react": "^18"}
	}`)

	d, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.JSONEq(t, `"weather"`, string(d.Name))
	require.JSONEq(t, `"2.1.0"`, string(d.Version))
	require.JSONEq(t, `"Forecasts in chat"`, string(d.Description))
	require.JSONEq(t, `"Fleet"`, string(d.Author))
	require.Equal(t, "assets/icon.png", plugin.Text(d.Icon))
	require.JSONEq(t, `[{"name":"forecast","mode":"view"}]`, string(d.Commands))
	require.JSONEq(t, `["network"]`, string(d.Permissions))
}

// TestFileRepository_Optional leaves undeclared optional fields nil and keeps explicit nulls.
func TestFileRepository_Optional(t *testing.T) {
	t.Parallel()

	repo := writeDescriptor(t, afero.NewMemMapFs(),
		`{"name":"demo","version":"1.0.0","description":"d","author":"a","icon":null,"commands":null}`)

	d, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, json.RawMessage("null"), d.Icon)
	require.Equal(t, json.RawMessage("null"), d.Commands)
	require.Nil(t, d.Permissions)
}

// TestFileRepository_AnyValueShape accepts required and optional fields of any JSON type.
func TestFileRepository_AnyValueShape(t *testing.T) {
	t.Parallel()

	repo := writeDescriptor(t, afero.NewMemMapFs(), `{
		"name": "demo",
		"version": 1,
		"description": "",
		"author": {"name": "Jane", "email": "j@x.io"},
		"icon": true,
		"commands": {},
		"permissions": "all"
	}`)

	d, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.JSONEq(t, `1`, string(d.Version))
	require.JSONEq(t, `""`, string(d.Description))
	require.JSONEq(t, `{"name":"Jane","email":"j@x.io"}`, string(d.Author))
	require.Empty(t, plugin.Text(d.Icon))
	require.JSONEq(t, `{}`, string(d.Commands))
	require.JSONEq(t, `"all"`, string(d.Permissions))

	repo = writeDescriptor(t, afero.NewMemMapFs(),
		`{"name":"demo","version":"1.0.0","description":"d","author":null}`)

	d, err = repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, json.RawMessage("null"), d.Author)
}

// TestFileRepository_Invalid covers every way a descriptor can be rejected.
func TestFileRepository_Invalid(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not json":            `{"name":`,
		"not an object":       `["demo"]`,
		"missing author":      `{"name":"demo","version":"1.0.0","description":"d"}`,
		"missing name":        `{"version":"1.0.0","description":"d","author":"a"}`,
		"missing version":     `{"name":"demo","description":"d","author":"a"}`,
		"missing description": `{"name":"demo","version":"1.0.0","author":"a"}`,
	}

	for name, body := range cases {
		repo := writeDescriptor(t, afero.NewMemMapFs(), body)

		d, err := repo.Load(context.Background())
		require.ErrorIs(t, err, plugin.ErrInvalidDescriptor, name)
		require.Nil(t, d, name)
	}
}

// TestFileRepository_MissingFieldNamed reports which required field is absent.
func TestFileRepository_MissingFieldNamed(t *testing.T) {
	t.Parallel()

	repo := writeDescriptor(t, afero.NewMemMapFs(), `{"name":"demo","version":"1.0.0","description":"d"}`)

	_, err := repo.Load(context.Background())
	require.ErrorContains(t, err, `"author"`)
}

// TestFileRepository_ReadError keeps non-missing read failures unclassified.
func TestFileRepository_ReadError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, Filename), 0o755))

	_, err := NewFileRepository(afero.NewOsFs(), dir).Load(context.Background())
	require.Error(t, err)
	require.False(t, errors.Is(err, plugin.ErrMissingDescriptor))
	require.False(t, errors.Is(err, plugin.ErrInvalidDescriptor))
}
