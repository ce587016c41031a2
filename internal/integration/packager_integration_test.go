package integration

import (
	"archive/zip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sternelee/fleet-chat/internal/config"
	"github.com/sternelee/fleet-chat/internal/service/packager"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func archiveEntries(t *testing.T, path string) map[string][]byte {
	t.Helper()

	reader, err := zip.OpenReader(path)
	require.NoError(t, err)

	defer func() {
		_ = reader.Close()
	}()

	entries := make(map[string][]byte, len(reader.File))

	for _, f := range reader.File {
		rc, err := f.Open()
		require.NoError(t, err)

		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())

		entries[f.Name] = body
	}

	return entries
}

func sortedNames(entries map[string][]byte) []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// TestPackager_RelativePaths packages a plugin from the working directory on the real filesystem.
func TestPackager_RelativePaths(t *testing.T) {
	// Setup test directory and change working directory.
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	writeFile(t, filepath.Join("weather", "package.json"), `{
		"name": "weather",
		"version": "0.3.0",
		"description": "Forecasts",
		"author": "Fleet",
		"icon": "icon.png",
		"commands": [{"name": "forecast"}],
		"permissions": ["network"]
	}`)
	writeFile(t, filepath.Join("weather", "dist", "index.js"), "export default {}")
	writeFile(t, filepath.Join("weather", "assets", "images", "sun.svg"), "<svg/>")
	writeFile(t, filepath.Join("weather", "icon.png"), "png")
	writeFile(t, filepath.Join("release", "weather.fcp"), "an older package")

	// A settings file in the working directory is picked up without --config.
	writeFile(t, config.DefaultConfigFilename, "fleet_chat_version: 1.5.0\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := packager.Pack(ctx, &packager.Options{
		SourceDir:  "weather",
		OutputPath: filepath.Join("release", "weather.fcp"),
	})
	require.NoError(t, err)

	wantOutput, err := filepath.Abs(filepath.Join("release", "weather.fcp"))
	require.NoError(t, err)
	require.Equal(t, wantOutput, result.OutputPath)

	info, err := os.Stat(result.OutputPath)
	require.NoError(t, err)
	require.Equal(t, info.Size(), result.Size)

	_, err = os.Stat(filepath.Join("weather", config.DefaultStagingDir))
	require.ErrorIs(t, err, os.ErrNotExist)

	entries := archiveEntries(t, result.OutputPath)
	require.Equal(t, []string{
		"assets/images/sun.svg",
		"dist/index.js",
		"icon.png",
		"manifest.json",
		"metadata.json",
	}, sortedNames(entries))

	var metadata struct {
		Checksum         string `json:"checksum"`
		BuildTime        string `json:"buildTime"`
		FleetChatVersion string `json:"fleetChatVersion"`
	}
	require.NoError(t, json.Unmarshal(entries["metadata.json"], &metadata))
	require.Regexp(t, `^[0-9a-f]{64}$`, metadata.Checksum)
	require.Equal(t, result.Checksum, metadata.Checksum)
	require.Equal(t, "1.5.0", metadata.FleetChatVersion)

	_, err = time.Parse(time.RFC3339Nano, metadata.BuildTime)
	require.NoError(t, err)
}

// TestPackager_DemoScenario checks the minimal plugin end to end.
func TestPackager_DemoScenario(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "package.json"),
		`{"name":"demo","version":"1.0.0","description":"d","author":"a"}`)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "dist"), 0o755))

	out := filepath.Join(t.TempDir(), "demo.fcp")

	err := packager.Run(context.Background(), &packager.Options{SourceDir: dir, OutputPath: out})
	require.NoError(t, err)

	entries := archiveEntries(t, out)
	require.Equal(t, []string{"manifest.json", "metadata.json"}, sortedNames(entries))

	var metadata struct {
		Manifest struct {
			Commands    []any `json:"commands"`
			Permissions []any `json:"permissions"`
		} `json:"manifest"`
		Checksum         string `json:"checksum"`
		FleetChatVersion string `json:"fleetChatVersion"`
	}
	require.NoError(t, json.Unmarshal(entries["metadata.json"], &metadata))
	require.Equal(t, []any{}, metadata.Manifest.Commands)
	require.Equal(t, []any{}, metadata.Manifest.Permissions)
	require.Regexp(t, `^[0-9a-f]{64}$`, metadata.Checksum)
	require.Equal(t, config.DefaultFleetChatVersion, metadata.FleetChatVersion)
}
