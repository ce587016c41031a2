package plugin

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

const (
	// ManifestFilename is the archive entry holding the Manifest.
	ManifestFilename = "manifest.json"
	// MetadataFilename is the archive entry holding the Metadata.
	MetadataFilename = "metadata.json"
	// BuildTimeLayout is the ISO-8601 layout of Metadata.BuildTime.
	BuildTimeLayout = time.RFC3339Nano
)

var (
	// ErrMissingDescriptor means the plugin directory has no descriptor file.
	ErrMissingDescriptor = errors.New("package.json not found in plugin directory")
	// ErrInvalidDescriptor means the descriptor is not a JSON object or lacks a required key.
	ErrInvalidDescriptor = errors.New("invalid package.json")
)

// Descriptor is the plugin metadata declared by the project.
// Values are kept as written; their shape belongs to the host.
// A nil field means the key was not declared.
type Descriptor struct {
	Name        json.RawMessage
	Version     json.RawMessage
	Description json.RawMessage
	Author      json.RawMessage
	// Icon usually holds a path relative to the plugin directory.
	Icon        json.RawMessage
	Commands    json.RawMessage
	Permissions json.RawMessage
}

// Manifest is the subset of the descriptor read by the host at runtime.
// Field order is the order of keys in manifest.json.
type Manifest struct {
	Name        json.RawMessage `json:"name"`
	Version     json.RawMessage `json:"version"`
	Description json.RawMessage `json:"description"`
	Author      json.RawMessage `json:"author"`
	Icon        json.RawMessage `json:"icon"`
	Commands    json.RawMessage `json:"commands"`
	Permissions json.RawMessage `json:"permissions"`
}

// emptyList is written for commands and permissions that were not declared.
var emptyList = json.RawMessage("[]")

// NewManifest projects the descriptor. An undeclared icon encodes as null,
// undeclared commands and permissions as [].
func NewManifest(d *Descriptor) *Manifest {
	m := &Manifest{
		Name:        d.Name,
		Version:     d.Version,
		Description: d.Description,
		Author:      d.Author,
		Icon:        d.Icon,
		Commands:    d.Commands,
		Permissions: d.Permissions,
	}

	if m.Commands == nil {
		m.Commands = emptyList
	}

	if m.Permissions == nil {
		m.Permissions = emptyList
	}

	return m.Clone()
}

// IconPath returns the declared icon path, or "" unless the icon is a non-empty string.
func (m *Manifest) IconPath() string {
	return Text(m.Icon)
}

// Clone returns a deep copy of the manifest.
func (m *Manifest) Clone() *Manifest {
	if m == nil {
		return nil
	}

	return &Manifest{
		Name:        cloneRaw(m.Name),
		Version:     cloneRaw(m.Version),
		Description: cloneRaw(m.Description),
		Author:      cloneRaw(m.Author),
		Icon:        cloneRaw(m.Icon),
		Commands:    cloneRaw(m.Commands),
		Permissions: cloneRaw(m.Permissions),
	}
}

// Text returns the string held by a raw JSON value, or "" for any other value.
func Text(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}

	return s
}

// Metadata is the manifest plus build provenance, stored as metadata.json.
type Metadata struct {
	Manifest *Manifest `json:"manifest"`
	// Checksum is the lowercase hex SHA-256 of the unsealed archive, empty until sealed.
	Checksum         string `json:"checksum"`
	BuildTime        string `json:"buildTime"`
	FleetChatVersion string `json:"fleetChatVersion"`
}

// NewMetadata returns unsealed metadata built at buildTime.
func NewMetadata(m *Manifest, buildTime time.Time, fleetChatVersion string) *Metadata {
	return &Metadata{
		Manifest:         m.Clone(),
		Checksum:         "",
		BuildTime:        buildTime.Format(BuildTimeLayout),
		FleetChatVersion: fleetChatVersion,
	}
}

// Seal records the archive checksum.
func (md *Metadata) Seal(checksum string) {
	md.Checksum = checksum
}

// IsSealed reports whether a checksum has been recorded.
func (md *Metadata) IsSealed() bool {
	return md.Checksum != ""
}

// Encode renders v as two-space indented JSON with a trailing newline.
// HTML characters are left unescaped so descriptions round-trip as written.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}

	return append(json.RawMessage{}, raw...)
}
