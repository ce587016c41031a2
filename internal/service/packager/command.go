package packager

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/sternelee/fleet-chat/internal/archive"
	"github.com/sternelee/fleet-chat/internal/config"
	"github.com/sternelee/fleet-chat/internal/domain/plugin"
	"github.com/sternelee/fleet-chat/internal/logger"
	"github.com/sternelee/fleet-chat/internal/repository/descriptor"
)

const (
	distDir   = "dist"
	assetsDir = "assets"
	kibibyte  = 1024
)

var (
	// ErrMissingDescriptor is returned when the plugin directory has no package.json.
	ErrMissingDescriptor = plugin.ErrMissingDescriptor
	// ErrInvalidDescriptor is returned when package.json is unparseable or lacks a required field.
	ErrInvalidDescriptor = plugin.ErrInvalidDescriptor
	// ErrPackaging wraps every filesystem, archive or hashing failure.
	ErrPackaging = errors.New("packaging failed")

	errSourceRequired = errors.New("plugin directory must be provided")
	errOutputRequired = errors.New("output path must be provided")
)

// Options contains inputs for the packager entry point.
type Options struct {
	// SourceDir is the plugin directory holding package.json.
	SourceDir string
	// OutputPath is where the .fcp archive is written; an existing file is replaced.
	OutputPath string
	// Config holds resolved settings. When nil they are read from ConfigPath.
	Config *config.Config
	// ConfigPath is an optional settings file. When empty, fleet-pack.yaml is used if present.
	ConfigPath string
	// FleetChatVersion overrides the configured host compatibility version.
	FleetChatVersion string
	// Fs is the filesystem to work on. Nil means the OS filesystem.
	Fs afero.Fs
	// Now is the clock used for the build time. Nil means time.Now.
	Now func() time.Time
}

// Result describes a finished package.
type Result struct {
	// OutputPath is the absolute path of the archive.
	OutputPath string
	// Size is the archive size in bytes.
	Size int64
	// Checksum is the sealed first-pass checksum, equal to Metadata.Checksum.
	Checksum string
	// Metadata is the content of metadata.json in the archive.
	Metadata *plugin.Metadata
	// Entries lists the archive content.
	Entries []archive.Entry
}

// packager holds the state of a single packaging run.
type packager struct {
	cfg        *config.Config
	fs         afero.Fs
	now        func() time.Time
	sourceDir  string
	outputPath string
	repo       descriptor.Repository
}

// Run packages the plugin and reports success or failure only.
func Run(ctx context.Context, opts *Options) error {
	_, err := Pack(ctx, opts)

	return err
}

// Pack packages opts.SourceDir into opts.OutputPath.
func Pack(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "fleet-pack")

	p, err := newPackager(opts)
	if err != nil {
		return nil, err
	}

	return p.pack(ctx)
}

// newPackager resolves paths, loads settings and applies option overrides.
func newPackager(opts *Options) (*packager, error) {
	if opts.SourceDir == "" {
		return nil, errSourceRequired
	}

	if opts.OutputPath == "" {
		return nil, errOutputRequired
	}

	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	cfg, err := loadConfig(fs, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: load settings: %w", ErrPackaging, err)
	}

	sourceDir, err := filepath.Abs(opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve plugin directory: %w", ErrPackaging, err)
	}

	outputPath, err := filepath.Abs(opts.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve output path: %w", ErrPackaging, err)
	}

	return &packager{
		cfg:        cfg,
		fs:         fs,
		now:        now,
		sourceDir:  sourceDir,
		outputPath: outputPath,
		repo:       descriptor.NewFileRepository(fs, sourceDir),
	}, nil
}

// loadConfig returns a copy of opts.Config, or the settings at opts.ConfigPath,
// with the version override applied.
func loadConfig(fs afero.Fs, opts *Options) (*config.Config, error) {
	cfg := new(config.Config)

	if opts.Config != nil {
		*cfg = *opts.Config
	} else {
		resolved, err := config.Resolve(fs, opts.ConfigPath)
		if err != nil {
			return nil, err
		}

		cfg = resolved
	}

	if opts.FleetChatVersion != "" {
		cfg.FleetChatVersion = opts.FleetChatVersion
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// pack runs the packaging steps in order. The staging area, including one left
// behind by an earlier run, is removed on every path.
func (p *packager) pack(ctx context.Context) (result *Result, err error) {
	logger.InfoKV(ctx, "Packing plugin", "source", p.sourceDir)

	stagingDir := filepath.Join(p.sourceDir, p.cfg.StagingDir)

	defer func() {
		if removeErr := archive.RemoveStaging(p.fs, stagingDir); removeErr != nil {
			err = multierr.Append(err, fmt.Errorf("%w: remove staging area: %w", ErrPackaging, removeErr))
			result = nil
		}
	}()

	desc, err := p.repo.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrMissingDescriptor) || errors.Is(err, ErrInvalidDescriptor) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %w", ErrPackaging, err)
	}

	manifest := plugin.NewManifest(desc)
	logger.InfoKV(ctx, "Loaded plugin descriptor",
		"name", plugin.Text(manifest.Name), "version", plugin.Text(manifest.Version))

	staging, err := archive.PrepareStaging(p.fs, stagingDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPackaging, err)
	}

	if err = p.stage(ctx, staging, manifest); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPackaging, err)
	}

	metadata := plugin.NewMetadata(manifest, p.now(), p.cfg.FleetChatVersion)

	entries, err := p.seal(ctx, staging, metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPackaging, err)
	}

	info, err := p.fs.Stat(p.outputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: stat archive: %w", ErrPackaging, err)
	}

	logger.InfoKV(ctx, "Plugin packed successfully", "output", p.outputPath)
	logger.Infof(ctx, "Package size: %d bytes (%.2f KB)", info.Size(), float64(info.Size())/kibibyte)

	return &Result{
		OutputPath: p.outputPath,
		Size:       info.Size(),
		Checksum:   metadata.Checksum,
		Metadata:   metadata,
		Entries:    entries,
	}, nil
}

// stage copies dist, assets and the icon, and writes manifest.json.
func (p *packager) stage(ctx context.Context, staging *archive.Staging, manifest *plugin.Manifest) error {
	for _, dir := range []string{distDir, assetsDir} {
		copied, err := staging.CopyTree(filepath.Join(p.sourceDir, dir), dir)
		if err != nil {
			return err
		}

		logger.DebugKV(ctx, "Staged directory", "dir", dir, "present", copied)
	}

	if icon := manifest.IconPath(); icon != "" {
		if !filepath.IsAbs(icon) {
			icon = filepath.Join(p.sourceDir, icon)
		}

		copied, err := staging.CopyFile(icon)
		if err != nil {
			return err
		}

		if !copied {
			logger.WarnKV(ctx, "Icon not found, skipping", "icon", icon)
		}
	}

	data, err := plugin.Encode(manifest)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	return staging.WriteFile(plugin.ManifestFilename, data)
}

// seal writes the unsealed archive, hashes it, and rewrites it with the checksum recorded.
func (p *packager) seal(ctx context.Context, staging *archive.Staging, metadata *plugin.Metadata) ([]archive.Entry, error) {
	if _, err := p.writeArchive(ctx, staging, metadata, "first"); err != nil {
		return nil, err
	}

	checksum, err := archive.Checksum(p.fs, p.outputPath)
	if err != nil {
		return nil, err
	}

	metadata.Seal(checksum)
	logger.InfoKV(ctx, "Computed archive checksum", "sha256", checksum)

	return p.writeArchive(ctx, staging, metadata, "second")
}

func (p *packager) writeArchive(
	ctx context.Context,
	staging *archive.Staging,
	metadata *plugin.Metadata,
	pass string,
) ([]archive.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := plugin.Encode(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	if err = staging.WriteFile(plugin.MetadataFilename, data); err != nil {
		return nil, err
	}

	entries, err := archive.WriteZip(p.fs, staging.Dir(), p.outputPath, p.cfg.CompressionLevel)
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Wrote archive pass", "pass", pass, "entries", len(entries))

	return entries, nil
}
