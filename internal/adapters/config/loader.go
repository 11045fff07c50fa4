// Package config provides the configuration loader for depot.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.ConfigLoader = (*FileConfigLoader)(nil)

const (
	// Filename is the name of the configuration file.
	Filename = "depot.yaml"
	// AppName names the XDG subdirectories owned by depot.
	AppName = "depot"
	// DefaultRoot is the repository directory used when none is configured.
	DefaultRoot = "game"
)

// FileConfigLoader implements ports.ConfigLoader using a YAML file.
type FileConfigLoader struct {
	// WorkDir is searched before the XDG config directory. Empty means the process directory.
	WorkDir string
	Logger  ports.Logger
}

// NewLoader creates a loader searching the current directory.
func NewLoader(log ports.Logger) *FileConfigLoader {
	return &FileConfigLoader{Logger: log}
}

// Load reads the configuration at path. An empty path triggers discovery, and when nothing is
// found the defaults are returned.
func (l *FileConfigLoader) Load(path string) (domain.Config, error) {
	if path == "" {
		found, ok := l.discover()
		if !ok {
			return Defaults(), nil
		}
		path = found
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return domain.Config{}, zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", path)
	}
	return Parse(path, data)
}

// discover returns the first existing candidate: the working directory, then the XDG config
// directory.
func (l *FileConfigLoader) discover() (string, bool) {
	candidates := []string{
		filepath.Join(l.WorkDir, Filename),
		filepath.Join(xdg.ConfigHome, AppName, Filename),
	}
	for _, c := range candidates {
		info, err := os.Stat(c)
		if err == nil && !info.IsDir() {
			return c, true
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) && l.Logger != nil {
			l.Logger.Warn("skipping unreadable config " + c + ": " + err.Error())
		}
	}
	return "", false
}

// Defaults returns the configuration used when no file is present.
func Defaults() domain.Config {
	return domain.Config{
		Root:           DefaultRoot,
		CacheDir:       filepath.Join(xdg.CacheHome, AppName),
		Parallelism:    domain.DefaultConcurrency,
		IntegrityCheck: true,
		ConnectTimeout: domain.DefaultConnectTimeout,
		AttemptTimeout: domain.DefaultAttemptTimeout,
		SpeedInterval:  domain.DefaultSpeedInterval,
		VersionListURL: domain.DefaultVersionListURL,
		AssetBaseURL:   domain.DefaultAssetBaseURL,
		Platform:       domain.CurrentPlatform(),
	}
}

// Parse decodes and validates a depot.yaml document. Relative directories are resolved against
// the directory holding the file.
func Parse(path string, data []byte) (domain.Config, error) {
	var file Depotfile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return domain.Config{}, zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "path", path)
	}

	cfg := Defaults()
	base := filepath.Dir(path)

	if file.Root != "" {
		cfg.Root = resolvePath(base, file.Root)
	}
	if file.Cache != "" {
		cfg.CacheDir = resolvePath(base, file.Cache)
	}
	if file.Parallelism < 0 {
		return domain.Config{}, invalid(path, "parallelism", "must not be negative")
	}
	if file.Parallelism > 0 {
		cfg.Parallelism = file.Parallelism
	}
	if file.IntegrityCheck != nil {
		cfg.IntegrityCheck = *file.IntegrityCheck
	}
	if file.VersionList != "" {
		cfg.VersionListURL = file.VersionList
	}
	if file.AssetBase != "" {
		cfg.AssetBaseURL = file.AssetBase
	}

	durations := []struct {
		key   string
		value string
		dest  *time.Duration
	}{
		{"timeouts.connect", file.Timeouts.Connect, &cfg.ConnectTimeout},
		{"timeouts.attempt", file.Timeouts.Attempt, &cfg.AttemptTimeout},
		{"speedInterval", file.SpeedInterval, &cfg.SpeedInterval},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil || parsed <= 0 {
			return domain.Config{}, invalid(path, d.key, "must be a positive duration")
		}
		*d.dest = parsed
	}

	for i, m := range file.Mirrors {
		if m.Name == "" || len(m.Rewrite) == 0 {
			return domain.Config{}, zerr.With(invalid(path, "mirrors", "needs a name and a rewrite"), "index", i)
		}
		cfg.Mirrors = append(cfg.Mirrors, domain.Mirror{Name: m.Name, Rewrites: m.Rewrite})
	}

	if file.Platform.OS != "" {
		cfg.Platform.OS = file.Platform.OS
	}
	if file.Platform.Arch != "" {
		cfg.Platform.Arch = file.Platform.Arch
	}
	if len(file.Platform.Features) > 0 {
		cfg.Platform = cfg.Platform.WithFeatures(file.Platform.Features)
	}

	cfg.JSONLogs = file.Logging.JSON
	return cfg, nil
}

func resolvePath(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func invalid(path, key, reason string) error {
	return zerr.With(zerr.With(zerr.Wrap(domain.ErrInvalidField, reason), "key", key), "path", path)
}
