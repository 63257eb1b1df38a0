package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".sprout"

// Paths are the on-disk locations sprout uses. Base defaults to
// ~/.sprout; config.yaml, logs/ and data/ live under it.
type Paths struct {
	Base   string
	Config string
	Logs   string
	Data   string
}

// ResolvePaths computes the standard paths, honoring SPROUT_HOME.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("SPROUT_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Logs:   filepath.Join(base, "logs"),
		Data:   filepath.Join(base, "data"),
	}, nil
}

// EnsureDirs creates the base, log and data directories, private to the
// current user since the database holds children's records.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Logs, p.Data} {
		if d == "" {
			continue
		}
		if err := os.MkdirAll(d, 0o700); err != nil {
			return &ConfigError{Message: "creating " + d + ": " + err.Error()}
		}
	}
	return nil
}

// LogFile resolves a configured log file: relative names land in the
// logs directory, empty stays empty.
func (p Paths) LogFile(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.Logs, name)
}

// DatabasePath returns the configured database path, or the default
// location under the data directory.
func (p Paths) DatabasePath(cfg Config) string {
	if cfg.Database.Path == ":memory:" || filepath.IsAbs(cfg.Database.Path) {
		return cfg.Database.Path
	}
	if cfg.Database.Path != "" {
		return filepath.Join(p.Data, cfg.Database.Path)
	}
	return filepath.Join(p.Data, "sprout.db")
}
