package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePaths(t *testing.T) {
	t.Setenv("SPROUT_HOME", "/srv/sprout")
	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, Paths{
		Base:   "/srv/sprout",
		Config: "/srv/sprout/config.yaml",
		Logs:   "/srv/sprout/logs",
		Data:   "/srv/sprout/data",
	}, paths)

	t.Setenv("SPROUT_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	paths, err = ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".sprout"), paths.Base)
	assert.Equal(t, filepath.Join(home, ".sprout", "data"), paths.Data)
}

func TestEnsureDirsIsPrivateAndIdempotent(t *testing.T) {
	base := filepath.Join(t.TempDir(), "sprout")
	paths := Paths{Base: base, Logs: filepath.Join(base, "logs"), Data: filepath.Join(base, "data")}

	require.NoError(t, paths.EnsureDirs())
	require.NoError(t, paths.EnsureDirs())

	for _, dir := range []string{paths.Base, paths.Logs, paths.Data} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, os.FileMode(0o700), info.Mode().Perm(), dir)
	}
}

func TestEnsureDirsReportsConfigError(t *testing.T) {
	file := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	err := Paths{Base: file, Data: filepath.Join(file, "data")}.EnsureDirs()
	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestDatabasePath(t *testing.T) {
	paths := Paths{Data: "/srv/sprout/data"}
	tests := map[string]string{
		"":                   "/srv/sprout/data/sprout.db",
		"school.db":          "/srv/sprout/data/school.db",
		"/var/lib/sprout.db": "/var/lib/sprout.db",
		":memory:":           ":memory:",
	}
	for configured, want := range tests {
		cfg := Defaults()
		cfg.Database.Path = configured
		assert.Equal(t, want, paths.DatabasePath(cfg), "database.path=%q", configured)
	}
}

func TestLogFile(t *testing.T) {
	paths := Paths{Logs: "/srv/sprout/logs"}
	assert.Empty(t, paths.LogFile(""))
	assert.Equal(t, "/srv/sprout/logs/sprout.log", paths.LogFile("sprout.log"))
	assert.Equal(t, "/var/log/sprout.log", paths.LogFile("/var/log/sprout.log"))
}
