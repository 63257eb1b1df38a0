package config

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load returns Defaults overlaid with the YAML file at path and the
// SPROUT_* environment. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, &ConfigError{Message: fmt.Sprintf("parse %s: %v", path, err)}
		}
		fillDefaults(&cfg)
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	for _, field := range []*string{&cfg.Gateway.Auth.Token, &cfg.Model.APIKey, &cfg.Database.Path} {
		*field = expandEnvRefs(*field)
	}
	return cfg, nil
}

// fillDefaults restores defaults for fields a file left zero, for
// instance an empty "chat:" section.
func fillDefaults(cfg *Config) {
	d := Defaults()
	cfg.Gateway.Port = cmp.Or(cfg.Gateway.Port, d.Gateway.Port)
	cfg.Gateway.Bind = cmp.Or(cfg.Gateway.Bind, d.Gateway.Bind)
	cfg.Logging.Level = cmp.Or(cfg.Logging.Level, d.Logging.Level)
	cfg.Logging.ConsoleStyle = cmp.Or(cfg.Logging.ConsoleStyle, d.Logging.ConsoleStyle)
	cfg.Model.Provider = cmp.Or(cfg.Model.Provider, d.Model.Provider)
	cfg.Model.Model = cmp.Or(cfg.Model.Model, d.Model.Model)
	cfg.Model.MaxTokens = cmp.Or(cfg.Model.MaxTokens, d.Model.MaxTokens)
	cfg.Chat.AgentName = cmp.Or(cfg.Chat.AgentName, d.Chat.AgentName)
	cfg.Chat.TimeoutSeconds = cmp.Or(cfg.Chat.TimeoutSeconds, d.Chat.TimeoutSeconds)
	cfg.Chat.RecursionLimit = cmp.Or(cfg.Chat.RecursionLimit, d.Chat.RecursionLimit)
	cfg.Chat.MaxParallelTools = cmp.Or(cfg.Chat.MaxParallelTools, d.Chat.MaxParallelTools)
	cfg.Chat.TitleMaxLen = cmp.Or(cfg.Chat.TitleMaxLen, d.Chat.TitleMaxLen)
	cfg.Chat.CheckpointCacheSize = cmp.Or(cfg.Chat.CheckpointCacheSize, d.Chat.CheckpointCacheSize)
	cfg.Chat.CheckpointStore = cmp.Or(cfg.Chat.CheckpointStore, d.Chat.CheckpointStore)
	if len(cfg.Chat.AllowedRoles) == 0 {
		cfg.Chat.AllowedRoles = d.Chat.AllowedRoles
	}
}

// envOverride binds one SPROUT_* variable to a config field.
type envOverride struct {
	name  string
	apply func(cfg *Config, value string) error
}

func setString(field func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		*field(cfg) = v
		return nil
	}
}

func setInt(field func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("not a number: %q", v)
		}
		*field(cfg) = n
		return nil
	}
}

var envOverrides = []envOverride{
	{"SPROUT_GATEWAY_PORT", setInt(func(c *Config) *int { return &c.Gateway.Port })},
	{"SPROUT_GATEWAY_BIND", setString(func(c *Config) *string { return &c.Gateway.Bind })},
	{"SPROUT_GATEWAY_TOKEN", setString(func(c *Config) *string { return &c.Gateway.Auth.Token })},
	{"SPROUT_LOG_LEVEL", func(c *Config, v string) error {
		c.Logging.Level = strings.ToLower(v)
		return nil
	}},
	{"SPROUT_DB_PATH", setString(func(c *Config) *string { return &c.Database.Path })},
	{"SPROUT_MODEL", setString(func(c *Config) *string { return &c.Model.Model })},
	{"SPROUT_API_KEY", setString(func(c *Config) *string { return &c.Model.APIKey })},
	{"SPROUT_CHAT_TIMEOUT_SECONDS", setInt(func(c *Config) *int { return &c.Chat.TimeoutSeconds })},
}

// applyEnv applies every non-empty override. The API key also falls back
// to ANTHROPIC_API_KEY when neither the file nor SPROUT_API_KEY set one.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	for _, o := range envOverrides {
		v, ok := lookup(o.name)
		if !ok || v == "" {
			continue
		}
		if err := o.apply(cfg, v); err != nil {
			errs = append(errs, &ConfigError{Message: o.name + ": " + err.Error()})
		}
	}
	if cfg.Model.APIKey == "" {
		if v, ok := lookup("ANTHROPIC_API_KEY"); ok {
			cfg.Model.APIKey = v
		}
	}
	return errors.Join(errs...)
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_]\w*)\}`)

// expandEnvRefs substitutes ${VAR} references so secrets can stay out of
// the file. References to unset variables are kept verbatim.
func expandEnvRefs(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		if v, ok := os.LookupEnv(envRef.FindStringSubmatch(ref)[1]); ok {
			return v
		}
		return ref
	})
}

// LoadRaw reads the config file as a generic map for the config
// subcommands. A missing file yields an empty map.
func LoadRaw(path string) (map[string]any, error) {
	raw := map[string]any{}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return raw, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("parse %s: %v", path, err)}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw replaces the config file with raw. The file is written next to
// its destination and renamed, so readers never see a partial file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
