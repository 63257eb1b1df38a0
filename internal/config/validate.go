package config

import (
	"fmt"
	"slices"

	"github.com/soyeahso/sprout/internal/logging"
)

// ValidationIssue describes a problem with a config value. Warnings leave
// sprout runnable with reduced function; anything else is fatal.
type ValidationIssue struct {
	Path    string
	Message string
	Warning bool
}

func (v ValidationIssue) String() string {
	if v.Warning {
		return fmt.Sprintf("%s: %s (warning)", v.Path, v.Message)
	}
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Errors returns the issues that are not warnings.
func Errors(issues []ValidationIssue) []ValidationIssue {
	var out []ValidationIssue
	for _, issue := range issues {
		if !issue.Warning {
			out = append(out, issue)
		}
	}
	return out
}

var (
	validBinds         = []string{"loopback", "lan", "custom"}
	validConsoleStyles = []string{"pretty", "compact", "json"}
	validProviders     = []string{"claude", "mock"}
	validRoles         = []string{"parent", "teacher", "admin"}
	validCheckpoints   = []string{"sqlite", "memory"}
)

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		add("gateway.customBindHost", "required when bind is custom")
	}

	// Logging validation
	if cfg.Logging.Level != "" && !logging.ValidLevel(cfg.Logging.Level) {
		add("logging.level", "must be one of silent, fatal, error, warn, info, debug, trace, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	// Model validation
	if cfg.Model.Provider != "" && !slices.Contains(validProviders, cfg.Model.Provider) {
		add("model.provider", "must be one of %v, got %q", validProviders, cfg.Model.Provider)
	}
	if cfg.Model.Provider == "claude" && cfg.Model.APIKey == "" {
		issues = append(issues, ValidationIssue{
			Path:    "model.apiKey",
			Message: "not set; chat turns fail until a key is configured",
			Warning: true,
		})
	}
	if cfg.Model.MaxTokens < 0 {
		add("model.maxTokens", "must not be negative, got %d", cfg.Model.MaxTokens)
	}
	if t := cfg.Model.Temperature; t != nil && (*t < 0 || *t > 1) {
		add("model.temperature", "must be between 0 and 1, got %v", *t)
	}

	// Chat validation
	if cfg.Chat.TimeoutSeconds < 0 {
		add("chat.timeoutSeconds", "must not be negative, got %d", cfg.Chat.TimeoutSeconds)
	}
	if cfg.Chat.RecursionLimit < 0 {
		add("chat.recursionLimit", "must not be negative, got %d", cfg.Chat.RecursionLimit)
	}
	if cfg.Chat.MaxParallelTools < 0 {
		add("chat.maxParallelTools", "must not be negative, got %d", cfg.Chat.MaxParallelTools)
	}
	for i, role := range cfg.Chat.AllowedRoles {
		if !slices.Contains(validRoles, role) {
			add(fmt.Sprintf("chat.allowedRoles[%d]", i), "must be one of %v, got %q", validRoles, role)
		}
	}
	if cfg.Chat.CheckpointStore != "" && !slices.Contains(validCheckpoints, cfg.Chat.CheckpointStore) {
		add("chat.checkpointStore", "must be one of %v, got %q", validCheckpoints, cfg.Chat.CheckpointStore)
	}

	return issues
}
