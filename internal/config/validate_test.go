package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns defaults plus the one field Defaults cannot supply.
func validConfig() Config {
	cfg := Defaults()
	cfg.Model.APIKey = "sk-test"
	return cfg
}

func issuePaths(issues []ValidationIssue) []string {
	var paths []string
	for _, i := range issues {
		paths = append(paths, i.Path)
	}
	return paths
}

func TestValidate_ValidDefaults(t *testing.T) {
	cfg := validConfig()
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := Defaults()
	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "model.apiKey", issues[0].Path)
	assert.True(t, issues[0].Warning)
	assert.Contains(t, issues[0].String(), "(warning)")
	assert.Empty(t, Errors(issues))

	cfg.Model.Provider = "mock"
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_Port(t *testing.T) {
	cfg := validConfig()

	cfg.Gateway.Port = -1
	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "gateway.port", issues[0].Path)

	cfg.Gateway.Port = 70000
	assert.NotEmpty(t, Validate(&cfg))

	for _, port := range []int{0, 8080, 65535} {
		cfg.Gateway.Port = port
		assert.Empty(t, Validate(&cfg), "port %d should be valid", port)
	}
}

func TestValidate_Bind(t *testing.T) {
	cfg := validConfig()
	cfg.Gateway.Bind = "tailnet"
	assert.Equal(t, []string{"gateway.bind"}, issuePaths(Validate(&cfg)))

	cfg.Gateway.Bind = "custom"
	assert.Equal(t, []string{"gateway.customBindHost"}, issuePaths(Validate(&cfg)))

	cfg.Gateway.CustomBindHost = "10.0.0.5"
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_Logging(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "verbose"
	cfg.Logging.ConsoleStyle = "fancy"

	paths := issuePaths(Validate(&cfg))
	assert.Contains(t, paths, "logging.level")
	assert.Contains(t, paths, "logging.consoleStyle")
}

func TestValidate_Model(t *testing.T) {
	cfg := validConfig()
	cfg.Model.Provider = "gemini"
	assert.Contains(t, issuePaths(Validate(&cfg)), "model.provider")

	cfg = validConfig()
	hot := 1.5
	cfg.Model.Temperature = &hot
	assert.Equal(t, []string{"model.temperature"}, issuePaths(Validate(&cfg)))
}

func TestValidate_Chat(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"negative timeout", func(c *Config) { c.Chat.TimeoutSeconds = -1 }, "chat.timeoutSeconds"},
		{"negative recursion limit", func(c *Config) { c.Chat.RecursionLimit = -3 }, "chat.recursionLimit"},
		{"negative tool parallelism", func(c *Config) { c.Chat.MaxParallelTools = -1 }, "chat.maxParallelTools"},
		{"unknown role", func(c *Config) { c.Chat.AllowedRoles = []string{"parent", "janitor"} }, "chat.allowedRoles[1]"},
		{"unknown checkpoint store", func(c *Config) { c.Chat.CheckpointStore = "redis" }, "chat.checkpointStore"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.Equal(t, []string{tt.path}, issuePaths(Validate(&cfg)))
		})
	}
}

func TestValidationIssueString(t *testing.T) {
	issue := ValidationIssue{Path: "chat.timeoutSeconds", Message: "must not be negative, got -1"}
	assert.Equal(t, "chat.timeoutSeconds: must not be negative, got -1", issue.String())
}
