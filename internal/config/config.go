package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultPort             = 18790
	DefaultModel            = "claude-sonnet-4-5"
	DefaultMaxTokens        = 4096
	DefaultAgentName        = "Sprout"
	DefaultTimeoutSeconds   = 30
	DefaultRecursionLimit   = 15
	DefaultMaxParallelTools = 4
	DefaultTitleMaxLen      = 50
	DefaultCheckpointCache  = 256
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: DefaultPort,
			Bind: "loopback",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
		Model: ModelConfig{
			Provider:  "claude",
			Model:     DefaultModel,
			MaxTokens: DefaultMaxTokens,
		},
		Chat: ChatConfig{
			AgentName:           DefaultAgentName,
			TimeoutSeconds:      DefaultTimeoutSeconds,
			RecursionLimit:      DefaultRecursionLimit,
			AllowedRoles:        []string{"parent", "admin"},
			MaxParallelTools:    DefaultMaxParallelTools,
			TitleMaxLen:         DefaultTitleMaxLen,
			CheckpointCacheSize: DefaultCheckpointCache,
			CheckpointStore:     "sqlite",
		},
	}
}
