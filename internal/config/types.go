package config

// Config is the root configuration for sprout.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
	Database DatabaseConfig `yaml:"database,omitempty"`
	Model    ModelConfig    `yaml:"model,omitempty"`
	Chat     ChatConfig     `yaml:"chat,omitempty"`
}

// GatewayConfig controls the gateway HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"`
}

// GatewayAuth configures the shared token the upstream backend presents.
type GatewayAuth struct {
	Token string `yaml:"token,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}

// DatabaseConfig locates the SQLite database holding threads, checkpoints
// and the school collections.
type DatabaseConfig struct {
	Path string `yaml:"path,omitempty"` // empty means <base>/data/sprout.db
}

// ModelConfig selects the chat model and its fallbacks.
type ModelConfig struct {
	Provider    string   `yaml:"provider,omitempty"` // "claude" | "mock"
	APIKey      string   `yaml:"apiKey,omitempty"`
	Model       string   `yaml:"model,omitempty"`
	Fallbacks   []string `yaml:"fallbacks,omitempty"`
	MaxTokens   int      `yaml:"maxTokens,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	Endpoint    string   `yaml:"endpoint,omitempty"`
}

// ChatConfig tunes the conversation service and the agent graph.
type ChatConfig struct {
	AgentName           string   `yaml:"agentName,omitempty"`
	TimeoutSeconds      int      `yaml:"timeoutSeconds,omitempty"`
	RecursionLimit      int      `yaml:"recursionLimit,omitempty"`
	AllowedRoles        []string `yaml:"allowedRoles,omitempty"`
	MaxParallelTools    int      `yaml:"maxParallelTools,omitempty"`
	TitleMaxLen         int      `yaml:"titleMaxLen,omitempty"`
	ExtraPrompt         string   `yaml:"extraPrompt,omitempty"`
	CheckpointCacheSize int      `yaml:"checkpointCacheSize,omitempty"`
	CheckpointStore     string   `yaml:"checkpointStore,omitempty"` // "sqlite" | "memory"
}
