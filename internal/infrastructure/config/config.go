package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the gateway's top-level configuration.
type Config struct {
	Gateway      GatewayConfig      `mapstructure:"gateway"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Log          LogConfig          `mapstructure:"log"`
	Policy       PolicyConfig       `mapstructure:"policy"`
	Scanners     ScannersConfig     `mapstructure:"scanners"`
	Classifier   ClassifierConfig   `mapstructure:"classifier"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Session      SessionConfig      `mapstructure:"session"`
	Approval     ApprovalConfig     `mapstructure:"approval"`
	Sandbox      SandboxConfig      `mapstructure:"sandbox"`
	Providers    []LLMProviderConfig `mapstructure:"providers"`
	PlannerModel string             `mapstructure:"planner_model"`
	WorkerModel  string             `mapstructure:"worker_model"`
}

// GatewayConfig configures the HTTP transport.
type GatewayConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release
}

// DatabaseConfig configures the persistence backend for approvals and
// provenance records.
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // sqlite, postgres
	DSN  string `mapstructure:"dsn"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PolicyConfig locates the policy document and the workspace it constrains.
type PolicyConfig struct {
	DocumentPath  string `mapstructure:"document_path"`
	WorkspacePath string `mapstructure:"workspace_path"`
	HotReload     bool   `mapstructure:"hot_reload"`
}

// ScannersConfig holds overrides for the deterministic scan pipeline.
type ScannersConfig struct {
	CredentialPatterns    []PatternConfig `mapstructure:"credential_patterns"`
	SensitivePathPatterns []string        `mapstructure:"sensitive_path_patterns"`
	CommandExtraPatterns  []PatternConfig `mapstructure:"command_extra_patterns"`
	SpotlightingEnabled   bool            `mapstructure:"spotlighting_enabled"`
}

// PatternConfig is a named regex pattern, e.g. a credential or command rule.
type PatternConfig struct {
	Name    string `mapstructure:"name"`
	Pattern string `mapstructure:"pattern"`
}

// ClassifierConfig configures the optional injection classifier sidecar.
type ClassifierConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	Required         bool    `mapstructure:"required"`
	Endpoint         string  `mapstructure:"endpoint"`
	ConfidenceThresh float64 `mapstructure:"confidence_threshold"`
}

// ConversationConfig configures the multi-turn risk analyser.
type ConversationConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	WarnThreshold  float64 `mapstructure:"warn_threshold"`
	BlockThreshold float64 `mapstructure:"block_threshold"`
}

// SessionConfig configures the in-memory session store.
type SessionConfig struct {
	TTL      time.Duration `mapstructure:"ttl"`
	MaxCount int           `mapstructure:"max_count"`
}

// ApprovalConfig configures the human-approval queue.
type ApprovalConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// SandboxConfig configures the process sandbox tool executor runs against.
type SandboxConfig struct {
	WorkDir       string        `mapstructure:"work_dir"`
	TempDir       string        `mapstructure:"temp_dir"`
	Timeout       time.Duration `mapstructure:"timeout"`
	AllowedBins   []string      `mapstructure:"allowed_bins"`
	EnableNetwork bool          `mapstructure:"enable_network"`
}

// LLMProviderConfig configures one Go-native LLM provider for the router.
type LLMProviderConfig struct {
	Name     string   `mapstructure:"name"`
	Type     string   `mapstructure:"type"` // openai, anthropic, gemini
	BaseURL  string   `mapstructure:"base_url"`
	APIKey   string   `mapstructure:"api_key"`
	Models   []string `mapstructure:"models"`
	Priority int      `mapstructure:"priority"`
}

// Load reads the gateway configuration with the same layered precedence the
// original agent CLI used: defaults → global ~/.sentinelgate/config.yaml →
// project-local ./config/config.yaml or ./config.yaml (merged) → env vars.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	globalDir := filepath.Join(os.Getenv("HOME"), AppConfigDirName)
	v.AddConfigPath(globalDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read global config: %w", err)
		}
	}

	for _, localDir := range []string{"./config", "."} {
		localPath := filepath.Join(localDir, "config.yaml")
		if _, err := os.Stat(localPath); err == nil {
			v2 := viper.New()
			v2.SetConfigFile(localPath)
			if err := v2.ReadInConfig(); err == nil {
				_ = v.MergeConfigMap(v2.AllSettings())
			}
			break
		}
	}

	v.SetEnvPrefix("SENTINELGATE")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 18789)
	v.SetDefault("gateway.mode", "release")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "sentinelgate.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("policy.document_path", filepath.Join(os.Getenv("HOME"), AppConfigDirName, "policy.yaml"))
	v.SetDefault("policy.workspace_path", "/workspace")
	v.SetDefault("policy.hot_reload", true)

	v.SetDefault("scanners.spotlighting_enabled", true)

	v.SetDefault("classifier.enabled", false)
	v.SetDefault("classifier.required", false)
	v.SetDefault("classifier.confidence_threshold", 0.8)

	v.SetDefault("conversation.enabled", true)
	v.SetDefault("conversation.warn_threshold", 0.5)
	v.SetDefault("conversation.block_threshold", 0.8)

	v.SetDefault("session.ttl", "1h")
	v.SetDefault("session.max_count", 10000)

	v.SetDefault("approval.timeout", "5m")

	v.SetDefault("sandbox.timeout", "30s")
	v.SetDefault("sandbox.enable_network", true)

	v.SetDefault("planner_model", "anthropic/claude-3-5-sonnet")
	v.SetDefault("worker_model", "openai/gpt-4o-mini")
}
