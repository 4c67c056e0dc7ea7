package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// AppName is the canonical application name.
const AppName = "sentinelgate"

// AppConfigDirName is the directory name used under $HOME for global config.
const AppConfigDirName = "." + AppName

// HomeDir returns the gateway's configuration home: ~/.sentinelgate
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, AppConfigDirName)
}

// Bootstrap ensures the ~/.sentinelgate directory exists with default
// content. Called once at startup. Safe to call multiple times — only
// creates missing items, never overwrites an operator's edits.
func Bootstrap(logger *zap.Logger) error {
	root := HomeDir()

	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("create dir %s: %w", root, err)
	}

	defaults := map[string]string{
		filepath.Join(root, "config.yaml"): defaultConfig,
		filepath.Join(root, "policy.yaml"): defaultPolicy,
	}

	created := 0
	for path, content := range defaults {
		if _, err := os.Stat(path); err == nil {
			continue // already exists, never overwrite
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			logger.Warn("failed to write default file", zap.String("path", path), zap.Error(err))
			continue
		}
		created++
	}

	if created > 0 {
		logger.Info("gateway bootstrap complete", zap.String("home", root), zap.Int("files_created", created))
	} else {
		logger.Debug("gateway home directory OK", zap.String("home", root))
	}

	return nil
}

const defaultConfig = `# Sentinel gateway configuration — auto-generated on first launch.
# Safe to edit; re-running bootstrap never overwrites this file.

gateway:
  host: 0.0.0.0
  port: 18789
  mode: release

database:
  type: sqlite
  dsn: sentinelgate.db

log:
  level: info
  format: json

policy:
  document_path: ~/.sentinelgate/policy.yaml
  workspace_path: /workspace
  hot_reload: true

scanners:
  spotlighting_enabled: true

classifier:
  enabled: false
  required: false
  confidence_threshold: 0.8

conversation:
  enabled: true
  warn_threshold: 0.5
  block_threshold: 0.8

session:
  ttl: 1h
  max_count: 10000

approval:
  timeout: 5m

sandbox:
  timeout: 30s
  enable_network: true

planner_model: ""   # e.g. "anthropic/claude-3-5-sonnet"
worker_model: ""     # e.g. "openai/gpt-4o-mini"

# providers:
#   - name: anthropic
#     type: anthropic
#     base_url: "https://api.anthropic.com/v1"
#     api_key: "sk-ant-..."
#     models: ["claude-3-5-sonnet"]
#     priority: 1
providers: []
`

const defaultPolicy = `# Sentinel gateway policy document — auto-generated on first launch.
# Hot-reloaded on save when policy.hot_reload is true.

file_access:
  read_allowed:
    - "/workspace/**"
  write_allowed:
    - "/workspace/**"
  blocked:
    - "/etc/shadow"
    - "~/.ssh/**"

commands:
  allowed:
    - ls
    - cat
    - grep
    - find
    - git
  path_constrained:
    - cp
    - mv
    - rm
  blocked_patterns:
    - "rm -rf /"

credential_patterns:
  - name: aws_access_key
    pattern: "AKIA[0-9A-Z]{16}"

sensitive_path_patterns:
  - "/etc/shadow"
  - "~/.ssh/id_rsa"
`
