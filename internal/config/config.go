// Package config resolves runtime settings for the CLI. Precedence is
// defaults, then the optional YAML config file, then environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds everything the CLI needs to locate its state and decide
// how to log.
type Config struct {
	// StateDir is where the persisted stores live when the individual
	// file paths are not set explicitly.
	StateDir string `env:"CLOUDCRAVER_STATE_DIR" yaml:"state_dir"`

	RBACStateFile string `env:"CLOUDCRAVER_RBAC_STATE_FILE" yaml:"rbac_state_file"`
	ApprovalsFile string `env:"CLOUDCRAVER_APPROVALS_FILE" yaml:"approvals_file"`
	AuditLogFile  string `env:"CLOUDCRAVER_AUDIT_LOG" yaml:"audit_log_file"`

	// Actor is the resolved identity performing CLI operations. Usually
	// supplied per invocation via flag or CLOUDCRAVER_ACTOR.
	Actor string `env:"CLOUDCRAVER_ACTOR" yaml:"actor"`

	// ApproverRole is stamped onto new approval requests.
	ApproverRole string `env:"CLOUDCRAVER_APPROVER_ROLE" yaml:"approver_role"`

	LogLevel  string `env:"CLOUDCRAVER_LOG_LEVEL" yaml:"log_level"`
	LogFormat string `env:"CLOUDCRAVER_LOG_FORMAT" yaml:"log_format"`
}

// Default returns the baseline configuration. State lives under
// ~/.cloudcraver, falling back to the working directory when the home
// directory cannot be resolved.
func Default() Config {
	stateDir := ".cloudcraver"
	if home, err := os.UserHomeDir(); err == nil {
		stateDir = filepath.Join(home, ".cloudcraver")
	}
	return Config{
		StateDir:     stateDir,
		ApproverRole: "Approver",
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// Load builds the effective configuration. path names an optional YAML
// file; an empty path means "no config file". Environment variables are
// applied last and win.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}

	if cfg.RBACStateFile == "" {
		cfg.RBACStateFile = filepath.Join(cfg.StateDir, "rbac_state.json")
	}
	if cfg.ApprovalsFile == "" {
		cfg.ApprovalsFile = filepath.Join(cfg.StateDir, "approvals.json")
	}
	if cfg.AuditLogFile == "" {
		cfg.AuditLogFile = filepath.Join(cfg.StateDir, "audit.log")
	}
	return &cfg, nil
}
