package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	configPathEnv     = "AGENTCHAT_CONFIG_PATH"
	defaultConfigDir  = ".agentchat"
	defaultConfigName = "agentchat.yaml"
)

// ResolveConfigPath returns the configuration file path and its source label.
// Priority order:
//  1. Explicit AGENTCHAT_CONFIG_PATH.
//  2. ./agentchat.yaml when it exists.
//  3. $HOME/.agentchat/agentchat.yaml.
func ResolveConfigPath(envLookup EnvLookup, homeDir func() (string, error), exists func(string) bool) (string, string) {
	if envLookup == nil {
		envLookup = DefaultEnvLookup
	}
	if exists == nil {
		exists = fileExists
	}
	if value, ok := envLookup(configPathEnv); ok {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed, configPathEnv
		}
	}
	if exists(defaultConfigName) {
		return defaultConfigName, "cwd"
	}

	if homeDir == nil {
		homeDir = os.UserHomeDir
	}
	if home, err := homeDir(); err == nil && strings.TrimSpace(home) != "" {
		return filepath.Join(home, defaultConfigDir, defaultConfigName), "default"
	}
	return defaultConfigName, "fallback"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
