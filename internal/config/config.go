// SPDX-License-Identifier: MPL-2.0

// Package config loads hassctl configuration from defaults, an optional
// YAML config file, and HASS_* environment variables (highest priority).
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"

	"hassctl/internal/issue"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name, used for config and data directories.
	AppName = "hassctl"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "yaml"

	// DefaultServer is the Home Assistant API base URL used when HASS_SERVER is unset.
	DefaultServer = "http://homeassistant.local:8123"
	// DefaultSSHHost is the SSH host used when HASS_SSH_HOST is unset.
	DefaultSSHHost = "homeassistant.local"
	// DefaultSSHPort is the SSH port used when HASS_SSH_PORT is unset.
	DefaultSSHPort = 22
	// DefaultRegistryPath is the entity registry location on the Home Assistant host.
	DefaultRegistryPath = "/homeassistant/.storage/core.entity_registry"
	// DefaultBackupKeep is the number of backups 'backup clean' retains by default.
	DefaultBackupKeep = 10
)

type (
	// Config holds all hassctl settings.
	Config struct {
		// Server is the Home Assistant base URL (http:// or https://).
		Server string `mapstructure:"server"`
		// Token is the long-lived access token for the WebSocket and REST APIs.
		Token string `mapstructure:"token"`
		// SSH holds the transport settings for registry file access.
		SSH SSHConfig `mapstructure:"ssh"`
		// RegistryPath is the entity registry path on the Home Assistant host.
		RegistryPath string `mapstructure:"registry_path"`
		// BackupDir is the local directory for registry backups.
		BackupDir string `mapstructure:"backup_dir"`
		// BackupKeep is the default retention count for 'backup clean'.
		BackupKeep int `mapstructure:"backup_keep"`
	}

	// SSHConfig holds SSH connection settings for the Home Assistant host.
	SSHConfig struct {
		Host    string `mapstructure:"host"`
		User    string `mapstructure:"user"`
		Port    int    `mapstructure:"port"`
		KeyFile string `mapstructure:"key_file"`
	}
)

// configFilePathOverride allows the --config flag to bypass discovery.
var configFilePathOverride string

// SetConfigFilePathOverride sets an explicit config file path (from --config).
func SetConfigFilePathOverride(path string) {
	configFilePathOverride = path
}

// ConfigDir returns the hassctl configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// DataDir returns the hassctl data directory ($XDG_DATA_HOME/hassctl, or
// ~/.local/share/hassctl), which holds registry backups by default.
func DataDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, AppName), nil
}

// DefaultConfig returns the built-in defaults. SSH user falls back to the
// current OS user; the key file to ~/.ssh/id_ed25519 then ~/.ssh/id_rsa.
func DefaultConfig() *Config {
	return &Config{
		Server: DefaultServer,
		SSH: SSHConfig{
			Host:    DefaultSSHHost,
			User:    currentUsername(),
			Port:    DefaultSSHPort,
			KeyFile: defaultKeyFile(),
		},
		RegistryPath: DefaultRegistryPath,
		BackupKeep:   DefaultBackupKeep,
	}
}

// Load reads configuration from defaults, the config file (if present), and
// HASS_* environment variables. A missing config file is not an error.
func Load() (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("server", defaults.Server)
	v.SetDefault("token", "")
	v.SetDefault("ssh.host", defaults.SSH.Host)
	v.SetDefault("ssh.user", defaults.SSH.User)
	v.SetDefault("ssh.port", defaults.SSH.Port)
	v.SetDefault("ssh.key_file", defaults.SSH.KeyFile)
	v.SetDefault("registry_path", defaults.RegistryPath)
	v.SetDefault("backup_dir", "")
	v.SetDefault("backup_keep", defaults.BackupKeep)

	// Environment bindings keep the variable names the original tooling used.
	bindings := map[string]string{
		"server":       "HASS_SERVER",
		"token":        "HASS_TOKEN",
		"ssh.host":     "HASS_SSH_HOST",
		"ssh.user":     "HASS_SSH_USER",
		"ssh.port":     "HASS_SSH_PORT",
		"ssh.key_file": "HASS_SSH_KEY",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if configFilePathOverride != "" {
		if !fileExists(configFilePathOverride) {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(configFilePathOverride).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				Wrap(fmt.Errorf("config file not found: %s", configFilePathOverride)).
				BuildError()
		}
		v.SetConfigFile(configFilePathOverride)
		if err := v.ReadInConfig(); err != nil {
			return nil, wrapConfigReadError(err, configFilePathOverride)
		}
	} else {
		cfgDir, err := ConfigDir()
		if err != nil {
			return nil, err
		}

		// $XDG_CONFIG_HOME/hassctl/config.yaml first, then ./hassctl.yaml.
		cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
		localPath := AppName + "." + ConfigFileExt
		switch {
		case fileExists(cfgPath):
			v.SetConfigFile(cfgPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, wrapConfigReadError(err, cfgPath)
			}
		case fileExists(localPath):
			v.SetConfigFile(localPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, wrapConfigReadError(err, localPath)
			}
		}
		// If no config file found, use defaults (no error).
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.BackupDir == "" {
		dataDir, err := DataDir()
		if err != nil {
			return nil, err
		}
		cfg.BackupDir = filepath.Join(dataDir, "backups")
	}

	return &cfg, nil
}

// RequireToken validates that an API token is configured. Commands that talk
// to the WebSocket or REST API call this before connecting.
func (c *Config) RequireToken() error {
	if c.Token != "" {
		return nil
	}
	return issue.NewErrorContext().
		WithOperation("read API token").
		WithSuggestion("Set the HASS_TOKEN environment variable to a long-lived access token").
		WithSuggestion("Create one in Home Assistant under Profile → Security → Long-lived access tokens").
		Wrap(fmt.Errorf("no token configured")).
		BuildError()
}

// SSHAddress returns the host:port dial address for the SSH transport.
func (c *Config) SSHAddress() string {
	return fmt.Sprintf("%s:%d", c.SSH.Host, c.SSH.Port)
}

func wrapConfigReadError(err error, path string) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid YAML").
		WithSuggestion("See 'hassctl --help' for configuration options").
		Wrap(err).
		BuildError()
}

// currentUsername returns the OS user name, or empty when unavailable.
func currentUsername() string {
	u, err := user.Current()
	if err != nil {
		return ""
	}
	return u.Username
}

// defaultKeyFile picks the first existing standard SSH key, preferring ed25519.
func defaultKeyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	for _, name := range []string{"id_ed25519", "id_rsa"} {
		path := filepath.Join(home, ".ssh", name)
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
