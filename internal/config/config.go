// Package config loads wasm-relink settings from defaults, an optional
// relink.toml file and RELINK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/wippyai/wasm-relink/callconv"
)

const (
	// AppName is the application name.
	AppName = "relink"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "relink"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "toml"
	// EnvPrefix prefixes every environment override, e.g. RELINK_SENTINEL.
	EnvPrefix = "RELINK"
)

// Config holds every tunable of the relink tools.
type Config struct {
	Sentinel string `mapstructure:"sentinel"`
	// LibraryPath lists extra directories the bootstrap loader searches
	// for library modules.
	LibraryPath []string       `mapstructure:"library_path"`
	Entry       EntryConfig    `mapstructure:"entry"`
	CallConv    CallConvConfig `mapstructure:"callconv"`
	Log         LogConfig      `mapstructure:"log"`
}

// EntryConfig names the well-known entry type and methods the bootstrap
// loader calls.
type EntryConfig struct {
	Type       string `mapstructure:"type"`
	Initialize string `mapstructure:"initialize"`
	Shutdown   string `mapstructure:"shutdown"`
}

// CallConvConfig overrides the disassembly dialect of the patcher.
type CallConvConfig struct {
	TypeOpen    string `mapstructure:"type_open"`
	TypeClose   string `mapstructure:"type_close"`
	MethodOpen  string `mapstructure:"method_open"`
	MethodClose string `mapstructure:"method_close"`
	Marker      string `mapstructure:"marker"`
	Trampoline  string `mapstructure:"trampoline"`
	Modifier    string `mapstructure:"modifier"`
}

// Dialect converts the settings into a patcher dialect.
func (c CallConvConfig) Dialect() callconv.Dialect {
	return callconv.Dialect{
		TypeOpen:    c.TypeOpen,
		TypeClose:   c.TypeClose,
		MethodOpen:  c.MethodOpen,
		MethodClose: c.MethodClose,
		Marker:      c.Marker,
		Trampoline:  c.Trampoline,
		Modifier:    c.Modifier,
	}
}

func callConvConfig(d callconv.Dialect) CallConvConfig {
	return CallConvConfig{
		TypeOpen:    d.TypeOpen,
		TypeClose:   d.TypeClose,
		MethodOpen:  d.MethodOpen,
		MethodClose: d.MethodClose,
		Marker:      d.Marker,
		Trampoline:  d.Trampoline,
		Modifier:    d.Modifier,
	}
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// LoadOptions controls where Load looks for a config file.
type LoadOptions struct {
	// ConfigFilePath, when set, is the only file read and must exist.
	ConfigFilePath string
	// ConfigDirPath overrides ConfigDir.
	ConfigDirPath string
	// SkipWorkingDir disables the lookup of relink.toml in the working directory.
	SkipWorkingDir bool
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Sentinel:    "__Internal",
		LibraryPath: []string{},
		Entry: EntryConfig{
			Type:       "Runtime.Engine",
			Initialize: "InternalInitialize",
			Shutdown:   "InternalShutdown",
		},
		CallConv: callConvConfig(callconv.DefaultDialect()),
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ConfigDir returns $XDG_CONFIG_HOME/relink, defaulting to ~/.config/relink.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, AppName), nil
}

// Load resolves the configuration and returns it with the path of the file
// that was read ("" when only defaults and environment were used).
func Load(opts LoadOptions) (*Config, string, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("sentinel", defaults.Sentinel)
	v.SetDefault("library_path", defaults.LibraryPath)
	v.SetDefault("entry.type", defaults.Entry.Type)
	v.SetDefault("entry.initialize", defaults.Entry.Initialize)
	v.SetDefault("entry.shutdown", defaults.Entry.Shutdown)
	v.SetDefault("callconv.type_open", defaults.CallConv.TypeOpen)
	v.SetDefault("callconv.type_close", defaults.CallConv.TypeClose)
	v.SetDefault("callconv.method_open", defaults.CallConv.MethodOpen)
	v.SetDefault("callconv.method_close", defaults.CallConv.MethodClose)
	v.SetDefault("callconv.marker", defaults.CallConv.Marker)
	v.SetDefault("callconv.trampoline", defaults.CallConv.Trampoline)
	v.SetDefault("callconv.modifier", defaults.CallConv.Modifier)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.development", defaults.Log.Development)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := resolveFile(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(ConfigFileExt)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Sentinel == "" {
		return nil, "", errors.New("invalid config: sentinel must not be empty")
	}
	return &cfg, path, nil
}

func resolveFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", fmt.Errorf("config file not found: %s", opts.ConfigFilePath)
		}
		return opts.ConfigFilePath, nil
	}

	name := ConfigFileName + "." + ConfigFileExt
	if !opts.SkipWorkingDir && fileExists(name) {
		return name, nil
	}

	dir := opts.ConfigDirPath
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	if p := filepath.Join(dir, name); fileExists(p) {
		return p, nil
	}
	return "", nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
