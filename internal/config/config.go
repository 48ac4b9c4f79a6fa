// Package config loads the secure shell's runtime configuration from
// an INI file, section [Settings]. The fixed key set mirrors what the
// original secure_shell.cpp reads via Boost's property_tree:
// MaxArgs, MaxArgLength, CommandTimeout, LogFile, LogRotateSize.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// Defaults mirror DEFAULT_* in the original C++ source.
const (
	DefaultPath          = "/etc/secure_shell.conf"
	DefaultMaxArgs        = 10
	DefaultMaxArgLength   = 100
	DefaultCommandTimeout = 30 // seconds
	DefaultLogFile        = "/var/log/secure_shell.log"
	DefaultLogRotateSize  = 1048576 // bytes

	// defaultLogRetainCount is fixed at 3 generations; it is not a
	// configurable INI key.
	defaultLogRetainCount = 3
)

// Config is the immutable, fully-resolved configuration used by every
// downstream component. It is never mutated after Load returns.
type Config struct {
	MaxArgs        int
	MaxArgLength   int
	CommandTimeout int
	LogFile        string
	LogRotateSize  int
	LogRetainCount int
}

// Load reads path as an INI file with a [Settings] section. A missing
// file is not an error — the compiled-in defaults apply, mirroring
// property_tree's get()-with-default behavior in the original source.
func Load(path string) (*Config, error) {
	cfg := &Config{
		MaxArgs:        DefaultMaxArgs,
		MaxArgLength:   DefaultMaxArgLength,
		CommandTimeout: DefaultCommandTimeout,
		LogFile:        DefaultLogFile,
		LogRotateSize:  DefaultLogRotateSize,
		LogRetainCount: defaultLogRetainCount,
	}

	file, err := ini.LoadSources(ini.LoadOptions{Loose: true}, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %q: %w", path, err)
	}

	section := file.Section("Settings")
	cfg.MaxArgs = section.Key("MaxArgs").MustInt(DefaultMaxArgs)
	cfg.MaxArgLength = section.Key("MaxArgLength").MustInt(DefaultMaxArgLength)
	cfg.CommandTimeout = section.Key("CommandTimeout").MustInt(DefaultCommandTimeout)
	cfg.LogFile = section.Key("LogFile").MustString(DefaultLogFile)
	cfg.LogRotateSize = section.Key("LogRotateSize").MustInt(DefaultLogRotateSize)

	if cfg.MaxArgs <= 0 {
		return nil, fmt.Errorf("MaxArgs must be positive, got %d", cfg.MaxArgs)
	}
	if cfg.MaxArgLength <= 0 {
		return nil, fmt.Errorf("MaxArgLength must be positive, got %d", cfg.MaxArgLength)
	}
	if cfg.CommandTimeout <= 0 {
		return nil, fmt.Errorf("CommandTimeout must be positive, got %d", cfg.CommandTimeout)
	}
	if cfg.LogRotateSize <= 0 {
		return nil, fmt.Errorf("LogRotateSize must be positive, got %d", cfg.LogRotateSize)
	}

	return cfg, nil
}
