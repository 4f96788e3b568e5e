package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/sfm/internal/util"
	"gopkg.in/yaml.v3"
)

// Bytes per MB
const MB = 1024 * 1024

// CLI/config verbosity values. See [util.LevelFromVerbosity].
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultRoot          = "."
	DefaultListen        = "127.0.0.1:8080"
	DefaultDavPrefix     = "/dav/"
	DefaultFsName        = "sfm"
	DefaultName          = "sfm"
	DefaultLogLvl        = util.InfoLevel
	DefaultReadOnly      = false
	DefaultPathLocks     = true
	DefaultMaxUploadSize = 8 * 1024 * MB
	DefaultUploadMemory  = 16 * MB
	DefaultXSRFCookie    = "_sfm_xsrf"
)

// Config contains runtime configuration values for the file manager.
type Config struct {
	MountOptions
	Root          string        // Directory served to clients; canonicalized at startup (Default ".")
	Listen        string        // HTTP listen address; empty disables HTTP (Default 127.0.0.1:8080)
	DavPrefix     string        // URL prefix of the WebDAV handler; empty disables WebDAV (Default /dav/)
	LogLvl        util.LogLevel // Internal log level (Default info)
	Hidden        []string      // Extra paths (absolute or relative to Root) never listed nor resolvable
	ReadOnly      bool          // Refuse every mutation (Default false)
	PathLocks     bool          // Serialize overlapping in-process operations per path (Default true)
	MaxUploadSize int64         // Maximum request body for uploads in bytes (Default 8GB)
	UploadMemory  int64         // Multipart bytes kept in memory before spilling to disk (Default 16MB)
	XSRFCookie    string        // Name of the anti-forgery cookie (Default _sfm_xsrf)
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	Root          *string  `yaml:"root,omitempty" json:"root,omitempty"`
	Listen        *string  `yaml:"listen,omitempty" json:"listen,omitempty"`
	DavPrefix     *string  `yaml:"dav_prefix,omitempty" json:"dav_prefix,omitempty"`
	MountPoint    *string  `yaml:"mount_point,omitempty" json:"mount_point,omitempty"`
	FsName        *string  `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name          *string  `yaml:"name,omitempty" json:"name,omitempty"`
	LogLvl        *int     `yaml:"log_lvl,omitempty" json:"log_lvl,omitempty"` // verbosity 1 (error) .. 5 (trace)
	Hidden        []string `yaml:"hidden,omitempty" json:"hidden,omitempty"`
	ReadOnly      *bool    `yaml:"read_only,omitempty" json:"read_only,omitempty"`
	PathLocks     *bool    `yaml:"path_locks,omitempty" json:"path_locks,omitempty"`
	MaxUploadSize *int64   `yaml:"max_upload_size,omitempty" json:"max_upload_size,omitempty"`
	UploadMemory  *int64   `yaml:"upload_memory,omitempty" json:"upload_memory,omitempty"`
	XSRFCookie    *string  `yaml:"xsrf_cookie,omitempty" json:"xsrf_cookie,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
		},
		Root:          DefaultRoot,
		Listen:        DefaultListen,
		DavPrefix:     DefaultDavPrefix,
		LogLvl:        DefaultLogLvl,
		ReadOnly:      DefaultReadOnly,
		PathLocks:     DefaultPathLocks,
		MaxUploadSize: DefaultMaxUploadSize,
		UploadMemory:  DefaultUploadMemory,
		XSRFCookie:    DefaultXSRFCookie,
	}
}

// NewConfig creates a Config from defaults with override applied on top.
// A nil override yields the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
// Hidden entries are appended rather than replaced.
func (c *Config) Merge(override *ConfigOverride) {
	if override.Root != nil {
		c.Root = *override.Root
	}
	if override.Listen != nil {
		c.Listen = *override.Listen
	}
	if override.DavPrefix != nil {
		c.DavPrefix = *override.DavPrefix
	}
	if override.MountPoint != nil {
		c.MountPoint = *override.MountPoint
	}
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.LogLvl != nil {
		c.LogLvl = util.LevelFromVerbosity(*override.LogLvl)
		c.Debug = c.LogLvl == util.TraceLevel
	}
	if len(override.Hidden) > 0 {
		c.Hidden = append(c.Hidden, override.Hidden...)
	}
	if override.ReadOnly != nil {
		c.ReadOnly = *override.ReadOnly
	}
	if override.PathLocks != nil {
		c.PathLocks = *override.PathLocks
	}
	if override.MaxUploadSize != nil {
		c.MaxUploadSize = *override.MaxUploadSize
	}
	if override.UploadMemory != nil {
		c.UploadMemory = *override.UploadMemory
	}
	if override.XSRFCookie != nil {
		c.XSRFCookie = *override.XSRFCookie
	}
}

// Validate reports configuration values that cannot work at runtime.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Root) == "" {
		return fmt.Errorf("root must not be empty")
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("max_upload_size must be positive, got %d", c.MaxUploadSize)
	}
	if c.UploadMemory <= 0 {
		return fmt.Errorf("upload_memory must be positive, got %d", c.UploadMemory)
	}
	if c.XSRFCookie == "" {
		return fmt.Errorf("xsrf_cookie must not be empty")
	}
	if c.DavPrefix != "" && !strings.HasPrefix(c.DavPrefix, "/") {
		return fmt.Errorf("dav_prefix must start with '/': %q", c.DavPrefix)
	}
	return nil
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	return NewConfig(override), nil
}
