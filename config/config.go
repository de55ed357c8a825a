package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v2"
)

// DefaultLocation is the config file consulted when --config is not
// given. The file is optional; every value has a default.
var DefaultLocation = defaultConfigLocation()

var (
	mu            sync.RWMutex
	_config       *Configuration
	_debugViaFlag bool
)

// TraversalConfiguration tunes the recursive walkers shared by the
// tools that descend directory trees.
type TraversalConfiguration struct {
	// UnreadableDirBlocks is the number of 512-byte blocks charged for
	// a directory whose contents cannot be listed and whose own stat
	// reports zero blocks. The platform default (-1 sentinel) matches
	// what GNU du shows: one 4K allocation on Linux, nothing on macOS.
	UnreadableDirBlocks int64 `default:"-1" json:"unreadable_dir_blocks" yaml:"unreadable_dir_blocks"`

	// DefaultExcludes is prepended to every tool's --exclude list.
	DefaultExcludes []string `json:"default_excludes" yaml:"default_excludes"`
}

// OutputConfiguration controls diagnostic rendering.
type OutputConfiguration struct {
	// Colors enables colored log output on capable terminals.
	Colors bool `default:"true" json:"colors" yaml:"colors"`
}

type Configuration struct {
	// The location from which this configuration was loaded, empty when
	// running on pure defaults.
	path string

	// Debug enables verbose walk logging.
	Debug bool `json:"debug" yaml:"debug"`

	Traversal TraversalConfiguration `json:"traversal" yaml:"traversal"`
	Output    OutputConfiguration    `json:"output" yaml:"output"`

	// Umask is the process umask captured at startup. Mode arithmetic
	// needs the value without racing other goroutines through the
	// umask(2) side channel, so it is read exactly once.
	Umask uint32 `json:"-" yaml:"-"`
}

// NewDefault builds a configuration from struct tag defaults plus the
// platform specific values. The global instance is untouched.
func NewDefault() (*Configuration, error) {
	var c Configuration
	if err := defaults.Set(&c); err != nil {
		return nil, err
	}
	applyPlatformDefaults(&c)
	c.Umask = captureUmask()
	return &c, nil
}

// Set replaces the global configuration instance.
func Set(c *Configuration) {
	mu.Lock()
	if _debugViaFlag {
		c.Debug = true
	}
	_config = c
	mu.Unlock()
}

// SetDebugViaFlag tracks debug mode enabled by a command line flag
// rather than the configuration file.
func SetDebugViaFlag(d bool) {
	mu.Lock()
	_config.Debug = d
	_debugViaFlag = d
	mu.Unlock()
}

// Get returns the global configuration instance, initializing it from
// defaults on first use.
func Get() *Configuration {
	mu.RLock()
	if _config != nil {
		c := *_config
		mu.RUnlock()
		return &c
	}
	mu.RUnlock()
	c, err := NewDefault()
	if err != nil {
		panic(err)
	}
	Set(c)
	return c
}

// FromFile reads the configuration at path into the global instance. A
// missing file at the default location is not an error; the defaults
// simply apply.
func FromFile(path string) error {
	c, err := NewDefault()
	if err != nil {
		return err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == DefaultLocation {
			Set(c)
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return err
	}
	if c.Traversal.UnreadableDirBlocks < 0 {
		applyPlatformDefaults(c)
	}
	c.path = path
	Set(c)
	return nil
}

func defaultConfigLocation() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "coreutils", "config.yml")
	}
	return "/etc/coreutils/config.yml"
}
