package hll

import (
	"sync"

	"github.com/pkg/errors"
)

// AutoMaxSparse tells the wire codec to choose between SPARSE and COMPRESSED
// by comparing encoded bit counts rather than a fixed register-count cutoff.
const AutoMaxSparse = -1

// OutputVersion is the only wire version this package knows how to produce.
// SetOutputVersion exists so callers ported from the database extension's
// "set_output_version" GUC can still call it, but it only ever accepts this
// one value.
const OutputVersion = 1

// Config is the ambient, process-wide configuration the database extension
// kept as GUC variables and C statics: the output schema version, the
// max_sparse knob that steers the SPARSE/COMPRESSED choice on serialize, and
// the default parameters a zero-value Hll is lazily constructed with.
//
// A *Config is safe for concurrent use; reads and writes are guarded by an
// internal mutex. Most programs never construct one directly and instead
// use the package-level convenience functions, which operate on a single
// shared default instance (DefaultConfig) -- the Go analogue of "process
// globals" for a single-process embedding. Programs that need per-session
// isolation (e.g. a connection-pooled host emulating multiple GUC scopes)
// should construct their own *Config and thread it explicitly instead of
// relying on the shared instance.
type Config struct {
	mu             sync.RWMutex
	outputVersion  int
	maxSparse      int
	defaults       *settings
	defaultsPublic Settings
	hasDefaults    bool
}

// NewConfig returns a Config with the extension's boot defaults:
// output_version=1, max_sparse=-1 (auto), and no default parameters
// installed (operations against the zero-value Hll will panic until
// SetDefaults is called).
func NewConfig() *Config {
	return &Config{
		outputVersion: OutputVersion,
		maxSparse:     AutoMaxSparse,
	}
}

// DefaultConfig is the package-level ambient Config used by the zero-value
// Hll and by the free functions Defaults, SetMaxSparse and
// SetOutputVersion.
var DefaultConfig = NewConfig()

// SetOutputVersion installs the wire schema version to emit. Only 1 is
// accepted; any other value returns ErrInvalidParameter and leaves the
// config unchanged.
func (c *Config) SetOutputVersion(v int) error {
	if v != OutputVersion {
		return ErrInvalidParameter
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputVersion = v
	return nil
}

// OutputVersion returns the configured wire schema version.
func (c *Config) OutputVersion() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.outputVersion
}

// SetMaxSparse installs the max_sparse knob. n must be >= -1.
func (c *Config) SetMaxSparse(n int) error {
	if n < AutoMaxSparse {
		return ErrInvalidParameter
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxSparse = n
	return nil
}

// MaxSparse returns the configured max_sparse knob.
func (c *Config) MaxSparse() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxSparse
}

// SetDefaults installs default parameters on c. A zero-value Hll lazily
// adopts the defaults of DefaultConfig only (see Defaults); the defaults of
// any other Config are not read by the sketch engine. It is an error to
// install a different set of defaults once any have already been installed.
func (c *Config) SetDefaults(s Settings) error {
	internal, err := s.toInternal()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasDefaults && internal != c.defaults {
		return errors.Wrap(ErrContextMisuse, "different default settings have already been installed")
	}

	c.defaults = internal
	c.defaultsPublic = s
	c.hasDefaults = true
	return nil
}

// Defaults returns the installed default Settings and whether any have been
// installed.
func (c *Config) Defaults() (Settings, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultsPublic, c.hasDefaults
}

func (c *Config) defaultSettings() *settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaults
}

// Defaults installs default settings on the package-level DefaultConfig. It
// is recommended to call this function once at initialization time and
// never again.
func Defaults(s Settings) error {
	return DefaultConfig.SetDefaults(s)
}

// SetMaxSparse installs the max_sparse knob on the package-level
// DefaultConfig.
func SetMaxSparse(n int) error {
	return DefaultConfig.SetMaxSparse(n)
}

// SetOutputVersion installs the output schema version on the package-level
// DefaultConfig.
func SetOutputVersion(v int) error {
	return DefaultConfig.SetOutputVersion(v)
}

func getDefaults() *settings {
	return DefaultConfig.defaultSettings()
}
