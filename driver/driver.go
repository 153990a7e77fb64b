// Package driver stands in for the storage layer's SQL binding: a small,
// in-process evaluator that drives the hll package the way the database
// extension's aggregate and scalar functions would, without requiring an
// actual database. It's the thing a host embedding this module as a
// library-level emulation of the extension would build a real SQL binding
// on top of.
package driver

import (
	"fmt"
	"sync"

	"github.com/digoal/go-hll"
)

// Session holds a set of named sketches and the Config they're serialized
// under, the in-process equivalent of a database session's GUC scope plus
// its table rows.
type Session struct {
	cfg *hll.Config

	mu       sync.Mutex
	sketches map[string]hll.Hll
}

// NewSession returns a Session with its own Config, independent of the
// package-level DefaultConfig.
func NewSession() *Session {
	return &Session{
		cfg:      hll.NewConfig(),
		sketches: make(map[string]hll.Hll),
	}
}

// Config returns the session's Config, so a caller can tune the
// max_sparse/output_version knobs that Dump serializes under. Create always
// takes explicit settings; default settings installed on this Config are
// not read.
func (s *Session) Config() *hll.Config {
	return s.cfg
}

// Create registers a new, empty named sketch with the given settings. It
// returns an error if the name is already in use or the settings are
// invalid.
func (s *Session) Create(name string, settings hll.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sketches[name]; exists {
		return fmt.Errorf("driver: sketch %q already exists", name)
	}

	h, err := hll.NewHll(settings)
	if err != nil {
		return err
	}

	s.sketches[name] = h
	return nil
}

// Add adds value, an already-hashed raw value (see hll.Hasher), to the
// named sketch. It does no hashing itself.
func (s *Session) Add(name string, value uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, exists := s.sketches[name]
	if !exists {
		return fmt.Errorf("driver: no such sketch %q", name)
	}

	h.AddRaw(value)
	s.sketches[name] = h
	return nil
}

// Union replaces dst's sketch with the union of dst and src, using the
// permissive Union (not StrictUnion): the driver is meant for ad hoc
// exploration, where combining dissimilar settings should degrade rather
// than fail outright.
func (s *Session) Union(dst, src string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, exists := s.sketches[dst]
	if !exists {
		return fmt.Errorf("driver: no such sketch %q", dst)
	}
	srcH, exists := s.sketches[src]
	if !exists {
		return fmt.Errorf("driver: no such sketch %q", src)
	}

	d.Union(srcH)
	s.sketches[dst] = d
	return nil
}

// Cardinality returns the estimated cardinality of the named sketch. ok is
// false if the sketch is UNDEFINED.
func (s *Session) Cardinality(name string) (estimate float64, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, exists := s.sketches[name]
	if !exists {
		return 0, false, fmt.Errorf("driver: no such sketch %q", name)
	}

	return h.Cardinality()
}

// Debug returns a human-readable dump of the named sketch's type and
// parameters, the driver-level equivalent of the wire `print` operation.
func (s *Session) Debug(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, exists := s.sketches[name]
	if !exists {
		return "", fmt.Errorf("driver: no such sketch %q", name)
	}

	return h.Debug(), nil
}

// Dump serializes the named sketch using the session's Config.
func (s *Session) Dump(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, exists := s.sketches[name]
	if !exists {
		return nil, fmt.Errorf("driver: no such sketch %q", name)
	}

	return h.ToBytesWithConfig(s.cfg), nil
}

// Load decodes bytes and registers it under name, replacing any existing
// sketch of that name.
func (s *Session) Load(name string, bytes []byte) error {
	h, err := hll.FromBytes(bytes)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sketches[name] = h
	return nil
}
