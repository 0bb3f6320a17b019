package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store wraps a Config document behind a RWMutex, persisting it to path
// atomically after every successful mutation.
type Store struct {
	path string

	mu  sync.RWMutex
	cfg Config
}

// Load reads path, falling back to DefaultConfig and writing it immediately
// if the file doesn't exist. A malformed existing file is a fatal startup
// error.
func Load(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s.cfg = DefaultConfig()
		if err := s.save(); err != nil {
			return nil, fmt.Errorf("store: writing default config: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: reading %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("store: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("store: %s: %w", path, err)
	}
	s.cfg = cfg
	return s, nil
}

// save writes the in-memory document to a temp file in the same directory,
// then renames it over path: a reader never observes a partial write.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

// Snapshot returns a copy of the entire document.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// SetGeneral validates and replaces the general section.
func (s *Store) SetGeneral(g GeneralConfig) error {
	if err := g.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.General = g
	return s.save()
}

// SetInverters validates and replaces the inverters section.
func (s *Store) SetInverters(invs []InverterConfig) error {
	if err := validateInverters(invs); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Inverters = invs
	return s.save()
}

// SetDataManager validates and replaces the data_manager section.
func (s *Store) SetDataManager(dm DataManagerConfig) error {
	if err := dm.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.DataManager = dm
	return s.save()
}

// SetManual validates and replaces the mode_manual section.
func (s *Store) SetManual(m ManualConfig) error {
	if err := m.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.ModeManual = m
	return s.save()
}

// SetStatic validates, sorts, and replaces the mode_static section.
func (s *Store) SetStatic(st StaticConfig) error {
	if err := st.validate(); err != nil {
		return err
	}
	st.Schedule = st.sorted()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.ModeStatic = st
	return s.save()
}

// SetDynamic replaces the reserved mode_dynamic section. No validation is
// defined for its opaque contents.
func (s *Store) SetDynamic(d DynamicConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.ModeDynamic = d
	return s.save()
}

// EnabledInverters returns only the Enable==true inverters.
func (c Config) EnabledInverters() []InverterConfig {
	out := make([]InverterConfig, 0, len(c.Inverters))
	for _, inv := range c.Inverters {
		if inv.Enable {
			out = append(out, inv)
		}
	}
	return out
}

// PhaseInverterMap maps each phase to the names of its enabled inverters
// (possibly empty).
func (c Config) PhaseInverterMap() map[Phase][]string {
	out := map[Phase][]string{PhaseL1: nil, PhaseL2: nil, PhaseL3: nil}
	for _, inv := range c.EnabledInverters() {
		out[inv.ConnectedPhase] = append(out[inv.ConnectedPhase], inv.Name)
	}
	return out
}
