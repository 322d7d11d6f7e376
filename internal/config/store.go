package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/micro-nova/imx415-go/internal/models"
	"github.com/pelletier/go-toml/v2"
	"sigs.k8s.io/yaml"
)

const debounceDelay = 500 * time.Millisecond

// Store persists the device configuration.
type Store interface {
	// Load returns the stored configuration, or Defaults if none exists.
	Load() (Device, error)

	// Save persists d. Implementations may debounce rapid saves.
	Save(d Device) error

	// Path returns the backing file path.
	Path() string

	// Flush forces an immediate write of any pending save.
	Flush() error
}

// Load reads a configuration file. Files ending in .toml are parsed as
// TOML, .yaml and .yml as YAML, anything else as JSON. Fields missing from the file keep their
// default values. A missing file yields Defaults.
func Load(path string) (Device, error) {
	d := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return d, nil
		}
		return d, err
	}
	switch formatOf(path) {
	case formatTOML:
		err = toml.Unmarshal(data, &d)
	case formatYAML:
		err = yaml.Unmarshal(data, &d)
	default:
		err = json.Unmarshal(data, &d)
	}
	if err != nil {
		return Defaults(), models.ErrConfig(fmt.Sprintf("parse %s: %v", path, err))
	}
	normalize(&d)
	return d, nil
}

type fileFormat int

const (
	formatJSON fileFormat = iota
	formatTOML
	formatYAML
)

func formatOf(path string) fileFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return formatTOML
	case ".yaml", ".yml":
		return formatYAML
	}
	return formatJSON
}

func encode(path string, d Device) ([]byte, error) {
	switch formatOf(path) {
	case formatTOML:
		return toml.Marshal(d)
	case formatYAML:
		return yaml.Marshal(d)
	}
	return json.MarshalIndent(d, "", "  ")
}

// FileStore is an atomic file store with debounced writes.
type FileStore struct {
	mu      sync.Mutex
	path    string
	timer   *time.Timer
	pending *Device
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file path used by this store.
func (s *FileStore) Path() string { return s.path }

// Load reads the configuration from disk.
func (s *FileStore) Load() (Device, error) {
	return Load(s.path)
}

// Save schedules a debounced write of d. The write happens after 500ms of
// no further Save calls.
func (s *FileStore) Save(d Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := d.clone()
	s.pending = &cp

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(debounceDelay, func() {
		if err := s.Flush(); err != nil {
			slog.Error("config: failed to write config", "path", s.path, "err", err)
		}
	})
	return nil
}

// Flush writes any pending configuration immediately.
func (s *FileStore) Flush() error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	d := s.pending
	s.pending = nil
	s.mu.Unlock()
	if d == nil {
		return nil
	}
	return WriteFile(s.path, *d)
}

// WriteFile writes d to path atomically (temp file, then rename).
func WriteFile(path string, d Device) error {
	data, err := encode(path, d)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// MemStore is an in-memory Store for tests that never writes to disk.
type MemStore struct {
	mu sync.Mutex
	d  *Device
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (m *MemStore) Load() (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.d == nil {
		return Defaults(), nil
	}
	return m.d.clone(), nil
}

func (m *MemStore) Save(d Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := d.clone()
	m.d = &cp
	return nil
}

// Path returns ":memory:".
func (m *MemStore) Path() string { return ":memory:" }

// Flush is a no-op.
func (m *MemStore) Flush() error { return nil }

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemStore)(nil)
)

func (d Device) clone() Device {
	cp := d
	cp.SupplyPins = append([]string(nil), d.SupplyPins...)
	if d.Controls != nil {
		cp.Controls = make(map[string]int64, len(d.Controls))
		for k, v := range d.Controls {
			cp.Controls[k] = v
		}
	}
	return cp
}
