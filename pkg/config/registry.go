package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrNotFound is returned when a named configuration does not exist.
	ErrNotFound = errors.New("configuration not found")
	// ErrInvalidName is returned for names that could escape the registry directory.
	ErrInvalidName = errors.New("invalid configuration name")
)

// Entry describes a configuration file available in a Registry directory.
type Entry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Registry lists the configurations of a directory and holds the active one.
// Loaded configurations are immutable; swapping the active one only affects
// conversations started afterwards.
type Registry struct {
	dir string

	mu     sync.RWMutex
	active *AgentConfig
	loaded map[string]*AgentConfig
}

// NewRegistry creates a registry over dir. The directory may not exist yet.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, loaded: make(map[string]*AgentConfig)}
}

// Dir returns the directory the registry reads from.
func (r *Registry) Dir() string { return r.dir }

// List returns the available configurations sorted by name.
func (r *Registry) List() ([]Entry, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}
	out := []Entry{}
	for _, e := range entries {
		if e.IsDir() || !isYAML(e.Name()) {
			continue
		}
		path := filepath.Join(r.dir, e.Name())
		out = append(out, Entry{Name: NameOf(path), Path: path})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Load reads the named configuration. Both "basic" and "basic.yaml" are accepted.
func (r *Registry) Load(name string) (*AgentConfig, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return nil, fmt.Errorf("%w %q", ErrInvalidName, name)
	}
	stem := strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")

	r.mu.RLock()
	cached, ok := r.loaded[stem]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(r.dir, stem+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg.Name = stem
		r.mu.Lock()
		r.loaded[stem] = cfg
		r.mu.Unlock()
		return cfg, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, stem)
}

// Activate loads the named configuration and makes it the active one.
func (r *Registry) Activate(name string) (*AgentConfig, error) {
	cfg, err := r.Load(name)
	if err != nil {
		return nil, err
	}
	r.Set(cfg)
	return cfg, nil
}

// Set installs cfg as the active configuration.
func (r *Registry) Set(cfg *AgentConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = cfg
	if cfg.Name != "" {
		r.loaded[cfg.Name] = cfg
	}
}

// Active returns the active configuration, or nil when none is loaded.
func (r *Registry) Active() *AgentConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Reload drops cached configurations so the next Load reads from disk.
func (r *Registry) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = make(map[string]*AgentConfig)
	if r.active != nil && r.active.Name != "" {
		r.loaded[r.active.Name] = r.active
	}
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
