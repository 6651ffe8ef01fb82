package camera

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"sync"
)

// Manager owns the live camera configuration. Updates are validated and
// pushed to the device through OnConfigChange before they become current.
type Manager struct {
	mu  sync.RWMutex
	cfg Config

	// OnConfigChange applies a validated config to the device. A non-nil
	// error leaves the current config in place.
	OnConfigChange func(cfg Config) error
}

// NewManager starts from cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// GetConfig returns the current configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// SetConfig replaces the whole configuration.
func (m *Manager) SetConfig(cfg Config) error {
	if problems := cfg.Validate(); len(problems) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, problems)
	}

	m.mu.RLock()
	apply := m.OnConfigChange
	m.mu.RUnlock()
	if apply != nil {
		if err := apply(cfg); err != nil {
			return fmt.Errorf("camera: apply config: %w", err)
		}
	}

	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return nil
}

// UpdateConfig merges a partial update, as decoded from a JSON request
// body, into the current configuration. Keys are the Config JSON names plus
// "preset", which is applied first and never changes the device. Unknown
// keys and mistyped values are rejected.
func (m *Manager) UpdateConfig(params map[string]any) error {
	cfg := m.GetConfig()
	fields := maps.Clone(params)

	if raw, ok := fields["preset"]; ok {
		delete(fields, "preset")
		name, _ := raw.(string)
		preset := GetPreset(name)
		if preset == nil {
			return fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, name)
		}
		device := cfg.Device
		cfg = *preset
		cfg.Device = device
	}

	if len(fields) > 0 {
		patch, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		dec := json.NewDecoder(bytes.NewReader(patch))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	return m.SetConfig(cfg)
}
