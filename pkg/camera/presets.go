package camera

import "slices"

// Preset is a named starting point for the capture settings.
type Preset struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	apply       func(*Config)
}

// presets in display order. Each one starts from DefaultConfig.
var presets = []Preset{
	{Name: "default", Description: "640x480 @ 30fps, the resolution the scan grid is tuned for"},
	{Name: "480p", Description: "alias of default"},
	{Name: "720p", Description: "1280x720, about four times the scan windows per cycle", apply: func(c *Config) {
		c.Width, c.Height = 1280, 720
	}},
	{Name: "1080p", Description: "1920x1080 @ 15fps", apply: func(c *Config) {
		c.Width, c.Height, c.Framerate = 1920, 1080, 15
	}},
	{Name: "night", Description: "10fps with extra gain for dim rooms", apply: func(c *Config) {
		c.Framerate = 10
		c.Brightness = 0.7
		c.Gain = 8
	}},
}

// Config builds the preset's configuration.
func (p Preset) Config() Config {
	cfg := DefaultConfig()
	if p.apply != nil {
		p.apply(&cfg)
	}
	return cfg
}

// Presets returns every preset in display order.
func Presets() []Preset {
	return slices.Clone(presets)
}

// PresetNames lists the preset names in display order.
func PresetNames() []string {
	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.Name
	}
	return names
}

// GetPreset returns the named preset's config, or nil if there is none.
func GetPreset(name string) *Config {
	for _, p := range presets {
		if p.Name == name {
			cfg := p.Config()
			return &cfg
		}
	}
	return nil
}
