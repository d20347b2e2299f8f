package config

import "sort"

// Presets adjust the defaults for common runs.
var Presets = map[string]func(*Config){
	"quick": func(c *Config) {
		c.Label = "quick"
		c.Resolution = 200
		c.MaxWallSeconds = 30
		c.Workers = -1
	},
	"production": func(c *Config) {
		c.Label = "production"
		c.Resolution = 2000
		c.MaxWallSeconds = 600
		c.Workers = -1
		c.SaveTrajectories = true
		c.Downsample = 10
	},
	"fixed-potential": func(c *Config) {
		c.Label = "fixed"
		c.PotentialMode = "fixed"
		c.FixedEpoch = len(c.Galaxy.Epochs) - 1
	},
	"natural": func(c *Config) {
		c.Label = "natural"
		c.NaturalUnits = true
		c.Integrator = "leapfrog"
	},
}

// GetPreset returns the defaults with the named preset applied, or nil.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

// ApplyPreset applies the named preset on top of cfg.
func ApplyPreset(cfg *Config, name string) bool {
	apply, ok := Presets[name]
	if ok {
		apply(cfg)
	}
	return ok
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
