package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/kicksim/internal/cosmology"
	"github.com/san-kum/kicksim/internal/ensemble"
	"github.com/san-kum/kicksim/internal/galaxy"
	"github.com/san-kum/kicksim/internal/integrators"
	"github.com/san-kum/kicksim/internal/orbit"
	"github.com/san-kum/kicksim/internal/units"
)

const (
	DefaultIntegrator     = "rk4"
	DefaultMaxWallSeconds = 120.0
	DefaultResolution     = 1000
	DefaultDownsample     = 1
	DefaultOutputDir      = "runs"
)

var ErrInvalid = errors.New("config: invalid value")

type Config struct {
	Integrator       string  `yaml:"integrator"`
	NaturalUnits     bool    `yaml:"natural_units"`
	MaxWallSeconds   float64 `yaml:"max_wall_seconds"`
	Resolution       int     `yaml:"resolution"`
	PotentialMode    string  `yaml:"potential_mode"`
	FixedEpoch       int     `yaml:"fixed_epoch"`
	SaveTrajectories bool    `yaml:"save_trajectories"`
	Downsample       int     `yaml:"downsample"`
	Workers          int     `yaml:"workers"`
	StopAtMerger     bool    `yaml:"stop_at_merger"`
	Seed             int64   `yaml:"seed"`
	TinspMax         float64 `yaml:"tinsp_max"`
	Label            string  `yaml:"label"`
	OutputDir        string  `yaml:"output_dir"`

	Scale     ScaleConfig     `yaml:"scale"`
	Cosmology CosmologyConfig `yaml:"cosmology"`
	Galaxy    GalaxyConfig    `yaml:"galaxy"`
}

// ScaleConfig sets the natural-unit length (kpc) and velocity (km/s).
type ScaleConfig struct {
	Ro float64 `yaml:"ro"`
	Vo float64 `yaml:"vo"`
}

type CosmologyConfig struct {
	H0     float64 `yaml:"h0"`
	OmegaM float64 `yaml:"omega_m"`
	OmegaL float64 `yaml:"omega_lambda"`
}

type GalaxyConfig struct {
	Epochs []EpochConfig `yaml:"epochs"`
}

// EpochConfig is one snapshot of the host galaxy. Masses are Msun and
// lengths kpc. A nil Redshift is derived from the cosmology.
type EpochConfig struct {
	Time     float64      `yaml:"time"`
	Redshift *float64     `yaml:"redshift,omitempty"`
	Disk     *DiskConfig  `yaml:"disk,omitempty"`
	Bulge    *BulgeConfig `yaml:"bulge,omitempty"`
	Halo     *HaloConfig  `yaml:"halo,omitempty"`
}

type DiskConfig struct {
	Mass        float64 `yaml:"mass"`
	ScaleLength float64 `yaml:"scale_length"`
	ScaleHeight float64 `yaml:"scale_height"`
}

type BulgeConfig struct {
	Mass  float64 `yaml:"mass"`
	Scale float64 `yaml:"scale"`
}

type HaloConfig struct {
	Mass        float64 `yaml:"mass"`
	ScaleRadius float64 `yaml:"scale_radius"`
}

func DefaultConfig() *Config {
	planck := cosmology.Planck18()
	return &Config{
		Integrator:     DefaultIntegrator,
		MaxWallSeconds: DefaultMaxWallSeconds,
		Resolution:     DefaultResolution,
		PotentialMode:  galaxy.Evolving.String(),
		Downsample:     DefaultDownsample,
		StopAtMerger:   true,
		TinspMax:       ensemble.DefaultTinspMax,
		OutputDir:      DefaultOutputDir,
		Scale:          ScaleConfig{Ro: units.DefaultRo, Vo: units.DefaultVo},
		Cosmology:      CosmologyConfig{H0: planck.H0, OmegaM: planck.OmegaM, OmegaL: planck.OmegaL},
		Galaxy:         DefaultGalaxy(),
	}
}

// DefaultGalaxy is a Milky-Way-like host assembling linearly in mass from
// 1 Gyr to the present.
func DefaultGalaxy() GalaxyConfig {
	times := []float64{1, 2, 4, 6, 8, 10, 12, 13.5}
	epochs := make([]EpochConfig, len(times))
	for i, t := range times {
		f := t / times[len(times)-1]
		epochs[i] = EpochConfig{
			Time:  t,
			Disk:  &DiskConfig{Mass: 6.8e10 * f, ScaleLength: 3 * f, ScaleHeight: 0.28},
			Bulge: &BulgeConfig{Mass: 5e9 * f, Scale: 0.5},
			Halo:  &HaloConfig{Mass: 8e11 * f, ScaleRadius: 16},
		}
	}
	return GalaxyConfig{Epochs: epochs}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := integrators.New(c.Integrator); err != nil {
		errs = append(errs, invalid("integrator: %v", err))
	}
	if c.MaxWallSeconds <= 0 {
		errs = append(errs, invalid("max_wall_seconds must be positive, got %g", c.MaxWallSeconds))
	}
	if c.Resolution < 2 {
		errs = append(errs, invalid("resolution must be at least 2, got %d", c.Resolution))
	}
	mode, err := galaxy.ParseMode(c.PotentialMode)
	if err != nil {
		errs = append(errs, invalid("potential_mode: %v", err))
	}
	if mode == galaxy.Fixed && (c.FixedEpoch < 0 || c.FixedEpoch >= len(c.Galaxy.Epochs)) {
		errs = append(errs, invalid("fixed_epoch %d outside the %d galaxy epochs", c.FixedEpoch, len(c.Galaxy.Epochs)))
	}
	if c.Downsample < 1 {
		errs = append(errs, invalid("downsample must be at least 1, got %d", c.Downsample))
	}
	if c.Workers < -1 {
		errs = append(errs, invalid("workers must be -1 (all cores), 0 (serial) or positive, got %d", c.Workers))
	}
	if c.TinspMax <= 0 {
		errs = append(errs, invalid("tinsp_max must be positive, got %g", c.TinspMax))
	}
	if c.NaturalUnits && (c.Scale.Ro <= 0 || c.Scale.Vo <= 0) {
		errs = append(errs, invalid("natural units need positive scale.ro and scale.vo"))
	}
	now := math.Inf(1)
	cosmo := c.CosmologyModel()
	if err := cosmo.Validate(); err != nil {
		errs = append(errs, invalid("cosmology: %v", err))
	} else {
		now = cosmo.Now()
	}
	errs = append(errs, c.Galaxy.validate(now)...)
	return errors.Join(errs...)
}

// validate checks the epochs; now is the present age, which epochs without an
// explicit redshift may not exceed.
func (g GalaxyConfig) validate(now float64) []error {
	var errs []error
	if len(g.Epochs) < 2 {
		errs = append(errs, invalid("galaxy needs at least two epochs, got %d", len(g.Epochs)))
	}
	for i, e := range g.Epochs {
		if i > 0 && e.Time <= g.Epochs[i-1].Time {
			errs = append(errs, invalid("galaxy epoch %d: time %g does not increase", i, e.Time))
		}
		if e.Redshift == nil && e.Time > now {
			errs = append(errs, invalid("galaxy epoch %d: time %g Gyr is later than the present age %.3g Gyr", i, e.Time, now))
		}
		if e.Disk == nil && e.Bulge == nil && e.Halo == nil {
			errs = append(errs, invalid("galaxy epoch %d has no components", i))
		}
		if d := e.Disk; d != nil && (d.Mass <= 0 || d.ScaleLength < 0 || d.ScaleHeight <= 0) {
			errs = append(errs, invalid("galaxy epoch %d: disk needs positive mass and scale height", i))
		}
		if b := e.Bulge; b != nil && (b.Mass <= 0 || b.Scale <= 0) {
			errs = append(errs, invalid("galaxy epoch %d: bulge needs positive mass and scale", i))
		}
		if h := e.Halo; h != nil && (h.Mass <= 0 || h.ScaleRadius <= 0) {
			errs = append(errs, invalid("galaxy epoch %d: halo needs positive mass and scale radius", i))
		}
	}
	return errs
}

func (c *Config) CosmologyModel() cosmology.FlatLCDM {
	return cosmology.FlatLCDM{H0: c.Cosmology.H0, OmegaM: c.Cosmology.OmegaM, OmegaL: c.Cosmology.OmegaL}
}

func (e EpochConfig) potential() galaxy.Potential {
	var c galaxy.Composite
	if e.Disk != nil {
		c = append(c, galaxy.MiyamotoNagai{M: e.Disk.Mass, A: e.Disk.ScaleLength, B: e.Disk.ScaleHeight})
	}
	if e.Bulge != nil {
		c = append(c, galaxy.Hernquist{M: e.Bulge.Mass, A: e.Bulge.Scale})
	}
	if e.Halo != nil {
		c = append(c, galaxy.NFW{M: e.Halo.Mass, Rs: e.Halo.ScaleRadius})
	}
	return c
}

// History builds the potential sequence of the galaxy section.
func (c *Config) History() (*galaxy.History, error) {
	cosmo := c.CosmologyModel()
	n := len(c.Galaxy.Epochs)
	times := make([]float64, n)
	redz := make([]float64, n)
	pots := make([]galaxy.Potential, n)
	for i, e := range c.Galaxy.Epochs {
		times[i] = e.Time
		if e.Redshift != nil {
			redz[i] = *e.Redshift
		} else {
			redz[i] = cosmo.Redshift(e.Time)
		}
		pots[i] = e.potential()
	}
	return galaxy.NewHistory(times, redz, pots)
}

// OrbitConfig maps the run settings onto the orbit integrator.
func (c *Config) OrbitConfig() (orbit.Config, error) {
	mode, err := galaxy.ParseMode(c.PotentialMode)
	if err != nil {
		return orbit.Config{}, err
	}
	return orbit.Config{
		Integrator:   c.Integrator,
		Natural:      c.NaturalUnits,
		Scale:        units.Scale{Ro: c.Scale.Ro, Vo: c.Scale.Vo},
		MaxWall:      time.Duration(c.MaxWallSeconds * float64(time.Second)),
		Resolution:   c.Resolution,
		Mode:         mode,
		FixedEpoch:   c.FixedEpoch,
		StopAtMerger: c.StopAtMerger,
		Trajectory:   c.SaveTrajectories,
		Downsample:   c.Downsample,
	}, nil
}
