// Package config loads and validates the simulation configuration. The
// string-valued scheme and method selectors are parsed once into typed
// values here; nothing downstream compares configuration strings.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/flexswim/bem2d/fsi"
)

const (
	DefaultRho        = 998.2
	DefaultDt         = 0.01
	DefaultSteps      = 100
	DefaultPanels     = 100
	DefaultChord      = 1.0
	DefaultURef       = 1.0
	DefaultDeltaCore  = 0.01
	DefaultRelaxation = 0.5
	DefaultMaxOuter   = 50
	DefaultFsiTol     = 1e-5
)

type Config struct {
	Rho    float64 `yaml:"rho"`
	Dt     float64 `yaml:"dt"`
	Steps  int     `yaml:"steps"`
	Panels int     `yaml:"panels"`
	Chord  float64 `yaml:"chord"`
	URef   float64 `yaml:"u_ref"`

	Kutta     bool    `yaml:"kutta"`
	DeltaCore float64 `yaml:"delta_core"`

	CouplingScheme   string  `yaml:"coupling_scheme"`
	RelaxationFactor float64 `yaml:"relaxation_factor"`
	MaxOuterCorr     int     `yaml:"max_outer_corr"`
	FsiTol           float64 `yaml:"fsi_tol"`
	InterpMethod     string  `yaml:"interp_method"`
	ViscousDrag      bool    `yaml:"viscous_drag"`
	FlexRatio        float64 `yaml:"flex_ratio"`
}

func DefaultConfig() *Config {
	return &Config{
		Rho:              DefaultRho,
		Dt:               DefaultDt,
		Steps:            DefaultSteps,
		Panels:           DefaultPanels,
		Chord:            DefaultChord,
		URef:             DefaultURef,
		Kutta:            true,
		DeltaCore:        DefaultDeltaCore,
		CouplingScheme:   "Aitken",
		RelaxationFactor: DefaultRelaxation,
		MaxOuterCorr:     DefaultMaxOuter,
		FsiTol:           DefaultFsiTol,
		InterpMethod:     "linear",
	}
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
	if err := cfg.Validate(); err != nil {
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

// Validate rejects configurations the solvers cannot run with. Scheme and
// method names are checked here so a typo aborts the run up front instead of
// silently coupling with stale state.
func (c *Config) Validate() error {
	if _, err := c.Scheme(); err != nil {
		return err
	}
	if _, err := c.Method(); err != nil {
		return err
	}
	if c.Dt <= 0 {
		return fmt.Errorf("timestep must be positive, got %g", c.Dt)
	}
	if c.Steps < 1 {
		return fmt.Errorf("need at least one timestep, got %d", c.Steps)
	}
	if c.Panels < 2 || c.Panels%2 != 0 {
		return fmt.Errorf("panel count must be even and >= 2, got %d", c.Panels)
	}
	if c.Rho <= 0 {
		return fmt.Errorf("density must be positive, got %g", c.Rho)
	}
	if c.URef <= 0 {
		return fmt.Errorf("reference speed must be positive, got %g", c.URef)
	}
	if c.RelaxationFactor <= 0 || c.RelaxationFactor > 1 {
		return fmt.Errorf("relaxation factor must be in (0, 1], got %g", c.RelaxationFactor)
	}
	if c.MaxOuterCorr < 1 {
		return fmt.Errorf("need at least one outer sub-iteration, got %d", c.MaxOuterCorr)
	}
	if c.FlexRatio < 0 || c.FlexRatio > 1 {
		return fmt.Errorf("rigid leading-edge fraction must be in [0, 1], got %g", c.FlexRatio)
	}
	if c.DeltaCore < 0 {
		return fmt.Errorf("core radius must be non-negative, got %g", c.DeltaCore)
	}
	return nil
}

// Scheme returns the parsed coupling scheme.
func (c *Config) Scheme() (fsi.Scheme, error) {
	return fsi.ParseScheme(c.CouplingScheme)
}

// Method returns the parsed interpolation method.
func (c *Config) Method() (fsi.InterpMethod, error) {
	return fsi.ParseInterpMethod(c.InterpMethod)
}
