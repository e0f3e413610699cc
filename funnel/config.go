package funnel

import (
	"runtime"
	"time"

	"github.com/kbukum/funnel/validation"
)

// Defaults applied by Config.ApplyDefaults.
const (
	DefaultCapacity      = 100
	DefaultDrainTimeout  = 30 * time.Second
	DefaultShutdownGrace = 5 * time.Second
)

// Config sizes a funnel run. Workers counts the reducer, so a run with
// Workers = N has N-1 transform workers.
type Config struct {
	Workers           int           `mapstructure:"workers" yaml:"workers" validate:"min=2"`
	TransformCapacity int           `mapstructure:"transform_capacity" yaml:"transform_capacity" validate:"min=1"`
	ReduceCapacity    int           `mapstructure:"reduce_capacity" yaml:"reduce_capacity" validate:"min=1"`
	OutputCapacity    int           `mapstructure:"output_capacity" yaml:"output_capacity" validate:"min=1"`
	DrainTimeout      time.Duration `mapstructure:"drain_timeout" yaml:"drain_timeout" validate:"gt=0"`
	ShutdownGrace     time.Duration `mapstructure:"shutdown_grace" yaml:"shutdown_grace" validate:"gt=0"`
}

// DefaultConfig returns a configuration with one transform worker per CPU
// and default capacities.
func DefaultConfig() Config {
	cfg := Config{Workers: max(2, runtime.NumCPU()+1)}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero capacities and timeouts. Workers has no default:
// a zero worker count is a configuration error.
func (c *Config) ApplyDefaults() {
	if c.TransformCapacity == 0 {
		c.TransformCapacity = DefaultCapacity
	}
	if c.ReduceCapacity == 0 {
		c.ReduceCapacity = DefaultCapacity
	}
	if c.OutputCapacity == 0 {
		c.OutputCapacity = DefaultCapacity
	}
	if c.DrainTimeout == 0 {
		c.DrainTimeout = DefaultDrainTimeout
	}
	if c.ShutdownGrace == 0 {
		c.ShutdownGrace = DefaultShutdownGrace
	}
}

// Validate checks the configuration, returning a CONFIGURATION_ERROR.
func (c *Config) Validate() error {
	return validation.Validate(c)
}

// TransformWorkers is the size of the transform pool.
func (c *Config) TransformWorkers() int {
	return c.Workers - 1
}
