package cmd

import (
	"context"
	stderrors "errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/funnel/config"
	"github.com/kbukum/funnel/errors"
	"github.com/kbukum/funnel/funnel"
	"github.com/kbukum/funnel/logger"
	"github.com/kbukum/funnel/observability"
	"github.com/kbukum/funnel/validation"
	"github.com/kbukum/funnel/version"
)

const telemetryShutdownTimeout = 5 * time.Second

// Settings is the configuration file layout of the funnel binary. Every key
// can also be set through the environment, e.g. FUNNEL_WORKERS or
// TELEMETRY_ENDPOINT.
type Settings struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Funnel               funnel.Config   `yaml:"funnel" mapstructure:"funnel"`
	Telemetry            TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

// TelemetryConfig configures the OTLP exporters. Telemetry is disabled
// without an endpoint.
type TelemetryConfig struct {
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// environment is what a command needs to run a funnel: the resolved
// settings, a logger writing to the command's stderr and the funnel options.
type environment struct {
	settings Settings
	log      *logger.Logger
	opts     []funnel.Option
	shutdown []func(context.Context) error
}

// environment loads the configuration, applies explicitly set flags on top
// and starts telemetry when an endpoint is configured.
func (f *rootFlags) environment(cmd *cobra.Command) (*environment, error) {
	s, err := f.settings(cmd)
	if err != nil {
		return nil, err
	}

	log := logger.NewWriter(cmd.ErrOrStderr(), &s.Logging, s.Name)
	logger.SetGlobalLogger(log)

	env := &environment{settings: s, log: log}
	env.opts = append(env.opts, funnel.WithLogger(log.WithComponent("funnel")))
	if err := env.startTelemetry(cmd.Context()); err != nil {
		env.close()
		return nil, err
	}
	return env, nil
}

func (f *rootFlags) settings(cmd *cobra.Command) (Settings, error) {
	var s Settings

	var loadOpts []config.LoaderOption
	if f.configPath != "" {
		if _, err := os.Stat(f.configPath); err != nil {
			return s, errors.Configuration(configFlagName, "configuration file not found: "+f.configPath).WithCause(err)
		}
		loadOpts = append(loadOpts, config.WithConfigFile(f.configPath))
	}
	if err := config.LoadConfig(appName, &s, loadOpts...); err != nil {
		return s, err
	}

	flags := cmd.Flags()
	if flags.Changed(logLevelFlagName) || s.Logging.Level == "" {
		s.Logging.Level = f.logLevel
	}
	if s.Name == "" {
		s.Name = appName
	}
	if s.Environment == "" {
		s.Environment = "production"
	}
	if s.Version == "" {
		s.Version = version.GetShortVersion()
	}
	s.ApplyDefaults()
	if err := s.ServiceConfig.Validate(); err != nil {
		return s, err
	}

	if flags.Changed(workersFlagName) {
		s.Funnel.Workers = f.workers
	}
	if s.Funnel.Workers == 0 && !flags.Changed(workersFlagName) {
		s.Funnel.Workers = funnel.DefaultConfig().Workers
	}
	if flags.Changed(capacityFlagName) {
		s.Funnel.TransformCapacity = f.capacity
		s.Funnel.ReduceCapacity = f.capacity
		s.Funnel.OutputCapacity = f.capacity
	}
	if flags.Changed(drainTimeoutFlagName) {
		s.Funnel.DrainTimeout = f.drainTimeout
	}
	s.Funnel.ApplyDefaults()
	if err := s.Funnel.Validate(); err != nil {
		return s, err
	}

	if flags.Changed(otlpEndpointFlagName) {
		s.Telemetry.Endpoint = f.otlpEndpoint
	}
	if s.Telemetry.SampleRate == 0 {
		s.Telemetry.SampleRate = 1.0
	}
	rate := s.Telemetry.SampleRate
	err := validation.New().
		Custom("telemetry.sample_rate", rate > 0 && rate <= 1, "must be in (0, 1]").
		Err()
	return s, err
}

func (e *environment) startTelemetry(ctx context.Context) error {
	t := e.settings.Telemetry
	if t.Endpoint == "" {
		return nil
	}

	exporter := observability.ExporterConfig{
		ServiceName:    e.settings.Name,
		ServiceVersion: e.settings.Version,
		Environment:    e.settings.Environment,
		Endpoint:       t.Endpoint,
		Insecure:       t.Insecure,
	}

	tp, err := observability.InitTracer(ctx, &observability.TracerConfig{
		ExporterConfig: exporter,
		SampleRate:     t.SampleRate,
	})
	if err != nil {
		return errors.Configuration("telemetry.endpoint", "cannot start tracing").WithCause(err)
	}
	e.shutdown = append(e.shutdown, tp.Shutdown)

	meterCfg := observability.DefaultMeterConfig(e.settings.Name)
	meterCfg.ExporterConfig = exporter
	mp, err := observability.InitMeter(ctx, &meterCfg)
	if err != nil {
		return errors.Configuration("telemetry.endpoint", "cannot start metrics").WithCause(err)
	}
	e.shutdown = append(e.shutdown, mp.Shutdown)

	metrics, err := observability.NewMetrics(observability.Meter(appName))
	if err != nil {
		return errors.Internal(err)
	}
	e.opts = append(e.opts, funnel.WithMetrics(metrics))
	e.log.Debug("telemetry enabled", logger.Fields("endpoint", t.Endpoint))
	return nil
}

// close flushes and stops the telemetry exporters, last started first.
func (e *environment) close() {
	if len(e.shutdown) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()

	var errs []error
	for i := len(e.shutdown) - 1; i >= 0; i-- {
		errs = append(errs, e.shutdown[i](ctx))
	}
	e.shutdown = nil
	if err := stderrors.Join(errs...); err != nil {
		e.log.Warn("telemetry shutdown failed", logger.ErrorFields("shutdown", err))
	}
}
