package cmd

import (
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
)

const (
	logLevelFlagName      = "log-level"
	logLevelShortFlagName = "v"
	logLevelDefaultValue  = "info"

	configFlagName  = "config"
	configFlagUsage = "path to a configuration file (default: funnel.yml in the usual locations)"

	workersFlagName      = "workers"
	workersShortFlagName = "w"
	workersFlagUsage     = `number of workers including the reducer, at least 2
	(default: one transform worker per CPU plus the reducer)`

	capacityFlagName  = "capacity"
	capacityFlagUsage = "capacity of every queue of the pipeline"

	drainTimeoutFlagName  = "drain-timeout"
	drainTimeoutFlagUsage = "how long a finished run may take to flush its remaining output"

	otlpEndpointFlagName  = "otlp-endpoint"
	otlpEndpointFlagUsage = "OTLP HTTP endpoint (host:port) receiving traces and metrics; telemetry is off when empty"
)

var (
	allLoggerLevels   = []string{"trace", "debug", "info", "warn", "error", "disabled"}
	logLevelFlagUsage = "set the logging level (possible values: " + strings.Join(allLoggerLevels, ", ") + ")"
)

// rootFlags holds the persistent flags shared across the command tree.
// Values only override the configuration when the flag was set explicitly.
type rootFlags struct {
	logLevel     string
	configPath   string
	workers      int
	capacity     int
	drainTimeout time.Duration
	otlpEndpoint string
}

// addFlags registers the persistent CLI flags on cmd.
func (f *rootFlags) addFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVarP(&f.logLevel, logLevelFlagName, logLevelShortFlagName, logLevelDefaultValue, heredoc.Doc(logLevelFlagUsage))
	flags.StringVar(&f.configPath, configFlagName, "", configFlagUsage)
	flags.IntVarP(&f.workers, workersFlagName, workersShortFlagName, 0, heredoc.Doc(workersFlagUsage))
	flags.IntVar(&f.capacity, capacityFlagName, 0, capacityFlagUsage)
	flags.DurationVar(&f.drainTimeout, drainTimeoutFlagName, 0, drainTimeoutFlagUsage)
	flags.StringVar(&f.otlpEndpoint, otlpEndpointFlagName, "", otlpEndpointFlagUsage)

	_ = cmd.MarkPersistentFlagFilename(configFlagName, "yml", "yaml")
}
