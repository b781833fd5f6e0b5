package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/1F47E/go-terrain-grid/internal/config"
	"github.com/1F47E/go-terrain-grid/internal/logger"
	"github.com/1F47E/go-terrain-grid/internal/observability"
	"github.com/1F47E/go-terrain-grid/pkg/octet"
	"github.com/1F47E/go-terrain-grid/pkg/resample"
	"github.com/1F47E/go-terrain-grid/pkg/terrain"
)

// app holds state shared by all subcommands of one invocation
type app struct {
	configFile string
	logLevel   string
	logFile    string
	metrics    bool
	trace      bool

	cfg       *config.Config
	log       *zap.Logger
	collector *observability.Collector
	tracer    trace.Tracer
	shutdown  func(context.Context) error

	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "terrain",
		Short: "Terrain height-field generator",
		Long: `Builds regular height grids from scattered terrain vertices and writes them
in the binary terrain stream format.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	rootCmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "Config file path")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&a.logFile, "log-file", "", "Also log to a rotating file")
	rootCmd.PersistentFlags().BoolVar(&a.metrics, "metrics", false, "Print collected metrics on exit")
	rootCmd.PersistentFlags().BoolVar(&a.trace, "trace", false, "Export trace spans to stderr")

	rootCmd.AddCommand(
		newBuildCmd(a),
		newInspectCmd(a),
		newLODCmd(a),
		newFetchCmd(a),
		newBenchCmd(a),
	)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd
}

// setup loads configuration with priority defaults < file < flags and
// wires the logger, metrics and tracing
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFile != "" {
		cfg.Logging.LogFile = a.logFile
	}
	if a.trace {
		cfg.Tracing.Enabled = true
	}
	a.cfg = cfg

	fileCfg := logger.FileConfig{}
	if cfg.Logging.LogFile != "" {
		fileCfg = logger.FileConfig{
			Path:       cfg.Logging.LogFile,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		}
	}
	a.log = logger.New(cfg.Logging.Level, fileCfg, a.stderr)

	a.collector, err = observability.NewCollector(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	tp, shutdown, err := observability.InitTracing(cmd.Context(), observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		PrettyPrint: cfg.Tracing.PrettyPrint,
		Writer:      a.stderr,
	}, a.log)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	a.tracer = tp.Tracer(observability.TracerName)
	a.shutdown = shutdown
	return nil
}

func (a *app) teardown(cmd *cobra.Command, _ []string) error {
	observability.ShutdownWithTimeout(cmd.Context(), a.shutdown, a.log)
	if a.metrics {
		if err := a.collector.WriteText(a.stderr); err != nil {
			return err
		}
	}
	_ = a.log.Sync()
	return nil
}

// terrainConfig converts the loaded settings into a build configuration
func (a *app) terrainConfig(byteOrder string) (terrain.Config, error) {
	tc := a.cfg.Terrain
	if byteOrder == "" {
		byteOrder = tc.ByteOrder
	}
	order, err := octet.ParseByteOrder(byteOrder)
	if err != nil {
		return terrain.Config{}, err
	}
	kernel, err := resample.KernelByName(tc.Kernel)
	if err != nil {
		return terrain.Config{}, err
	}

	return terrain.Config{
		RowTolerance:  tc.RowTolerance,
		EdgeTolerance: tc.EdgeTolerance,
		ByteOrder:     order,
		GeodeticCRS:   tc.GeodeticCRS,
		Kernel:        kernel,
		Workers:       tc.Workers,
		Logger:        a.log,
		Metrics:       a.collector,
		Tracer:        a.tracer,
	}, nil
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
