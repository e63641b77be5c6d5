// Package run implements the subcommand executing a single scenario loaded
// from a configuration file.
package run

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"github.com/hansmi/kcoop/internal/cleanupgroup"
	"github.com/hansmi/kcoop/internal/cmdutil"
	"github.com/hansmi/kcoop/internal/config"
	"github.com/hansmi/kcoop/internal/signalwait"
	"github.com/hansmi/kcoop/internal/sim"
	"github.com/hansmi/kcoop/internal/teelog"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func logConfig(cfg *config.Root, logger *zap.Logger) error {
	var buf bytes.Buffer

	if err := cfg.Marshal(&buf); err != nil {
		return err
	}

	logger.Debug("Configuration:\n" + buf.String())

	return nil
}

// Command implements the "run" subcommand.
type Command struct {
	configFlag      config.Flag
	timeout         time.Duration
	realtime        bool
	transcript      string
	verbose         bool
	printMetrics    bool
	metricsFile     string
	metricsListen   string
	shutdownTimeout time.Duration

	stdout io.Writer
}

func (*Command) Name() string {
	return "run"
}

func (*Command) Synopsis() string {
	return "Run a scenario and print a report."
}

func (c *Command) Usage() string {
	return cmdutil.Usage(c, "", `
The scenario file describes the simulated machine, the sleeping threads and the
speakers and listeners exchanging values. The command fails if a thread woke
early, a value was not delivered exactly once or the remaining threads can
never make progress.
`)
}

func (c *Command) SetFlags(fs *flag.FlagSet) {
	c.configFlag.SetFlags(fs)
	fs.DurationVar(&c.timeout, "timeout", 10*time.Minute, "Maximum duration of the run.")
	fs.BoolVar(&c.realtime, "realtime", false, "Drive the timer from the wall clock regardless of the scenario.")
	fs.StringVar(&c.transcript, "transcript", "", "Write a log of the run to the given file (NDJSON).")
	fs.BoolVar(&c.verbose, "verbose", false, "Include debug messages in the transcript.")
	fs.BoolVar(&c.printMetrics, "metrics", false, "Print metrics in the Prometheus text format after the report.")
	fs.StringVar(&c.metricsFile, "metrics_file", "", "Atomically write metrics to the given file after the run.")
	fs.StringVar(&c.metricsListen, "metrics_listen", "", "Serve metrics via HTTP on the given address while running.")
	fs.DurationVar(&c.shutdownTimeout, "shutdown_timeout", 10*time.Second, "Amount of time to wait for the metrics server to stop.")
}

func (c *Command) output() io.Writer {
	if c.stdout == nil {
		return os.Stdout
	}

	return c.stdout
}

// report prints the outcome of the run and exports the metrics.
func (c *Command) report(result *sim.Result, registry prometheus.Gatherer) error {
	w := c.output()

	if err := result.WriteReport(w); err != nil {
		return err
	}

	if c.printMetrics {
		fmt.Fprintln(w)

		if err := writeMetrics(w, registry); err != nil {
			return err
		}
	}

	if c.metricsFile != "" {
		if err := writeMetricsFile(c.metricsFile, registry); err != nil {
			return fmt.Errorf("writing metrics failed: %w", err)
		}
	}

	return nil
}

func (c *Command) simulate(ctx context.Context, cfg *config.Root, logger *zap.Logger) (err error) {
	if err := logConfig(cfg, logger); err != nil {
		return err
	}

	var cleanup cleanupgroup.Group
	defer func() {
		multierr.AppendInto(&err, cleanup.CallWithTimeout(logger, c.shutdownTimeout))
	}()

	registry := prometheus.NewPedanticRegistry()

	if c.metricsListen != "" {
		srv, err := listenAndServeMetrics(logger, c.metricsListen, registry)
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}

		cleanup.Append("metrics server", srv.shutdown)
	}

	result, runErr := sim.Run(ctx, cfg, sim.WithLogger(logger), sim.WithRegistry(registry))
	if result == nil {
		return runErr
	}

	if cause := context.Cause(ctx); cause != nil && errors.Is(runErr, ctx.Err()) {
		runErr = cause
	}

	return multierr.Append(runErr, c.report(result, registry))
}

func (c *Command) execute(ctx context.Context) error {
	cfg, err := c.configFlag.Load()
	if err != nil {
		if errors.Is(err, config.ErrMissingFile) {
			return cmdutil.UsageErrorf("%v: use -config or set %s", err, config.PathEnvVar)
		}

		return err
	}

	if c.realtime {
		cfg.Machine.Realtime = true
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, stopSignalWait := signalwait.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignalWait()

	return teelog.RecordIf(zap.L(), c.transcript, c.verbose, func(logger *zap.Logger) error {
		return c.simulate(ctx, cfg, logger)
	})
}

func (c *Command) Execute(ctx context.Context, fs *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if fs.NArg() > 0 {
		fs.Usage()
		return subcommands.ExitUsageError
	}

	return cmdutil.ExecuteStatus(c.execute(ctx))
}
