package selftest

import (
	"context"
	"errors"
	"flag"
	"os"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"github.com/hansmi/kcoop/internal/cmdutil"
	"github.com/hansmi/kcoop/internal/signalwait"
	"github.com/hansmi/kcoop/internal/teelog"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Command implements the "selftest" subcommand.
type Command struct {
	timeout     time.Duration
	realtime    bool
	transcript  string
	keepWorkDir bool

	tests []test
}

func (*Command) Name() string {
	return "selftest"
}

func (*Command) Synopsis() string {
	return "Execute built-in scenarios exercising the alarm and the communicator."
}

func (c *Command) Usage() string {
	return cmdutil.Usage(c, "", `
Every scenario runs on its own simulated machine. Sleeping threads must wake in
order and never early; every value sent over a channel must be received exactly
once.
`)
}

func (c *Command) SetFlags(fs *flag.FlagSet) {
	fs.DurationVar(&c.timeout, "timeout", time.Minute, "Maximum duration for running all tests.")
	fs.BoolVar(&c.realtime, "realtime", false, "Drive the timers from the wall clock.")
	fs.StringVar(&c.transcript, "transcript", "", "Write a detailed log to the given file (NDJSON).")
	fs.BoolVar(&c.keepWorkDir, "keep", false, "Leave the directory with the generated scenario files behind.")
}

func (c *Command) execute(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	waitForSignal, stopSignalWait := signalwait.Setup(os.Interrupt, syscall.SIGTERM)
	defer stopSignalWait()

	tests := c.tests
	if tests == nil {
		tests = defaultTests()
	}

	return teelog.RecordIf(zap.L(), c.transcript, true, func(logger *zap.Logger) error {
		err := withTempDir(logger, c.keepWorkDir, func(dir string) error {
			r := newRunner(dir, logger, c.realtime, tests)

			eg, egCtx := errgroup.WithContext(ctx)

			signalCtx, signalCancel := context.WithCancel(egCtx)
			defer signalCancel()

			testCtx, testCancel := context.WithCancel(egCtx)
			defer testCancel()

			eg.Go(func() error {
				defer testCancel()

				if err := waitForSignal(signalCtx); !(err == nil || errors.Is(err, context.Canceled)) {
					return err
				}

				return nil
			})

			eg.Go(func() error {
				defer signalCancel()

				return r.runAll(testCtx)
			})

			return eg.Wait()
		})

		if err == nil {
			logger.Info("Self-test successful.")
		}

		return err
	})
}

func (c *Command) Execute(ctx context.Context, fs *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if fs.NArg() > 0 {
		fs.Usage()
		return subcommands.ExitUsageError
	}

	return cmdutil.ExecuteStatus(c.execute(ctx))
}
