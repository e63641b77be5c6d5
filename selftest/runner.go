package selftest

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hansmi/kcoop/internal/config"
	"github.com/hansmi/kcoop/internal/sim"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type runner struct {
	dir      string
	logger   *zap.Logger
	realtime bool
	tests    []test
}

func newRunner(dir string, logger *zap.Logger, realtime bool, tests []test) *runner {
	return &runner{
		dir:      dir,
		logger:   logger,
		realtime: realtime,
		tests:    tests,
	}
}

// writeScenario stores the scenario of a test as a configuration file.
func (r *runner) writeScenario(t test) (string, error) {
	cfg := t.Scenario()

	if r.realtime {
		cfg.Machine.Realtime = true
	}

	name := strings.ReplaceAll(t.Name(), " ", "-") + ".yaml"

	fh, err := os.Create(filepath.Join(r.dir, name))
	if err != nil {
		return "", err
	}

	if err := cfg.Marshal(fh); err != nil {
		return "", multierr.Append(err, fh.Close())
	}

	if err := fh.Close(); err != nil {
		return "", err
	}

	return fh.Name(), nil
}

// loadScenario reads a configuration file the same way as the "run"
// command.
func loadScenario(path string) (*config.Root, error) {
	var f config.Flag

	fs := flag.NewFlagSet("", flag.ContinueOnError)
	f.SetFlags(fs)

	if err := fs.Parse([]string{"-config", path}); err != nil {
		return nil, err
	}

	return f.Load()
}

func (r *runner) runOne(ctx context.Context, t test) error {
	path, err := r.writeScenario(t)
	if err != nil {
		return err
	}

	cfg, err := loadScenario(path)
	if err != nil {
		return err
	}

	logger := r.logger.With(zap.String("test", t.Name()))

	result, err := sim.Run(ctx, cfg, sim.WithLogger(logger))
	if err != nil {
		return err
	}

	if err := t.Check(cfg, result); err != nil {
		return err
	}

	logger.Info("Test passed",
		zap.Uint64("ticks", result.Ticks),
		zap.Uint64("interrupts", result.Interrupts))

	return nil
}

// runAll executes all tests concurrently, each on its own machine, and waits
// for them to finish.
func (r *runner) runAll(ctx context.Context) error {
	if len(r.tests) == 0 {
		return errNoTests
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var allErrors error

	for _, t := range r.tests {
		wg.Add(1)
		go func(t test) {
			defer wg.Done()

			if err := r.runOne(ctx, t); err != nil {
				err = fmt.Errorf("test %q: %w", t.Name(), err)

				mu.Lock()
				multierr.AppendInto(&allErrors, err)
				mu.Unlock()
			}
		}(t)
	}

	wg.Wait()

	return allErrors
}
