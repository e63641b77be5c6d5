package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

const PathEnvVar = "KCOOP_CONFIG_FILE"

// StdinPath makes Flag read the scenario from standard input.
const StdinPath = "-"

var ErrMissingFile = errors.New("missing configuration file")

// Flag defines a command line flag to load a scenario file.
type Flag struct {
	path  string
	stdin io.Reader
}

func (f *Flag) SetFlags(fs *flag.FlagSet) {
	fs.StringVar(&f.path, "config", os.Getenv(PathEnvVar),
		fmt.Sprintf("Path to scenario file, %q for standard input (defaults to %s environment variable).",
			StdinPath, PathEnvVar))
}

func (f *Flag) open() (io.ReadCloser, error) {
	if f.path == StdinPath {
		if f.stdin != nil {
			return io.NopCloser(f.stdin), nil
		}

		return io.NopCloser(os.Stdin), nil
	}

	return os.Open(f.path)
}

// Load reads and validates the scenario.
func (f *Flag) Load() (*Root, error) {
	if f.path == "" {
		return nil, ErrMissingFile
	}

	source := fmt.Sprintf("%q", f.path)
	if f.path == StdinPath {
		source = "standard input"
	}

	fh, err := f.open()
	if err != nil {
		return nil, fmt.Errorf("loading configuration from %s failed: %w", source, err)
	}

	defer fh.Close()

	cfg := &Root{}

	if err := cfg.Unmarshal(fh); err != nil {
		return nil, fmt.Errorf("loading configuration from %s failed: %w", source, err)
	}

	return cfg, nil
}
