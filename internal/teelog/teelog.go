// Package teelog records a transcript of log messages as newline-delimited
// JSON (NDJSON) while also passing them on to a parent logger.
package teelog

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sys/unix"
)

type Transcript struct {
	Parent *zap.Logger

	// Path to transcript file.
	Path string

	// Replace existing content instead of appending to it.
	Truncate bool

	// Include debug messages such as individual context switches. The parent
	// logger is not affected.
	Verbose bool

	// Hold an exclusive advisory lock on the file while recording. Processes
	// sharing a transcript file take turns instead of interleaving lines.
	Lock bool

	fs interface {
		OpenFile(name string, flag int, perm os.FileMode) (afero.File, error)
	}
	encoder zapcore.Encoder
}

func newEncoder() zapcore.Encoder {
	return zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	})
}

func (t *Transcript) open() (*zap.Logger, func() error, error) {
	if t.fs == nil {
		t.fs = afero.NewOsFs()
	}

	if t.Parent == nil {
		t.Parent = zap.NewNop()
	}

	if t.encoder == nil {
		t.encoder = newEncoder()
	}

	flags := os.O_CREATE | os.O_WRONLY

	if t.Truncate {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}

	var unlock func() error

	if t.Lock {
		fl := flock.New(t.Path)

		if err := fl.Lock(); err != nil {
			return nil, nil, fmt.Errorf("locking %s: %w", t.Path, err)
		}

		unlock = fl.Unlock
	}

	fh, err := t.fs.OpenFile(t.Path, flags, 0o666)
	if err != nil {
		if unlock != nil {
			err = multierr.Append(err, unlock())
		}

		return nil, nil, err
	}

	level := zapcore.InfoLevel

	if t.Verbose {
		level = zapcore.DebugLevel
	}

	logger := zap.New(zapcore.NewTee(
		t.Parent.Core(),
		zapcore.NewCore(t.encoder, zapcore.Lock(fh), level),
	))

	return logger, func() error {
		syncErr := logger.Sync()

		// Not all file types support syncing
		if errors.Is(syncErr, unix.EINVAL) {
			syncErr = nil
		}

		err := multierr.Combine(syncErr, fh.Close())

		if unlock != nil {
			multierr.AppendInto(&err, unlock())
		}

		return err
	}, nil
}

// Record invokes fn with a logger writing to both the parent and the
// transcript file. The file is flushed and closed before returning.
func (t *Transcript) Record(fn func(*zap.Logger) error) (err error) {
	logger, logClose, err := t.open()
	if err != nil {
		return fmt.Errorf("transcript setup failed: %w", err)
	}

	defer multierr.AppendInvoke(&err, multierr.Invoke(logClose))

	return fn(logger)
}

// RecordIf behaves like Record when path is not empty. Otherwise fn is invoked
// with the parent logger.
func RecordIf(parent *zap.Logger, path string, verbose bool, fn func(*zap.Logger) error) error {
	if path == "" {
		return fn(parent)
	}

	t := &Transcript{
		Parent:   parent,
		Path:     path,
		Truncate: true,
		Verbose:  verbose,
		Lock:     true,
	}

	return t.Record(fn)
}
