// Package logging builds the zap logger used by the dya binary: JSON entries
// go to a zstd compressed file, warnings and errors are also echoed to the
// console.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const SinkScheme = "zstd"

var registerOnce sync.Once
var registerErr error

// Register installs the zstd:// sink. It is safe to call more than once.
func Register() error {
	registerOnce.Do(func() {
		registerErr = zap.RegisterSink(SinkScheme, newCompressedSink)
	})
	return registerErr
}

type Options struct {
	// Level applies to the file output.
	Level zapcore.Level
	// File is the log file path. Empty disables file output.
	File string
	// MaxSize archives File at startup once it reaches this many bytes.
	// Zero keeps appending.
	MaxSize uint64
	// Console receives entries at Warn and above. Nil disables it.
	Console io.Writer
	// Session tags every entry. A random id is used when empty.
	Session string
}

// New builds the logger. The returned func flushes and closes the log file.
func New(opts Options) (*zap.Logger, func(), error) {
	if opts.Session == "" {
		opts.Session = uuid.NewString()
	}

	var cores []zapcore.Core
	closeFile := func() {}

	if opts.File != "" {
		if err := Register(); err != nil {
			return nil, nil, fmt.Errorf("failed to register %s sink: %w", SinkScheme, err)
		}
		sink, closeSink, err := zap.Open(sinkURL(opts.File, opts.MaxSize))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		closeFile = closeSink
		encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(encoder, sink, opts.Level))
	}

	if opts.Console != nil {
		cores = append(cores, consoleCore(opts.Console, opts.Level))
	}

	if len(cores) == 0 {
		return zap.NewNop(), closeFile, nil
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.ErrorOutput(zapcore.Lock(os.Stderr))).
		With(zap.String("session", opts.Session))
	cleanup := func() {
		_ = logger.Sync()
		closeFile()
	}
	return logger, cleanup, nil
}

func consoleCore(w io.Writer, level zapcore.Level) zapcore.Core {
	encoderConfig := zapcore.EncoderConfig{
		LevelKey:       "level",
		MessageKey:     "msg",
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	minLevel := max(level, zapcore.WarnLevel)
	enabler := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= minLevel
	})
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(w), enabler)
}

// ParseLevel accepts zap level names; an empty string means info.
func ParseLevel(name string) (zapcore.Level, error) {
	if name == "" {
		return zapcore.InfoLevel, nil
	}
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}
