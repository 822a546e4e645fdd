package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global logger instance
	Logger *zap.SugaredLogger
	// Flag to track if JSON output is enabled
	JSONOutput bool
)

func init() {
	// Initialize with a safe no-op logger at package load time
	// This prevents nil pointer panics if logger is used before Initialize() is called
	Logger = nopLogger()
}

func nopLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// Options configures the global logger.
type Options struct {
	// JSON switches the console sink to structured JSON output
	JSON bool
	// Verbosity is the -v flag count, see VerbosityToLevel
	Verbosity int
	// File, when set, receives a JSON copy of every entry (e.g. logs/worker.log).
	// The file sink always logs at debug level so failed runs can be reproduced.
	File string
	// NoColor disables ANSI colors in the console encoder
	NoColor bool
}

// Initialize sets up the global logger. Console output goes to stderr so that
// command output on stdout stays machine-readable.
func Initialize(opts Options) error {
	JSONOutput = opts.JSON
	level := VerbosityToLevel(opts.Verbosity)

	var consoleEncoder zapcore.Encoder
	if opts.JSON {
		consoleEncoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		consoleEncoder = newMinimalEncoder(!opts.NoColor)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), level),
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		fileEncoder := zapcore.NewJSONEncoder(fileEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(f), zapcore.DebugLevel))
	}

	core := newRedactingCore(zapcore.NewTee(cores...))
	Logger = zap.New(core).Sugar()
	return nil
}

// InitializeWithCore installs a logger over an arbitrary core, still behind the
// secret-redacting wrapper. Tests use it with zaptest/observer.
func InitializeWithCore(core zapcore.Core) {
	Logger = zap.New(newRedactingCore(core)).Sugar()
}

func fileEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.TimeKey = "ts"
	return cfg
}

// Cleanup flushes any buffered log entries
func Cleanup() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// Infow logs an info message with structured fields
func Infow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Infow(msg, keysAndValues...)
	}
}

// Errorw logs an error message with structured fields
func Errorw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Errorw(msg, keysAndValues...)
	}
}

// Warnw logs a warning message with structured fields
func Warnw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Warnw(msg, keysAndValues...)
	}
}

// Debugw logs a debug message with structured fields
func Debugw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Debugw(msg, keysAndValues...)
	}
}
