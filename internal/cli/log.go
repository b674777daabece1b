package cli

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger is the diagnostic logger shared by all subcommands. It is
// replaced in the root command's PersistentPreRunE once --verbose is
// known.
var logger = zap.NewNop()

// newLogger builds a console logger writing to w. Only warnings and
// errors are shown unless verbose is set, in which case debug output is
// enabled as well.
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		level.SetLevel(zapcore.DebugLevel)
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}

// setupLogger installs the package logger for this invocation.
func setupLogger() {
	logger = newLogger(os.Stderr, verbose)
}

// VerboseLog prints a debug message. It is only visible with --verbose.
func VerboseLog(format string, args ...interface{}) {
	logger.Sugar().Debugf(format, args...)
}
