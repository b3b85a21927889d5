// Package logging builds the process logger.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a SugaredLogger writing to stderr. JSON output uses the zap
// production encoder; otherwise a console encoder with local timestamps.
// verbose enables debug level.
func New(jsonOutput, verbose bool) (*zap.SugaredLogger, error) {
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}

	if jsonOutput {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		config.OutputPaths = []string{"stderr"}
		config.ErrorOutputPaths = []string{"stderr"}
		logger, err := config.Build()
		if err != nil {
			return nil, err
		}
		return logger.Sugar(), nil
	}

	return NewConsole(os.Stderr, level), nil
}

// NewConsole returns a human-readable logger writing to w.
func NewConsole(w io.Writer, level zapcore.Level) *zap.SugaredLogger {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeCaller = nil

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(w), level)
	return zap.New(core).Sugar()
}
