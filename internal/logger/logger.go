// Package logger holds the process-wide zap logger used by rigbridge.
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the global logger. It discards output until Init or SetLogger is
// called.
var Log = zap.NewNop()

// FileConfig holds rotating log file settings.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultFileConfig returns the rotation settings used for --log-file.
func DefaultFileConfig(path string) FileConfig {
	return FileConfig{
		Path:       path,
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 7,
		Compress:   true,
	}
}

// Init installs a logger writing to stderr and, when logFile is set, to a
// rotating file.
func Init(level string, logFile string) error {
	var fileCfg FileConfig
	if logFile != "" {
		fileCfg = DefaultFileConfig(logFile)
	}
	Log = New(level, fileCfg, os.Stderr)
	return nil
}

// New builds a logger without installing it. A nil console disables console
// output; an empty fileCfg.Path disables the file.
func New(level string, fileCfg FileConfig, console io.Writer) *zap.Logger {
	lvl := parseLevel(level)
	var cores []zapcore.Core

	if console != nil {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig(
				zapcore.TimeEncoderOfLayout("15:04:05"), zapcore.CapitalColorLevelEncoder)),
			zapcore.AddSync(console),
			lvl,
		))
	}

	if fileCfg.Path != "" {
		rotator := &lumberjack.Logger{
			Filename:   fileCfg.Path,
			MaxSize:    fileCfg.MaxSizeMB,
			MaxBackups: fileCfg.MaxBackups,
			MaxAge:     fileCfg.MaxAgeDays,
			Compress:   fileCfg.Compress,
			LocalTime:  true,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig(
				zapcore.ISO8601TimeEncoder, zapcore.CapitalLevelEncoder)),
			zapcore.AddSync(rotator),
			lvl,
		))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

func encoderConfig(timeEnc zapcore.TimeEncoder, levelEnc zapcore.LevelEncoder) zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          "logger",
		MessageKey:       "msg",
		CallerKey:        "caller",
		EncodeTime:       timeEnc,
		EncodeLevel:      levelEnc,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		ConsoleSeparator: " ",
	}
}

// SetLogger replaces the global logger, returning a function that restores
// the previous one.
func SetLogger(l *zap.Logger) (restore func()) {
	prev := Log
	Log = l
	return func() { Log = prev }
}

// parseLevel accepts zap level names; anything else means info.
func parseLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// Sync flushes buffered entries.
func Sync() {
	_ = Log.Sync()
}

func Debug(msg string, fields ...zap.Field) { Log.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { Log.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Log.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Log.Error(msg, fields...) }

// Named returns a child of the global logger for one subsystem.
func Named(name string) *zap.Logger {
	return Log.Named(name)
}
