package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/edgecomet/pagepurge/internal/common/configtypes"
)

// DynamicLogger wraps zap.Logger so output levels can be switched after startup
type DynamicLogger struct {
	*zap.Logger
	levels     []outputLevel
	configured configtypes.LogConfig
}

// outputLevel ties an atomic level to the per-output level string it was built from
type outputLevel struct {
	atomic     zap.AtomicLevel
	configured string
}

// NewLogger creates a zap logger with one core per enabled output
func NewLogger(config configtypes.LogConfig) (*DynamicLogger, error) {
	global := parseLogLevel(config.Level)

	var cores []zapcore.Core
	var levels []outputLevel

	if config.Console.Enabled {
		level := zap.NewAtomicLevelAt(resolveLogLevel(config.Console.Level, global))
		cores = append(cores, zapcore.NewCore(createEncoder(config.Console.Format), zapcore.Lock(os.Stdout), level))
		levels = append(levels, outputLevel{atomic: level, configured: config.Console.Level})
	}

	if config.File.Enabled {
		if config.File.Path == "" {
			return nil, fmt.Errorf("file.path must be specified when file logging is enabled")
		}
		level := zap.NewAtomicLevelAt(resolveLogLevel(config.File.Level, global))
		cores = append(cores, zapcore.NewCore(createEncoder(config.File.Format), createFileWriter(config.File), level))
		levels = append(levels, outputLevel{atomic: level, configured: config.File.Level})
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("at least one log output (console or file) must be enabled")
	}

	return &DynamicLogger{
		Logger:     zap.New(zapcore.NewTee(cores...)),
		levels:     levels,
		configured: config,
	}, nil
}

// NewLoggerWithStartupOverride starts at INFO when the configured level is quieter,
// so the startup sequence is always visible. Call SwitchToConfiguredLevel once ready.
func NewLoggerWithStartupOverride(config configtypes.LogConfig) (*DynamicLogger, error) {
	if parseLogLevel(config.Level) <= zap.InfoLevel {
		return NewLogger(config)
	}

	startup := config
	startup.Level = configtypes.LogLevelInfo
	if startup.Console.Level == "" {
		startup.Console.Level = configtypes.LogLevelInfo
	}
	if startup.File.Level == "" {
		startup.File.Level = configtypes.LogLevelInfo
	}

	dl, err := NewLogger(startup)
	if err != nil {
		return nil, err
	}
	dl.configured = config
	for i := range dl.levels {
		dl.levels[i].configured = outputLevelString(config, i)
	}
	return dl, nil
}

// outputLevelString returns the configured per-output level for the i-th enabled output
func outputLevelString(config configtypes.LogConfig, i int) string {
	var outputs []string
	if config.Console.Enabled {
		outputs = append(outputs, config.Console.Level)
	}
	if config.File.Enabled {
		outputs = append(outputs, config.File.Level)
	}
	if i < len(outputs) {
		return outputs[i]
	}
	return ""
}

// SwitchToConfiguredLevel applies the levels from the loaded configuration
func (dl *DynamicLogger) SwitchToConfiguredLevel() {
	global := parseLogLevel(dl.configured.Level)
	dl.Info("Switching logger to configured level", zap.String("level", dl.configured.Level))

	for _, l := range dl.levels {
		l.atomic.SetLevel(resolveLogLevel(l.configured, global))
	}
}

// EnsureInfoLevelForShutdown lowers every output to INFO so the shutdown sequence is logged
func (dl *DynamicLogger) EnsureInfoLevelForShutdown() {
	changed := false
	for _, l := range dl.levels {
		if l.atomic.Level() > zap.InfoLevel {
			l.atomic.SetLevel(zap.InfoLevel)
			changed = true
		}
	}
	if changed {
		dl.Info("Switched to INFO level for shutdown visibility")
	}
}

// NewDefaultLogger creates a debug console logger used before configuration is loaded
func NewDefaultLogger() (*DynamicLogger, error) {
	return NewLogger(configtypes.LogConfig{
		Level: configtypes.LogLevelDebug,
		Console: configtypes.ConsoleLogConfig{
			Enabled: true,
			Format:  configtypes.LogFormatConsole,
		},
	})
}

func parseLogLevel(level string) zapcore.Level {
	switch level {
	case configtypes.LogLevelDebug:
		return zap.DebugLevel
	case configtypes.LogLevelWarn:
		return zap.WarnLevel
	case configtypes.LogLevelError:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// resolveLogLevel prefers the output's own level and falls back to the global one
func resolveLogLevel(outputLevel string, global zapcore.Level) zapcore.Level {
	if outputLevel != "" {
		return parseLogLevel(outputLevel)
	}
	return global
}

func createEncoder(format string) zapcore.Encoder {
	if format == configtypes.LogFormatJSON {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	if format == configtypes.LogFormatText {
		// no color codes in files
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(encoderConfig)
}

func createFileWriter(file configtypes.FileLogConfig) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   file.Path,
		MaxSize:    file.Rotation.MaxSize,
		MaxAge:     file.Rotation.MaxAge,
		MaxBackups: file.Rotation.MaxBackups,
		Compress:   file.Rotation.Compress,
	})
}
