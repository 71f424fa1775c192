// Package logging builds the zap loggers used across the projector.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultLogFilename is the rotated log file written under Options.Dir.
const DefaultLogFilename = "infinity.log"

const (
	black color = iota + 30
	red
	green
	yellow
	blue
	magenta
	cyan
	white
)

// color represents a text color.
type color uint8

// Add adds the coloring to the given string.
func (c color) Add(s string) string {
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", uint8(c), s)
}

// LevelMap maps configuration level names to zap levels.
var LevelMap = map[string]zapcore.Level{
	"debug":    zap.DebugLevel,
	"info":     zap.InfoLevel,
	"warn":     zap.WarnLevel,
	"warning":  zap.WarnLevel,
	"error":    zap.ErrorLevel,
	"critical": zap.DPanicLevel,
}

var levelSeverity = map[zapcore.Level]string{
	zapcore.DebugLevel:  "DEBUG",
	zapcore.InfoLevel:   "INFO",
	zapcore.WarnLevel:   "WARNING",
	zapcore.ErrorLevel:  "ERROR",
	zapcore.DPanicLevel: "CRITICAL",
	zapcore.PanicLevel:  "ALERT",
	zapcore.FatalLevel:  "EMERGENCY",
}

var levelToColor = map[zapcore.Level]color{
	zapcore.DebugLevel:  magenta,
	zapcore.InfoLevel:   blue,
	zapcore.WarnLevel:   yellow,
	zapcore.ErrorLevel:  red,
	zapcore.DPanicLevel: red,
	zapcore.PanicLevel:  red,
	zapcore.FatalLevel:  red,
}

// Options controls Setup.
type Options struct {
	// Level is one of the LevelMap keys. Empty means info.
	Level string
	// Dir, when set, receives a rotated JSON copy of every entry.
	Dir string
	// Output is the console destination. Nil means stderr.
	Output io.Writer
	// NoColor disables ANSI level colors on the console.
	NoColor bool
}

// ParseLevel resolves a level name case-insensitively.
func ParseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zap.InfoLevel, nil
	}
	l, ok := LevelMap[strings.ToLower(level)]
	if !ok {
		return 0, fmt.Errorf("invalid log level %q", level)
	}
	return l, nil
}

// Setup builds a console logger, plus a rotating file logger when opts.Dir
// is set. The returned close function flushes and releases the file.
func Setup(opts Options) (*zap.SugaredLogger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	atom := zap.NewAtomicLevelAt(level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	encCfg.ConsoleSeparator = "  "
	if opts.NoColor {
		encCfg.EncodeLevel = func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + levelSeverity[level] + "]")
		}
	} else {
		encCfg.EncodeLevel = func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + levelToColor[level].Add(levelSeverity[level]) + "]")
		}
	}

	var out io.Writer = os.Stderr
	if opts.Output != nil {
		out = opts.Output
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(out), atom),
	}

	var rotator *lumberjack.Logger
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		rotator = &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, DefaultLogFilename),
			MaxSize:    10, // Megabytes
			MaxBackups: 3,
			MaxAge:     30, // Days
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.RFC3339TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(rotator), atom))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	closeFn := func() error {
		_ = logger.Sync()
		if rotator != nil {
			return rotator.Close()
		}
		return nil
	}
	return logger.Sugar(), closeFn, nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
