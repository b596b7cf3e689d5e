package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects level, encoding and sink of the process logger.
type Options struct {
	Level  string
	Format string
	File   string
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds the process logger. Logs go to stderr unless File is set.
func New(opts Options) (*zap.Logger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if strings.EqualFold(opts.Format, "console") {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	sink := zapcore.Lock(os.Stderr)
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", opts.File, err)
		}
		sink = zapcore.AddSync(f)
	}

	core := zapcore.NewCore(enc, sink, zap.NewAtomicLevelAt(parseLevel(opts.Level)))
	return zap.New(core, zap.AddCaller()), nil
}

// Diagnostics is an append-only line log used for listing and dry-run
// context output. Each call to Line writes exactly one line.
type Diagnostics struct {
	log  *zap.Logger
	file *os.File
	path string
}

// DiagnosticsFileName follows the {name}-{M-dd-yyyy.HH-mm-ss}.log convention.
func DiagnosticsFileName(name string, at time.Time) string {
	return fmt.Sprintf("%s-%s.log", name, at.Format("1-02-2006.15-04-05"))
}

// NewDiagnostics opens dir/{name}-{timestamp}.log for appending.
func NewDiagnostics(dir, name string) (*Diagnostics, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create diagnostics dir: %w", err)
	}
	path := filepath.Join(dir, DiagnosticsFileName(name, time.Now()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open diagnostics log %s: %w", path, err)
	}
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(f), zapcore.InfoLevel)
	return &Diagnostics{log: zap.New(core), file: f, path: path}, nil
}

func (d *Diagnostics) Line(s string) {
	if d == nil {
		return
	}
	d.log.Info(s)
}

func (d *Diagnostics) Path() string {
	if d == nil {
		return ""
	}
	return d.path
}

func (d *Diagnostics) Close() error {
	if d == nil || d.file == nil {
		return nil
	}
	_ = d.log.Sync()
	err := d.file.Close()
	d.file = nil
	return err
}
