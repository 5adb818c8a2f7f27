// Package logging sets up the log file the fix writes next to the host
// executable.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/cpuid/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 10
	maxBackups = 1
)

// ErrNoVectorUnit means the host CPU lacks the vector extension the
// register rewrites rely on
var ErrNoVectorUnit = errors.New("cpu does not support SSE2")

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Or returns l, or a discarding logger when l is nil.
func Or(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// Sink is an open log file.
type Sink struct {
	Path string
	w    *lumberjack.Logger
}

// Close flushes and closes the file.
func (s *Sink) Close() error {
	return s.w.Close()
}

// Open truncates (or creates) dir/name and returns a logger writing text
// records to it. The file is rotated once it grows past 10 MB.
func Open(dir, name string, level slog.Leveler) (*slog.Logger, *Sink, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return nil, nil, fmt.Errorf("create log file: %w", err)
	}
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h), &Sink{Path: path, w: w}, nil
}

// Module describes the executable the fix was loaded into.
type Module struct {
	Name      string
	Path      string
	Base      uintptr
	Timestamp uint32
}

// Banner writes the start-of-log records.
func Banner(l *slog.Logger, fix, version string, m Module) {
	l.Info("----------")
	l.Info(fix+" loaded", "version", version)
	l.Info("----------")
	l.Info("module", "name", m.Name, "path", m.Path)
	l.Info("module", "base", fmt.Sprintf("%#x", m.Base))
	if m.Timestamp != 0 {
		l.Info("module", "timestamp", m.Timestamp, "built", time.Unix(int64(m.Timestamp), 0).UTC().Format(time.RFC3339))
	}
	l.Info("cpu", "brand", cpuid.CPU.BrandName, "cores", cpuid.CPU.PhysicalCores, "sse2", cpuid.CPU.Supports(cpuid.SSE2))
	l.Info("----------")
}

// CheckCPU fails when the host CPU cannot run the fix.
func CheckCPU() error {
	if !cpuid.CPU.Supports(cpuid.SSE2) {
		return ErrNoVectorUnit
	}
	return nil
}
