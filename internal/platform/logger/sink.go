package logger

import (
	"context"
	stderrs "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"authgate/internal/platform/config/raw"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// SinkName is the env var naming the operator error log file
	SinkName = "ERROR_LOGS"

	// SinkMessage is the message attached to every request failure record
	SinkMessage = "Error occurred while processing request"
)

// SinkOptions configures the operator error sink
type SinkOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Writer     io.Writer // overrides Path when set
}

// SinkFromEnv reads ERROR_LOGS and its rotation knobs
func SinkFromEnv() SinkOptions {
	rc := raw.New()
	return SinkOptions{
		Path:       rc.Get(SinkName, ""),
		MaxSizeMB:  rc.GetInt(SinkName+"_MAX_SIZE_MB", 100),
		MaxBackups: rc.GetInt(SinkName+"_MAX_BACKUPS", 3),
		MaxAgeDays: rc.GetInt(SinkName+"_MAX_AGE_DAYS", 28),
		Compress:   rc.GetBool(SinkName+"_COMPRESS", true),
	}
}

// Sink records request failures for operators, apart from the main log stream
type Sink struct {
	log    zerolog.Logger
	file   string
	closer io.Closer
}

// NewSink builds a sink writing JSON lines to a rotated file, or stderr when no path is set.
// If the log directory cannot be created the sink still works on stderr and the error is returned.
func NewSink(opt SinkOptions) (*Sink, error) {
	s := &Sink{file: SinkName}
	w, err := s.output(opt)
	s.log = zerolog.New(w).With().Timestamp().Logger()
	return s, err
}

func (s *Sink) output(opt SinkOptions) (io.Writer, error) {
	if opt.Writer != nil {
		return opt.Writer, nil
	}
	if opt.Path == "" {
		return os.Stderr, nil
	}
	if err := os.MkdirAll(filepath.Dir(opt.Path), 0o755); err != nil {
		return os.Stderr, fmt.Errorf("create error log dir: %w", err)
	}
	rot := &lumberjack.Logger{
		Filename:   opt.Path,
		MaxSize:    opt.MaxSizeMB,
		MaxBackups: opt.MaxBackups,
		MaxAge:     opt.MaxAgeDays,
		Compress:   opt.Compress,
		LocalTime:  true,
	}
	s.file = opt.Path
	s.closer = rot
	return rot, nil
}

// File returns the configured sink reference
func (s *Sink) File() string { return s.file }

// Report writes one failure record: message, the error object and the sink reference
// A nil sink falls back to the root logger
func (s *Sink) Report(ctx context.Context, err error) {
	if err == nil {
		return
	}
	var l *Logger
	file := SinkName
	if s != nil {
		l, file = &s.log, s.file
	} else {
		l = Named("sink")
	}
	ev := l.Error().
		Str("file", file).
		Interface("object", errorObject(err))
	if ctx != nil {
		if id, ok := ctx.Value(keyRequestID).(string); ok && id != "" {
			ev = ev.Str("request_id", id)
		}
	}
	ev.Msg(SinkMessage)
}

// Close flushes and closes the rotated file, if any
func (s *Sink) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// errorObject renders err as a structured object, keeping the cause chain
func errorObject(err error) map[string]any {
	obj := map[string]any{
		"error": err.Error(),
		"type":  fmt.Sprintf("%T", err),
	}
	var chain []string
	for u := stderrs.Unwrap(err); u != nil; u = stderrs.Unwrap(u) {
		chain = append(chain, u.Error())
	}
	if len(chain) > 0 {
		obj["causes"] = chain
	}
	return obj
}
