// Copyright 2025 Cloudbase Solutions SRL
//
//	Licensed under the Apache License, Version 2.0 (the "License"); you may
//	not use this file except in compliance with the License. You may obtain
//	a copy of the License at
//
//	     http://www.apache.org/licenses/LICENSE-2.0
//
//	Unless required by applicable law or agreed to in writing, software
//	distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
//	WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
//	License for the specific language governing permissions and limitations
//	under the License.

package util

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cloudbase/gitlab-job-exporter/config"
)

type slogContextKey string

const (
	slogCtxFields slogContextKey = "slog_ctx_fields"
)

type ContextHandler struct {
	slog.Handler
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs, ok := ctx.Value(slogCtxFields).([]slog.Attr)
	if ok {
		for _, v := range attrs {
			r.AddAttrs(v)
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ContextHandler{h.Handler.WithAttrs(attrs)}
}

func (h ContextHandler) WithGroup(name string) slog.Handler {
	return ContextHandler{h.Handler.WithGroup(name)}
}

// WithSlogContext returns a context that carries attrs in addition to
// any attributes already set on ctx. Every record logged with this context
// gets them attached.
func WithSlogContext(ctx context.Context, attrs ...slog.Attr) context.Context {
	existing, _ := ctx.Value(slogCtxFields).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(existing)+len(attrs))
	merged = append(merged, existing...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, slogCtxFields, merged)
}

// GetLoggingWriter returns the writer logs should go to. If a log file is
// configured, the returned writer rotates it.
func GetLoggingWriter(cfg config.Logging) (io.Writer, error) {
	if cfg.LogFile == "" {
		return os.Stdout, nil
	}

	dirname := filepath.Dir(cfg.LogFile)
	if _, err := os.Stat(dirname); err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "checking log dir")
		}
		if err := os.MkdirAll(dirname, 0o711); err != nil {
			return nil, errors.Wrapf(err, "creating log dir %s", dirname)
		}
	}

	maxSize := cfg.LogMaxSizeMB
	if maxSize == 0 {
		maxSize = 500
	}
	return &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    maxSize, // megabytes
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays, // days
		Compress:   true,
	}, nil
}

func logLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LevelDebug:
		return slog.LevelDebug
	case config.LevelWarn:
		return slog.LevelWarn
	case config.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a logger writing to w, honoring the configured level
// and format.
func NewLogger(w io.Writer, cfg config.Logging) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case config.FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(ContextHandler{Handler: handler})
}

// SetupLogging sets the default slog logger according to cfg and returns
// the writer it logs to, so other components (the HTTP access log) can
// share it.
func SetupLogging(cfg config.Logging) (io.Writer, error) {
	writer, err := GetLoggingWriter(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "fetching log writer")
	}
	slog.SetDefault(NewLogger(writer, cfg))
	return writer, nil
}
