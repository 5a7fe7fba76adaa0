// Package gwlog provides concrete backings for orchestrator.Logger.
// Components only ever depend on the interface; cmd/gateway picks a
// backing at startup based on configuration.
package gwlog

import (
	"log/slog"

	"github.com/rs/zerolog"

	"github.com/lokutor-ai/lokutor-gateway/pkg/orchestrator"
)

// Slog adapts a *slog.Logger to orchestrator.Logger.
type Slog struct {
	l *slog.Logger
}

// NewSlog wraps l. A nil l falls back to slog.Default().
func NewSlog(l *slog.Logger) *Slog {
	if l == nil {
		l = slog.Default()
	}
	return &Slog{l: l}
}

func (s *Slog) Debug(msg string, args ...interface{}) { s.l.Debug(msg, args...) }
func (s *Slog) Info(msg string, args ...interface{})  { s.l.Info(msg, args...) }
func (s *Slog) Warn(msg string, args ...interface{})  { s.l.Warn(msg, args...) }
func (s *Slog) Error(msg string, args ...interface{}) { s.l.Error(msg, args...) }

var _ orchestrator.Logger = (*Slog)(nil)

// Zerolog adapts a zerolog.Logger to orchestrator.Logger, pairing each
// key from the args list with its following value the way slog does.
type Zerolog struct {
	l zerolog.Logger
}

// NewZerolog wraps l.
func NewZerolog(l zerolog.Logger) *Zerolog {
	return &Zerolog{l: l}
}

func (z *Zerolog) Debug(msg string, args ...interface{}) { z.event(z.l.Debug(), msg, args) }
func (z *Zerolog) Info(msg string, args ...interface{})  { z.event(z.l.Info(), msg, args) }
func (z *Zerolog) Warn(msg string, args ...interface{})  { z.event(z.l.Warn(), msg, args) }
func (z *Zerolog) Error(msg string, args ...interface{}) { z.event(z.l.Error(), msg, args) }

func (z *Zerolog) event(ev *zerolog.Event, msg string, args []interface{}) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(msg)
}

var _ orchestrator.Logger = (*Zerolog)(nil)
