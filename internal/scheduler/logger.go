package scheduler

import (
	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
)

// ZapLogger adapts zap to Temporal's key-value logger.
type ZapLogger struct {
	s *zap.SugaredLogger
}

var (
	_ log.Logger     = (*ZapLogger)(nil)
	_ log.WithLogger = (*ZapLogger)(nil)
)

// NewZapLogger wraps l.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	return &ZapLogger{s: l.WithOptions(zap.AddCallerSkip(1)).Sugar().With("component", "temporal")}
}

func (z *ZapLogger) Debug(msg string, keyvals ...any) { z.s.Debugw(msg, keyvals...) }
func (z *ZapLogger) Info(msg string, keyvals ...any)  { z.s.Infow(msg, keyvals...) }
func (z *ZapLogger) Warn(msg string, keyvals ...any)  { z.s.Warnw(msg, keyvals...) }
func (z *ZapLogger) Error(msg string, keyvals ...any) { z.s.Errorw(msg, keyvals...) }

// With returns a logger carrying keyvals on every entry.
func (z *ZapLogger) With(keyvals ...any) log.Logger {
	return &ZapLogger{s: z.s.With(keyvals...)}
}
