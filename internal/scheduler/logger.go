package scheduler

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

var _ cron.Logger = cronLogger{}

func newCronLogger(l *zap.Logger) cronLogger {
	return cronLogger{s: l.Named("cron").Sugar()}
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.s.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
