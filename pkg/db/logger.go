package db

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// gormLogger routes GORM's log output through the application's logrus
// logger. Claim transactions serialize on a single SQLite connection, so a
// slow query here usually means lock contention, not a bad query plan.
type gormLogger struct {
	logger        *logrus.Logger
	slowThreshold time.Duration
}

func newGormLogger(base *logrus.Logger) *gormLogger {
	return &gormLogger{
		logger:        base,
		slowThreshold: 250 * time.Millisecond,
	}
}

// LogMode implements logger.Interface. Verbosity is controlled by the
// logrus level, so GORM's own level is ignored.
func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return l
}

func (l *gormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.logger.WithContext(ctx).WithField("component", "taskdb").Debugf(msg, args...)
}

func (l *gormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.logger.WithContext(ctx).WithField("component", "taskdb").Warnf(msg, args...)
}

func (l *gormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.logger.WithContext(ctx).WithField("component", "taskdb").Errorf(msg, args...)
}

// Trace implements logger.Interface. ErrRecordNotFound is routine here:
// every drained-queue check ends with a not-found select, so it logs at
// debug rather than as a failure.
func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	entry := l.logger.WithContext(ctx).WithFields(logrus.Fields{
		"component": "taskdb",
		"elapsed":   elapsed.String(),
		"rows":      rows,
		"sql":       sql,
	})

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		entry.WithField("error", err).Error("Task store query failed")
	case elapsed > l.slowThreshold:
		entry.Warn("Slow task store query, likely lock contention")
	default:
		entry.Debug("Task store query")
	}
}
