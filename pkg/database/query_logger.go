package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/payflow-go/pkg/logger"
)

// SlowQueryThreshold is the duration past which a query is logged as slow.
const SlowQueryThreshold = 100 * time.Millisecond

// queryLogger adapts our structured logger to gorm's logger interface.
// Slow queries and errors are surfaced; routine trace output is dropped.
type queryLogger struct {
	log logger.Logger
}

func newQueryLogger(log logger.Logger) gormlogger.Interface {
	return &queryLogger{log: log}
}

func (l *queryLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return l
}

func (l *queryLogger) Info(_ context.Context, msg string, args ...interface{}) {
	l.log.Info(msg, "args", args)
}

func (l *queryLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	l.log.Warn(msg, "args", args)
}

func (l *queryLogger) Error(_ context.Context, msg string, args ...interface{}) {
	l.log.Error(msg, "args", args)
}

func (l *queryLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.log.Error("query failed",
			"error", err,
			"sql", sql,
			"rows", rows,
			"duration", elapsed)
	case elapsed > SlowQueryThreshold:
		sql, rows := fc()
		l.log.Warn("slow query",
			"sql", sql,
			"rows", rows,
			"duration", elapsed,
			"threshold", SlowQueryThreshold)
	}
}
