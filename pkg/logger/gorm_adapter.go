package logger

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger adapts the zerolog logger to the gorm logger interface
type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      gormlogger.LogLevel
}

// NewGormLogger creates a new GormLogger
func NewGormLogger() *GormLogger {
	return &GormLogger{
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      gormlogger.Warn,
	}
}

// LogMode sets the log level
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

// Info logs info messages
func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Info {
		Info(ctx).Msgf(msg, data...)
	}
}

// Warn logs warn messages
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Warn {
		Warn(ctx).Msgf(msg, data...)
	}
}

// Error logs error messages
func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Error {
		Error(ctx).Msgf(msg, data...)
	}
}

// Trace logs sql queries
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	var event *zerolog.Event
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		if l.LogLevel >= gormlogger.Error {
			event = Error(ctx).Err(err)
		}
	} else if elapsed > l.SlowThreshold && l.SlowThreshold != 0 {
		if l.LogLevel >= gormlogger.Warn {
			event = Warn(ctx).Str("slow_query", "true")
		}
	} else if l.LogLevel >= gormlogger.Info {
		event = Info(ctx)
	}

	if event != nil {
		event.
			Str("sql", sql).
			Float64("elapsed_ms", float64(elapsed.Nanoseconds())/1e6).
			Int64("rows", rows).
			Msg("GORM query")
	}
}
