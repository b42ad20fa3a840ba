package logging

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

// WatermillAdapter routes watermill logs into zap.
type WatermillAdapter struct {
	logger *zap.Logger
}

// NewWatermillAdapter wraps logger.
func NewWatermillAdapter(logger *zap.Logger) *WatermillAdapter {
	return &WatermillAdapter{logger: logger.Named("watermill")}
}

func (a *WatermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.logger.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (a *WatermillAdapter) Info(msg string, fields watermill.LogFields) {
	a.logger.Info(msg, zapFields(fields)...)
}

func (a *WatermillAdapter) Debug(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, zapFields(fields)...)
}

// Trace is logged at debug level; zap has nothing finer.
func (a *WatermillAdapter) Trace(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, zapFields(fields)...)
}

func (a *WatermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillAdapter{logger: a.logger.With(zapFields(fields)...)}
}

func zapFields(fields watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}

	return out
}
