package synclog

import (
	"go.uber.org/zap"
)

type loggerFromZap struct {
	zapLogger *zap.Logger
}

// NewLoggerFromZap creates a Logger backed by a zap logger.
func NewLoggerFromZap(zapLogger *zap.Logger) Logger {
	return &loggerFromZap{zapLogger}
}

func (l *loggerFromZap) Debug(message string, fields ...LogField) {
	l.zapLogger.Debug(message, convertFieldsToZap(fields)...)
}

func (l *loggerFromZap) Info(message string, fields ...LogField) {
	l.zapLogger.Info(message, convertFieldsToZap(fields)...)
}

func (l *loggerFromZap) Warn(message string, fields ...LogField) {
	l.zapLogger.Warn(message, convertFieldsToZap(fields)...)
}

func (l *loggerFromZap) Error(message string, fields ...LogField) {
	l.zapLogger.Error(message, convertFieldsToZap(fields)...)
}

func (l *loggerFromZap) Fatal(message string, fields ...LogField) {
	l.zapLogger.Fatal(message, convertFieldsToZap(fields)...)
}

func (l *loggerFromZap) WithFields(fields ...LogField) Logger {
	return &loggerFromZap{zapLogger: l.zapLogger.With(convertFieldsToZap(fields)...)}
}

func (l *loggerFromZap) Named(name string) Logger {
	return &loggerFromZap{zapLogger: l.zapLogger.Named(name)}
}

func convertFieldsToZap(fields []LogField) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		zapFields = append(zapFields, convertFieldToZap(field))
	}
	return zapFields
}

func convertFieldToZap(field LogField) zap.Field {
	switch field.Type {
	case StringLogFieldType:
		return zap.String(field.Key, field.String)
	case IntegerLogFieldType:
		return zap.Int64(field.Key, field.Integer)
	case FloatLogFieldType:
		return zap.Float64(field.Key, field.Float)
	case BoolLogFieldType:
		return zap.Bool(field.Key, field.Bool)
	case ErrorLogFieldType:
		return zap.Error(field.Err)
	case InterfaceLogFieldType:
		return zap.Any(field.Key, field.Interface)
	default:
		return zap.Skip()
	}
}
