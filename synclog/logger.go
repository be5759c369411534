// Package synclog provides a small structured logging facade used
// throughout the syncable containers and their changeset algebra.
//
// Mutating a container, undoing a changeset, fusing a log or merging
// a cloud version never depends on whether a logger is attached: a
// logger is observability, not control flow. Every entry point accepts
// an optional Logger and falls back to NopLogger when none is given.
package synclog

// Logger is the logging interface used across the syncable packages.
type Logger interface {
	// Info logs a message at the info level, including any fields
	// passed into the call as well as any fields added via WithFields.
	Info(msg string, fields ...LogField)
	// Debug logs a message at the debug level.
	Debug(msg string, fields ...LogField)
	// Warn logs a message at the warn level.
	Warn(msg string, fields ...LogField)
	// Error logs a message at the error level.
	Error(msg string, fields ...LogField)
	// Fatal logs a message at the fatal level, then exits the process
	// with a non-zero status.
	Fatal(msg string, fields ...LogField)
	// WithFields returns a new logger enriched with the given fields
	// that will be included in all subsequent messages for the
	// returned logger.
	WithFields(fields ...LogField) Logger
	// Named returns a new logger with the given name appended to any
	// existing name, joined by a period.
	Named(name string) Logger
}

// LogField represents a key-value pair attached to a log message.
type LogField struct {
	Type      LogFieldType
	Key       string
	String    string
	Integer   int64
	Float     float64
	Bool      bool
	Err       error
	Interface interface{}
}

// LogFieldType determines which value of a LogField is populated.
type LogFieldType int

const (
	// StringLogFieldType represents a log field with a string value.
	StringLogFieldType LogFieldType = iota
	// IntegerLogFieldType represents a log field with an integer value.
	IntegerLogFieldType
	// FloatLogFieldType represents a log field with a float value.
	FloatLogFieldType
	// BoolLogFieldType represents a log field with a boolean value.
	BoolLogFieldType
	// ErrorLogFieldType represents a log field with an error value.
	ErrorLogFieldType
	// InterfaceLogFieldType represents a log field carrying an
	// arbitrary value with no more specific field type.
	InterfaceLogFieldType
)

// StringField creates a log field with a string value.
func StringField(key, value string) LogField {
	return LogField{Type: StringLogFieldType, Key: key, String: value}
}

// IntField creates a log field with an integer value.
func IntField(key string, value int64) LogField {
	return LogField{Type: IntegerLogFieldType, Key: key, Integer: value}
}

// FloatField creates a log field with a float value.
func FloatField(key string, value float64) LogField {
	return LogField{Type: FloatLogFieldType, Key: key, Float: value}
}

// BoolField creates a log field with a boolean value.
func BoolField(key string, value bool) LogField {
	return LogField{Type: BoolLogFieldType, Key: key, Bool: value}
}

// ErrField creates a log field with an error value.
func ErrField(key string, value error) LogField {
	return LogField{Type: ErrorLogFieldType, Key: key, Err: value}
}

// InterfaceField creates a log field carrying an arbitrary value,
// for context that doesn't fit the other field types.
func InterfaceField(key string, value interface{}) LogField {
	return LogField{Type: InterfaceLogFieldType, Key: key, Interface: value}
}

// NopLogger is a Logger implementation that discards every message.
// Its Fatal discards the message too and does not exit the process.
// It is the default logger for every container that is not given one
// explicitly.
type NopLogger struct{}

// NewNopLogger creates a logger that discards every message.
func NewNopLogger() Logger {
	return &NopLogger{}
}

func (l *NopLogger) Info(msg string, fields ...LogField)  {}
func (l *NopLogger) Debug(msg string, fields ...LogField) {}
func (l *NopLogger) Warn(msg string, fields ...LogField)  {}
func (l *NopLogger) Error(msg string, fields ...LogField) {}
func (l *NopLogger) Fatal(msg string, fields ...LogField) {}

func (l *NopLogger) WithFields(fields ...LogField) Logger {
	return l
}

func (l *NopLogger) Named(name string) Logger {
	return l
}
