package logging

import (
	"context"
	"maps"
	"os"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a zap logger to the Logger interface.
// Debug/Info/Warn/Error map onto the matching zap levels, Fatal calls
// zap's Fatal which exits the process.
type ZapLogger struct {
	logger *zap.Logger
	level  zap.AtomicLevel
	fields Fields
}

// NewZapLogger wraps an existing zap logger. The level filter applied by
// SetLevel sits on top of whatever level the zap core already enforces.
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{
		logger: logger,
		level:  zap.NewAtomicLevelAt(zapcore.DebugLevel),
		fields: make(Fields),
	}
}

// NewDefaultLogger creates a console logger on stderr at info level.
// Colors are enabled when stderr is a terminal.
func NewDefaultLogger() *ZapLogger {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	if isTerminal() {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stderr), level)

	return &ZapLogger{
		logger: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)),
		level:  level,
		fields: make(Fields),
	}
}

// NewProductionLogger creates a JSON logger using zap's production config.
func NewProductionLogger() (*ZapLogger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	logger, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &ZapLogger{
		logger: logger,
		level:  config.Level,
		fields: make(Fields),
	}, nil
}

// isTerminal checks if stderr is a character device
func isTerminal() bool {
	if fileInfo, _ := os.Stderr.Stat(); fileInfo != nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

func toZapLevel(level Level) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// zapFields merges preset and call-site fields into sorted zap fields so the
// output order is stable.
func (z *ZapLogger) zapFields(err error, fields ...Fields) []zap.Field {
	allFields := make(Fields, len(z.fields))
	maps.Copy(allFields, z.fields)
	for _, f := range fields {
		maps.Copy(allFields, f)
	}

	keys := make([]string, 0, len(allFields))
	for k := range allFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys)+1)
	for _, k := range keys {
		out = append(out, zap.Any(k, allFields[k]))
	}
	if err != nil {
		out = append(out, zap.Error(err))
	}
	return out
}

func (z *ZapLogger) log(level Level, err error, msg string, fields ...Fields) {
	zl := toZapLevel(level)
	if !z.level.Enabled(zl) {
		return
	}
	if ce := z.logger.Check(zl, msg); ce != nil {
		ce.Write(z.zapFields(err, fields...)...)
	}
}

func (z *ZapLogger) Debug(msg string, fields ...Fields) {
	z.log(DebugLevel, nil, msg, fields...)
}

func (z *ZapLogger) Info(msg string, fields ...Fields) {
	z.log(InfoLevel, nil, msg, fields...)
}

func (z *ZapLogger) Warn(msg string, fields ...Fields) {
	z.log(WarnLevel, nil, msg, fields...)
}

func (z *ZapLogger) Error(err error, msg string, fields ...Fields) {
	z.log(ErrorLevel, err, msg, fields...)
}

func (z *ZapLogger) Fatal(err error, msg string, fields ...Fields) {
	z.log(FatalLevel, err, msg, fields...)
}

func (z *ZapLogger) WithFields(fields Fields) Logger {
	newFields := make(Fields, len(z.fields)+len(fields))
	maps.Copy(newFields, z.fields)
	maps.Copy(newFields, fields)

	return &ZapLogger{
		logger: z.logger,
		level:  z.level,
		fields: newFields,
	}
}

func (z *ZapLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := fieldsFromContext(ctx); ok {
		return z.WithFields(fields)
	}
	return z
}

// SetLevel changes the minimum level. Loggers derived through WithFields
// share the level with their parent.
func (z *ZapLogger) SetLevel(level Level) {
	z.level.SetLevel(toZapLevel(level))
}

// Sync flushes buffered log entries.
func (z *ZapLogger) Sync() error {
	return z.logger.Sync()
}

// NoOpLogger discards everything. Used when logging is disabled and in tests
// that do not assert on output.
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, fields ...Fields)            {}
func (n *NoOpLogger) Info(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Warn(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Error(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) Fatal(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) WithFields(fields Fields) Logger               { return n }
func (n *NoOpLogger) WithContext(ctx context.Context) Logger        { return n }
func (n *NoOpLogger) SetLevel(level Level)                          {}
