package log

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/clipforge/clipforge/pkg/requestid"
)

// StructuredLogger emits one log line per operation step. Steps and successes
// are logged at debug level, errors at error level.
type StructuredLogger struct {
	name string
}

func NewDebugLogger(name string) *StructuredLogger {
	return &StructuredLogger{name: name}
}

// WithContext binds the request id found in ctx, if any.
func (l *StructuredLogger) WithContext(ctx context.Context) *ContextLogger {
	return &ContextLogger{name: l.name, requestID: requestid.FromContext(ctx)}
}

type ContextLogger struct {
	name      string
	requestID string
}

func (c *ContextLogger) Operation(op string) *OperationBuilder {
	return &OperationBuilder{ctx: c, op: op}
}

type OperationBuilder struct {
	ctx    *ContextLogger
	op     string
	fields []zap.Field
}

func (b *OperationBuilder) WithString(key, value string) *OperationBuilder {
	b.fields = append(b.fields, zap.String(key, value))
	return b
}

func (b *OperationBuilder) WithInt(key string, value int) *OperationBuilder {
	b.fields = append(b.fields, zap.Int(key, value))
	return b
}

func (b *OperationBuilder) WithBool(key string, value bool) *OperationBuilder {
	b.fields = append(b.fields, zap.Bool(key, value))
	return b
}

func (b *OperationBuilder) WithUUID(key string, value uuid.UUID) *OperationBuilder {
	b.fields = append(b.fields, zap.String(key, value.String()))
	return b
}

func (b *OperationBuilder) WithParam(key string, value any) *OperationBuilder {
	b.fields = append(b.fields, zap.Any(key, value))
	return b
}

func (b *OperationBuilder) Build() *OperationTracer {
	fields := make([]zap.Field, 0, len(b.fields)+2)
	fields = append(fields, zap.String("operation", b.op))
	if b.ctx.requestID != "" {
		fields = append(fields, zap.String("request_id", b.ctx.requestID))
	}
	fields = append(fields, b.fields...)

	return &OperationTracer{
		name:   b.ctx.name,
		fields: fields,
		start:  time.Now(),
	}
}

// OperationTracer is created once per operation and hands out log entries.
type OperationTracer struct {
	name   string
	fields []zap.Field
	start  time.Time
}

func (t *OperationTracer) Step(step string) *Entry {
	return t.entry(zapcore.DebugLevel, "operation step", zap.String("step", step))
}

func (t *OperationTracer) Success() *Entry {
	return t.entry(zapcore.DebugLevel, "operation succeeded", zap.Duration("duration", time.Since(t.start)))
}

func (t *OperationTracer) Error(err error) *Entry {
	return t.entry(zapcore.ErrorLevel, "operation failed", zap.Error(err), zap.Duration("duration", time.Since(t.start)))
}

func (t *OperationTracer) entry(lvl zapcore.Level, msg string, extra ...zap.Field) *Entry {
	fields := make([]zap.Field, 0, len(t.fields)+len(extra))
	fields = append(fields, t.fields...)
	fields = append(fields, extra...)
	return &Entry{name: t.name, level: lvl, msg: msg, fields: fields}
}

type Entry struct {
	name   string
	level  zapcore.Level
	msg    string
	fields []zap.Field
}

func (e *Entry) WithString(key, value string) *Entry {
	e.fields = append(e.fields, zap.String(key, value))
	return e
}

func (e *Entry) WithInt(key string, value int) *Entry {
	e.fields = append(e.fields, zap.Int(key, value))
	return e
}

func (e *Entry) WithBool(key string, value bool) *Entry {
	e.fields = append(e.fields, zap.Bool(key, value))
	return e
}

func (e *Entry) WithParam(key string, value any) *Entry {
	e.fields = append(e.fields, zap.Any(key, value))
	return e
}

func (e *Entry) Log() {
	// resolved at log time so zap.ReplaceGlobals done after construction applies
	logger := zap.L().Named(e.name)
	if ce := logger.Check(e.level, e.msg); ce != nil {
		ce.Write(e.fields...)
	}
}
