package repositories

import (
	"context"
	"log/slog"
	"time"

	"modelrepo/src/domain/entities"
)

// Invocation describes one proxied call. Result, Err and Transactional are
// filled in before AfterProxy runs.
type Invocation struct {
	Method        string
	Args          []any
	Result        any
	Err           error
	StartedAt     time.Time
	Transactional bool
}

// Model returns the model the call worked on: the result if it is a model,
// otherwise the first model argument.
func (i *Invocation) Model() (*entities.Model, bool) {
	if m, ok := i.Result.(*entities.Model); ok && m != nil {
		return m, true
	}
	for _, arg := range i.Args {
		if m, ok := arg.(*entities.Model); ok && m != nil {
			return m, true
		}
	}
	return nil, false
}

// AffectedID returns the id of the entity the call touched.
func (i *Invocation) AffectedID() (int64, bool) {
	if m, ok := i.Model(); ok && m.GetID() != 0 {
		return m.GetID(), true
	}
	if len(i.Args) > 0 {
		return entities.ToID(i.Args[0])
	}
	return 0, false
}

func (i *Invocation) IsMutation() bool {
	switch i.Method {
	case MethodCreate, MethodUpdate, MethodDelete:
		return true
	}
	return false
}

// Interceptor adds cross-cutting behaviour around every proxied call.
// BeforeProxy may veto the call by returning an error.
type Interceptor interface {
	BeforeProxy(ctx context.Context, inv *Invocation) error
	AfterProxy(ctx context.Context, inv *Invocation)
}

type LoggingInterceptor struct {
	logger *slog.Logger
}

func NewLoggingInterceptor(logger *slog.Logger) *LoggingInterceptor {
	return &LoggingInterceptor{logger: logger}
}

func (l *LoggingInterceptor) BeforeProxy(ctx context.Context, inv *Invocation) error {
	l.logger.DebugContext(ctx, "Repository call started", "method", inv.Method, "args", len(inv.Args))
	return nil
}

func (l *LoggingInterceptor) AfterProxy(ctx context.Context, inv *Invocation) {
	elapsed := time.Since(inv.StartedAt)
	if inv.Err != nil {
		l.logger.ErrorContext(ctx, "Repository call failed",
			"method", inv.Method,
			"transactional", inv.Transactional,
			"duration_ms", elapsed.Milliseconds(),
			"error", inv.Err)
		return
	}

	// Leituras e chamadas sem escrita ficam em debug.
	level := slog.LevelDebug
	if inv.IsMutation() || inv.Transactional {
		level = slog.LevelInfo
	}
	l.logger.Log(ctx, level, "Repository call finished",
		"method", inv.Method,
		"transactional", inv.Transactional,
		"duration_ms", elapsed.Milliseconds())
}
