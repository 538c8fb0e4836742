package observability

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harun/medic/internal/tracing"
	"github.com/rs/zerolog"
)

type runIDKey struct{}

// WithRunID tags ctx with the diagnosis run it belongs to
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID returns the run id stored in ctx, if any
func RunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// AuditEvent represents a structured event for the audit log
type AuditEvent struct {
	Type      string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Actor     string                 `json:"actor,omitempty"`
	Action    string                 `json:"action"` // e.g. "command_executed", "script_approved"
	Status    string                 `json:"status"` // "success", "failure", "denied"
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	RunID     string                 `json:"run_id,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
}

// AuditLogger records guardrail and consent events
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   *os.File
}

var (
	auditMu   sync.Mutex
	auditInst *AuditLogger
)

// GetAuditLogger returns the global audit logger instance.
// Until InitAuditLogger is called events are discarded.
func GetAuditLogger() *AuditLogger {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditInst == nil {
		auditInst = &AuditLogger{logger: zerolog.Nop()}
	}
	return auditInst
}

// InitAuditLogger directs audit events to the file at path
func InitAuditLogger(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	auditInst = &AuditLogger{
		logger: zerolog.New(file).With().Timestamp().Logger(),
		file:   file,
	}
	return nil
}

// Record emits an audit event
func (a *AuditLogger) Record(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RunID == "" {
		event.RunID = RunID(ctx)
	}
	if event.TraceID == "" {
		event.TraceID = tracing.TraceID(ctx)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Str("type", event.Type).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("status", event.Status).
		Str("run_id", event.RunID)

	if event.TraceID != "" {
		entry.Str("trace_id", event.TraceID)
	}

	if event.Metadata != nil {
		entry.Interface("metadata", event.Metadata)
	}

	entry.Msg("")
}

// Close closes the audit logger's file handle
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	a.logger = zerolog.Nop()
	return err
}

func RecordCommandAudit(ctx context.Context, command, status string, metadata map[string]interface{}) {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["command"] = command
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     "command",
		Actor:    "agent",
		Action:   "execute",
		Status:   status,
		Metadata: metadata,
	})
}

func RecordConsentAudit(ctx context.Context, action string, metadata map[string]interface{}) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     "consent",
		Actor:    "user",
		Action:   action,
		Status:   "success",
		Metadata: metadata,
	})
}
