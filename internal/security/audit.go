package security

import (
	"encoding/json"
	"io"
	"maps"
	"sync"
	"time"
)

// EventType categorizes audit events.
type EventType string

const (
	EventFunctionCall EventType = "function_call"
	EventAuthFailure  EventType = "auth_failure"
	EventRateLimit    EventType = "rate_limit"
	EventModelChange  EventType = "model_change"
	EventPromptChange EventType = "prompt_change"
	EventSecretChange EventType = "secret_change"
)

// AuditEvent is one line of the audit trail.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	Client    string            `json:"client,omitempty"`
	Function  string            `json:"function,omitempty"`
	Outcome   string            `json:"outcome,omitempty"`
	Detail    string            `json:"detail,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditLoggerConfig configures an AuditLogger.
type AuditLoggerConfig struct {
	// Writer receives one JSON object per line. Nil disables writing.
	Writer io.Writer

	// Redactor scrubs Detail and Metadata values when set.
	Redactor *Redactor

	// OnEvent sees every event after redaction.
	OnEvent func(AuditEvent)

	Now func() time.Time
}

// AuditLogger writes the audit trail as JSON lines.
type AuditLogger struct {
	mu       sync.Mutex
	enc      *json.Encoder
	redactor *Redactor
	onEvent  func(AuditEvent)
	now      func() time.Time
}

// NewAuditLogger creates an audit logger.
func NewAuditLogger(cfg AuditLoggerConfig) *AuditLogger {
	l := &AuditLogger{redactor: cfg.Redactor, onEvent: cfg.OnEvent, now: cfg.Now}
	if cfg.Writer != nil {
		l.enc = json.NewEncoder(cfg.Writer)
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Log stamps and records event. The caller's Metadata map is not modified.
// A nil logger drops the event.
func (l *AuditLogger) Log(event AuditEvent) {
	if l == nil {
		return
	}
	event.Timestamp = l.now()
	event.Metadata = maps.Clone(event.Metadata)
	if l.redactor != nil {
		event.Detail = l.redactor.Redact(event.Detail)
		for k, v := range event.Metadata {
			event.Metadata[k] = l.redactor.Redact(v)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.onEvent != nil {
		l.onEvent(event)
	}
	if l.enc != nil {
		_ = l.enc.Encode(event)
	}
}
