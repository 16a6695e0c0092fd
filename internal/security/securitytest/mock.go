// Package securitytest provides test helpers for the security package.
package securitytest

import (
	"sync"

	"github.com/flemzord/tabllm/internal/security"
)

// NewTestRedactor returns a Redactor without key patterns, so tests only
// see redaction of literals they register.
func NewTestRedactor() *security.Redactor {
	return &security.Redactor{}
}

// AuditRecorder collects audit events in memory.
type AuditRecorder struct {
	mu     sync.Mutex
	events []security.AuditEvent
}

// NewAuditLogger returns an AuditLogger feeding a new recorder.
func NewAuditLogger() (*security.AuditLogger, *AuditRecorder) {
	rec := &AuditRecorder{}
	logger := security.NewAuditLogger(security.AuditLoggerConfig{
		OnEvent: func(e security.AuditEvent) {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.events = append(rec.events, e)
		},
	})
	return logger, rec
}

// Events returns a copy of the recorded events.
func (r *AuditRecorder) Events() []security.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]security.AuditEvent(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *AuditRecorder) Types() []security.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]security.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
