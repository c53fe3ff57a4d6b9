package service

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/alexanderramin/arbor/internal/contract"
)

// AuditSink receives exactly one entry per guarded call. It is called
// synchronously; an error is logged and never retried.
type AuditSink interface {
	RecordAudit(ctx context.Context, entry contract.AuditEntry) error
}

type noopAuditSink struct{}

func (noopAuditSink) RecordAudit(context.Context, contract.AuditEntry) error { return nil }

type logAuditSink struct {
	logger *slog.Logger
}

// NewLogAuditSink writes audit entries as slog text lines.
func NewLogAuditSink(w io.Writer) AuditSink {
	if w == nil {
		return noopAuditSink{}
	}
	return &logAuditSink{logger: slog.New(slog.NewTextHandler(w, nil))}
}

func (s *logAuditSink) RecordAudit(ctx context.Context, e contract.AuditEntry) error {
	s.logger.InfoContext(ctx, "audit",
		"operation", e.Operation,
		"agent_id", e.AgentID,
		"target", e.Target,
		"success", e.Success,
		"error_code", string(e.ErrorCode),
		"message", e.Message,
		"at", e.Timestamp,
	)
	return nil
}

// MemoryAuditSink keeps entries in memory.
type MemoryAuditSink struct {
	mu      sync.Mutex
	entries []contract.AuditEntry
}

func (s *MemoryAuditSink) RecordAudit(_ context.Context, e contract.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

// Entries returns a copy of the recorded entries in arrival order.
func (s *MemoryAuditSink) Entries() []contract.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

// Len returns the number of recorded entries.
func (s *MemoryAuditSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
