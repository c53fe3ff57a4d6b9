package repository

import (
	"context"
	"errors"
	"time"

	"github.com/alexanderramin/arbor/internal/contract"
)

var ErrNotFound = errors.New("not found")

// Blob is a named, revisioned byte payload.
type Blob struct {
	Name      string
	Data      []byte
	Revision  int64
	UpdatedAt time.Time
}

type BlobRepo interface {
	Put(ctx context.Context, name string, data []byte) (int64, error)
	Get(ctx context.Context, name string) (*Blob, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
}

type AuditRepo interface {
	RecordAudit(ctx context.Context, entry contract.AuditEntry) error
	Recent(ctx context.Context, limit int) ([]contract.AuditEntry, error)
	CountByAgent(ctx context.Context) (map[string]int, error)
}
