package repository

import (
	"context"
	"fmt"

	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/alexanderramin/arbor/internal/db"
)

// SQLiteAuditRepo persists audit entries. It satisfies service.AuditSink.
type SQLiteAuditRepo struct {
	db db.DBTX
}

func NewSQLiteAuditRepo(conn db.DBTX) *SQLiteAuditRepo {
	return &SQLiteAuditRepo{db: conn}
}

func (r *SQLiteAuditRepo) RecordAudit(ctx context.Context, e contract.AuditEntry) error {
	query := `INSERT INTO audit_log (operation, agent_id, target, success, error_code, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		e.Operation,
		e.AgentID,
		e.Target,
		boolToInt(e.Success),
		string(e.ErrorCode),
		e.Message,
		formatTime(e.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("recording audit entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (r *SQLiteAuditRepo) Recent(ctx context.Context, limit int) ([]contract.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT operation, agent_id, target, success, error_code, message, created_at
		FROM audit_log ORDER BY id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var out []contract.AuditEntry
	for rows.Next() {
		var (
			e       contract.AuditEntry
			success int
			code    string
			created string
		)
		if err := rows.Scan(&e.Operation, &e.AgentID, &e.Target, &success, &code, &e.Message, &created); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Success = intToBool(success)
		e.ErrorCode = contract.ErrorCode(code)
		e.Timestamp = parseTime(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountByAgent returns the number of entries per agent.
func (r *SQLiteAuditRepo) CountByAgent(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT agent_id, COUNT(*) FROM audit_log GROUP BY agent_id`)
	if err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			agent string
			n     int
		)
		if err := rows.Scan(&agent, &n); err != nil {
			return nil, fmt.Errorf("scanning audit count: %w", err)
		}
		out[agent] = n
	}
	return out, rows.Err()
}
