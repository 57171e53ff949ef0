package dialog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditLog appends one row per tool invocation to Postgres. The start and
// completion writes are intentionally independent operations: the first
// establishes that the turn existed even if the caller platform times out,
// and the second must not block the response if the store is briefly slow.
type AuditLog struct {
	db *sql.DB
}

// NewAuditLog creates an audit log sink. A nil db disables auditing.
func NewAuditLog(db *sql.DB) *AuditLog {
	if db == nil {
		return nil
	}
	return &AuditLog{db: db}
}

// RecordStart inserts the invocation row before handling begins and
// returns the entry id for the completion write.
func (a *AuditLog) RecordStart(ctx context.Context, callID, toolName, rawArguments string) (string, error) {
	if a == nil || a.db == nil {
		return "", nil
	}

	id := uuid.NewString()
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO tool_invocations (id, call_id, tool_name, arguments, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, callID, toolName, rawArguments, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("dialog: audit start: %w", err)
	}
	return id, nil
}

// RecordResult completes the invocation row with outcome and latency.
func (a *AuditLog) RecordResult(ctx context.Context, entryID, result string, success bool, latency time.Duration) error {
	if a == nil || a.db == nil || entryID == "" {
		return nil
	}

	_, err := a.db.ExecContext(ctx, `
		UPDATE tool_invocations
		SET result = $1, success = $2, latency_ms = $3, completed_at = $4
		WHERE id = $5
	`, result, success, latency.Milliseconds(), time.Now().UTC(), entryID)
	if err != nil {
		return fmt.Errorf("dialog: audit result: %w", err)
	}
	return nil
}
