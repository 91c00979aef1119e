package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// OpKind identifies the remote call a pending operation will replay.
type OpKind string

const (
	// OpBulkCreate registers many tags in one remote call.
	OpBulkCreate OpKind = "bulk_create"
	// OpBulkUpdate applies one update to many tags in one remote call.
	OpBulkUpdate OpKind = "bulk_update"
	// OpClear resets a basket back to unassigned.
	OpClear OpKind = "clear"
	// OpAdminUpdate is an administrative field correction.
	OpAdminUpdate OpKind = "admin_update"
	// OpSetStatus is a single-basket status transition.
	OpSetStatus OpKind = "set_status"
)

// Operation is one deferred write in the replay queue.
//
// Seq is assigned by SQLite AUTOINCREMENT and defines strict replay order.
// Target is the basket tag for single-basket operations, or a generated
// batch marker for multi-basket operations; Targets always lists the tags
// the operation touches. Payload carries enough JSON to reconstruct the
// remote call without consulting any other state.
type Operation struct {
	Seq        int64
	Kind       OpKind
	Target     string
	Targets    []string
	Payload    json.RawMessage
	RetryCount int
	EnqueuedAt time.Time
}

// ErrOperationNotFound is returned when a seq has no queued operation.
var ErrOperationNotFound = errors.New("pending operation not found")

// Enqueue appends an operation to the queue and returns its seq.
// The operation's Seq field is ignored on input.
func (s *Store) Enqueue(ctx context.Context, op Operation) (int64, error) {
	targetsJSON, err := json.Marshal(op.Targets)
	if err != nil {
		return 0, fmt.Errorf("enqueue operation: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_operations (kind, target, targets, payload, retry_count, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		string(op.Kind),
		op.Target,
		string(targetsJSON),
		string(op.Payload),
		op.RetryCount,
		op.EnqueuedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("enqueue operation: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("enqueue operation: %w", err)
	}

	s.notifyPending()
	return seq, nil
}

// Operations returns every queued operation ordered by seq ascending.
// This is the replay order contract: the reconciler must not reorder.
func (s *Store) Operations(ctx context.Context) ([]Operation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, target, targets, payload, retry_count, enqueued_at
		FROM pending_operations
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	var out []Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("list operations: %w", err)
		}
		out = append(out, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	return out, nil
}

// GetOperation loads a single queued operation by seq.
func (s *Store) GetOperation(ctx context.Context, seq int64) (Operation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, kind, target, targets, payload, retry_count, enqueued_at
		FROM pending_operations
		WHERE seq = ?
	`, seq)

	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Operation{}, ErrOperationNotFound
	}
	if err != nil {
		return Operation{}, fmt.Errorf("get operation %d: %w", seq, err)
	}
	return op, nil
}

// DeleteOperation removes a replayed operation from the queue.
func (s *Store) DeleteOperation(ctx context.Context, seq int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_operations WHERE seq = ?`, seq); err != nil {
		return fmt.Errorf("delete operation %d: %w", seq, err)
	}
	s.notifyPending()
	return nil
}

// BumpRetry increments the retry count of a failed replay.
func (s *Store) BumpRetry(ctx context.Context, seq int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pending_operations SET retry_count = retry_count + 1 WHERE seq = ?
	`, seq)
	if err != nil {
		return fmt.Errorf("bump retry %d: %w", seq, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump retry %d: %w", seq, err)
	}
	if n == 0 {
		return ErrOperationNotFound
	}
	return nil
}

// CancelForTag removes queued single-basket operations targeting a tag.
// Used by the administrative delete. Batch operations are left in place:
// cancelling a whole batch because one of its baskets was deleted would
// drop writes for the other baskets, so the server rejects the dead tag
// at replay instead.
func (s *Store) CancelForTag(ctx context.Context, tag string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM pending_operations
		WHERE target = ? AND json_array_length(targets) = 1
	`, tag)
	if err != nil {
		return 0, fmt.Errorf("cancel operations for %s: %w", tag, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cancel operations for %s: %w", tag, err)
	}
	if n > 0 {
		s.notifyPending()
	}
	return n, nil
}

// PendingCount returns the current queue length.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_operations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("pending count: %w", err)
	}
	return count, nil
}

func scanOperation(row rowScanner) (Operation, error) {
	var (
		op          Operation
		kind        string
		targetsJSON string
		payload     string
		enqueuedAt  string
	)
	err := row.Scan(&op.Seq, &kind, &op.Target, &targetsJSON, &payload, &op.RetryCount, &enqueuedAt)
	if err != nil {
		return Operation{}, err
	}

	op.Kind = OpKind(kind)
	op.Payload = json.RawMessage(payload)

	if err := json.Unmarshal([]byte(targetsJSON), &op.Targets); err != nil {
		return Operation{}, fmt.Errorf("parse targets: %w", err)
	}

	op.EnqueuedAt, err = time.Parse(timeFormat, enqueuedAt)
	if err != nil {
		return Operation{}, fmt.Errorf("parse enqueued_at: %w", err)
	}
	return op, nil
}
