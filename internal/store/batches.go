package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateBatch inserts a batch and assigns the given spans to it in one
// transaction. Spans already assigned to another batch reject the whole create.
func (s *Store) CreateBatch(ctx context.Context, projectID, name string, spanIDs []string) (*Batch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create batch begin: %w", err)
	}
	defer tx.Rollback()

	if len(spanIDs) > 0 {
		var taken int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM root_spans WHERE id = ANY($1) AND batch_id IS NOT NULL`,
			spanIDs,
		).Scan(&taken)
		if err != nil {
			return nil, fmt.Errorf("create batch span check: %w", err)
		}
		if taken > 0 {
			return nil, ErrSpanAssigned
		}
	}

	b := &Batch{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO batches (id, project_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		b.ID, b.ProjectID, b.Name, b.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create batch insert: %w", err)
	}

	if len(spanIDs) > 0 {
		if err = attachSpans(ctx, tx, b.ID, spanIDs); err != nil {
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("create batch commit: %w", err)
	}
	return b, nil
}

// UpdateBatch renames a batch and reconciles its span set in one transaction:
// spans dropped from the set are detached and their annotations removed, newly
// listed spans are attached.
func (s *Store) UpdateBatch(ctx context.Context, batchID, name string, spanIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update batch begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE batches SET name = $1 WHERE id = $2`, name, batchID)
	if err != nil {
		return fmt.Errorf("update batch rename: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBatchNotFound
	}

	current, err := batchSpanIDs(ctx, tx, batchID)
	if err != nil {
		return err
	}

	keep := make(map[string]bool, len(spanIDs))
	for _, id := range spanIDs {
		keep[id] = true
	}
	var detach []string
	for _, id := range current {
		if !keep[id] {
			detach = append(detach, id)
		}
	}
	assigned := make(map[string]bool, len(current))
	for _, id := range current {
		assigned[id] = true
	}
	var attach []string
	for _, id := range spanIDs {
		if !assigned[id] {
			attach = append(attach, id)
		}
	}

	if len(detach) > 0 {
		if err = detachSpans(ctx, tx, detach); err != nil {
			return err
		}
	}
	if len(attach) > 0 {
		if err = attachSpans(ctx, tx, batchID, attach); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("update batch commit: %w", err)
	}
	return nil
}

// DeleteBatch removes a batch, detaching all its spans and removing their
// annotations, as one transaction.
func (s *Store) DeleteBatch(ctx context.Context, batchID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete batch begin: %w", err)
	}
	defer tx.Rollback()

	spans, err := batchSpanIDs(ctx, tx, batchID)
	if err != nil {
		return err
	}
	if len(spans) > 0 {
		if err = detachSpans(ctx, tx, spans); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM batches WHERE id = $1`, batchID)
	if err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBatchNotFound
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("delete batch commit: %w", err)
	}
	return nil
}

// GetBatch returns a single batch by id.
func (s *Store) GetBatch(ctx context.Context, batchID string) (*Batch, error) {
	var b Batch
	var formattedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, name, created_at, formatted_at FROM batches WHERE id = $1`,
		batchID,
	).Scan(&b.ID, &b.ProjectID, &b.Name, &b.CreatedAt, &formattedAt)
	if err == sql.ErrNoRows {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	if formattedAt.Valid {
		b.FormattedAt = &formattedAt.Time
	}
	return &b, nil
}

func batchSpanIDs(ctx context.Context, tx *sql.Tx, batchID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM root_spans WHERE batch_id = $1`, batchID)
	if err != nil {
		return nil, fmt.Errorf("batch span ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func attachSpans(ctx context.Context, tx *sql.Tx, batchID string, spanIDs []string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE root_spans SET batch_id = $1 WHERE id = ANY($2)`,
		batchID, spanIDs,
	)
	if err != nil {
		return fmt.Errorf("attach spans: %w", err)
	}
	return nil
}

// detachSpans clears the batch reference and removes annotations for the given
// spans; an annotation is meaningless once its span leaves the batch it was
// reviewed in.
func detachSpans(ctx context.Context, tx *sql.Tx, spanIDs []string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM annotations WHERE root_span_id = ANY($1)`, spanIDs,
	); err != nil {
		return fmt.Errorf("detach annotations: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE root_spans SET batch_id = NULL WHERE id = ANY($1)`, spanIDs,
	); err != nil {
		return fmt.Errorf("detach spans: %w", err)
	}
	return nil
}
