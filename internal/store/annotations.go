package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UpsertAnnotation records a reviewer's rating and note for a span, replacing
// any previous annotation for the same span.
func (s *Store) UpsertAnnotation(ctx context.Context, rootSpanID, note, rating string) (*Annotation, error) {
	if rating != RatingGood && rating != RatingBad {
		return nil, &ValidationError{Field: "rating", Reason: fmt.Sprintf("unknown rating %q", rating)}
	}
	a := &Annotation{
		RootSpanID: rootSpanID,
		Note:       note,
		Rating:     rating,
	}
	// RETURNING yields the surviving row's id, not the candidate one, when the
	// span was already annotated.
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO annotations (id, root_span_id, note, rating, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (root_span_id)
		DO UPDATE SET note = EXCLUDED.note, rating = EXCLUDED.rating
		RETURNING id
	`, uuid.NewString(), a.RootSpanID, a.Note, a.Rating, time.Now().UTC()).Scan(&a.ID)
	if err != nil {
		return nil, fmt.Errorf("upsert annotation: %w", err)
	}
	return a, nil
}

// BadAnnotations returns the bad-rated annotations for a batch's spans.
func (s *Store) BadAnnotations(ctx context.Context, batchID string) ([]BadAnnotation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.root_span_id, a.note
		FROM annotations a
		JOIN root_spans sp ON sp.id = a.root_span_id
		WHERE sp.batch_id = $1 AND a.rating = $2
		ORDER BY a.created_at ASC
	`, batchID, RatingBad)
	if err != nil {
		return nil, fmt.Errorf("bad annotations: %w", err)
	}
	defer rows.Close()

	var anns []BadAnnotation
	for rows.Next() {
		var a BadAnnotation
		if err = rows.Scan(&a.AnnotationID, &a.RootSpanID, &a.Note); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		anns = append(anns, a)
	}
	return anns, rows.Err()
}

// ClearAnnotationCategories deletes every category currently joined to the
// given annotations. Deletion is by category id, so a category shared with
// annotations outside this set is removed everywhere it appears; join rows go
// with it via cascade.
func (s *Store) ClearAnnotationCategories(ctx context.Context, annotationIDs []string) error {
	if len(annotationIDs) == 0 {
		return nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT category_id FROM annotation_categories WHERE annotation_id = ANY($1)`,
		annotationIDs,
	)
	if err != nil {
		return fmt.Errorf("collect category ids: %w", err)
	}
	defer rows.Close()

	var categoryIDs []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return err
		}
		categoryIDs = append(categoryIDs, id)
	}
	if err = rows.Err(); err != nil {
		return err
	}
	if len(categoryIDs) == 0 {
		return nil
	}

	if _, err = s.db.ExecContext(ctx,
		`DELETE FROM categories WHERE id = ANY($1)`, categoryIDs,
	); err != nil {
		return fmt.Errorf("clear categories: %w", err)
	}
	return nil
}

// InsertCategories persists one Category row per label in a single multi-row
// insert and returns the label → id mapping.
func (s *Store) InsertCategories(ctx context.Context, labels []string) (map[string]string, error) {
	if len(labels) == 0 {
		return map[string]string{}, nil
	}

	// Repeated labels get one row; inserting each repeat would orphan all but
	// the last, since the map can hold only one id per label.
	ids := make(map[string]string, len(labels))
	values := make([]string, 0, len(labels))
	args := make([]any, 0, len(labels)*2)
	for _, label := range labels {
		if _, seen := ids[label]; seen {
			continue
		}
		id := uuid.NewString()
		ids[label] = id
		values = append(values, fmt.Sprintf("($%d, $%d)", len(args)+1, len(args)+2))
		args = append(args, id, label)
	}

	query := `INSERT INTO categories (id, text) VALUES ` + strings.Join(values, ", ")
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert categories: %w", err)
	}
	return ids, nil
}

// AssignCategories bulk-inserts annotation→category join rows in one statement.
func (s *Store) AssignCategories(ctx context.Context, assignments []CategoryAssignment) error {
	if len(assignments) == 0 {
		return nil
	}

	values := make([]string, len(assignments))
	args := make([]any, 0, len(assignments)*3)
	for i, a := range assignments {
		values[i] = fmt.Sprintf("($%d, $%d, $%d)", i*3+1, i*3+2, i*3+3)
		args = append(args, uuid.NewString(), a.AnnotationID, a.CategoryID)
	}

	query := `INSERT INTO annotation_categories (id, annotation_id, category_id) VALUES ` + strings.Join(values, ", ")
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("assign categories: %w", err)
	}
	return nil
}

// DeleteOrphanCategories removes categories that no annotation references.
// A categorization run that fails between label creation and assignment leaves
// such rows behind; the sweeper reclaims them.
func (s *Store) DeleteOrphanCategories(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM categories c
		WHERE NOT EXISTS (
			SELECT 1 FROM annotation_categories ac WHERE ac.category_id = c.id
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("sweep orphan categories: %w", err)
	}
	return res.RowsAffected()
}
