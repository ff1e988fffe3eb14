package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Limmita2/FaseWatch/internal/models"
)

const queueColumns = `id, face_id, suggested_person_id, similarity, status, reviewed_by, reviewed_at, created_at`

func scanQueueEntry(row pgx.Row) (*models.QueueEntry, error) {
	e := &models.QueueEntry{}
	err := row.Scan(&e.ID, &e.FaceID, &e.SuggestedPersonID, &e.Similarity, &e.Status,
		&e.ReviewedBy, &e.ReviewedAt, &e.CreatedAt)
	return e, err
}

func (s queries) CreateQueueEntry(ctx context.Context, e *models.QueueEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = models.StatusPending
	}
	err := s.q.QueryRow(ctx,
		`INSERT INTO identification_queue (id, face_id, suggested_person_id, similarity, status)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		e.ID, e.FaceID, e.SuggestedPersonID, e.Similarity, e.Status,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("create queue entry: %w", err)
	}
	return nil
}

func (s queries) GetQueueEntryForUpdate(ctx context.Context, id uuid.UUID) (*models.QueueEntry, error) {
	e, err := scanQueueEntry(s.q.QueryRow(ctx,
		`SELECT `+queueColumns+` FROM identification_queue WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get queue entry: %w", err)
	}
	return e, nil
}

func (s queries) MarkReviewed(ctx context.Context, id uuid.UUID, status models.IdentificationStatus, reviewer string, at time.Time) error {
	_, err := s.q.Exec(ctx,
		`UPDATE identification_queue SET status = $1, reviewed_by = $2, reviewed_at = $3
		 WHERE id = $4 AND status = 'pending'`,
		status, reviewer, at, id)
	if err != nil {
		return fmt.Errorf("mark reviewed: %w", err)
	}
	return nil
}

func (s queries) ListPending(ctx context.Context, limit, offset int) ([]models.QueueEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query, args, err := psql.Select(queueColumns).
		From("identification_queue").
		Where("status = ?", models.StatusPending).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(max(offset, 0))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list pending: %w", err)
	}
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s queries) CountPendingSuggestions(ctx context.Context, personID uuid.UUID) (int, error) {
	var n int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM identification_queue WHERE suggested_person_id = $1 AND status = 'pending'`,
		personID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending suggestions: %w", err)
	}
	return n, nil
}

func (s queries) RetargetPendingSuggestions(ctx context.Context, from, to uuid.UUID) error {
	_, err := s.q.Exec(ctx,
		`UPDATE identification_queue SET suggested_person_id = $1
		 WHERE suggested_person_id = $2 AND status = 'pending'`, to, from)
	if err != nil {
		return fmt.Errorf("retarget suggestions: %w", err)
	}
	return nil
}

func (s queries) DeleteSettledSuggestions(ctx context.Context, personID uuid.UUID) error {
	_, err := s.q.Exec(ctx,
		`DELETE FROM identification_queue q USING faces f
		 WHERE q.face_id = f.id AND q.status = 'pending'
		   AND q.suggested_person_id = $1 AND f.person_id = $1`, personID)
	if err != nil {
		return fmt.Errorf("delete settled suggestions: %w", err)
	}
	return nil
}

func (s queries) DeleteQueueEntriesForFaces(ctx context.Context, faceIDs []uuid.UUID) error {
	if len(faceIDs) == 0 {
		return nil
	}
	if _, err := s.q.Exec(ctx, `DELETE FROM identification_queue WHERE face_id = ANY($1)`, faceIDs); err != nil {
		return fmt.Errorf("delete queue entries: %w", err)
	}
	return nil
}

func (s queries) DeleteSuggestionsOf(ctx context.Context, personID uuid.UUID) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM identification_queue WHERE suggested_person_id = $1`, personID); err != nil {
		return fmt.Errorf("delete suggestions: %w", err)
	}
	return nil
}
