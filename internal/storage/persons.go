package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/Limmita2/FaseWatch/internal/models"
)

const personColumns = `id, display_name, confirmed, created_at`

func (s queries) CreatePerson(ctx context.Context, p *models.Person) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := s.q.QueryRow(ctx,
		`INSERT INTO persons (id, display_name, confirmed) VALUES ($1, $2, $3) RETURNING created_at`,
		p.ID, p.DisplayName, p.Confirmed,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

func (s queries) GetPerson(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	return s.getPerson(ctx, `SELECT `+personColumns+` FROM persons WHERE id = $1`, id)
}

func (s queries) GetPersonForUpdate(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	return s.getPerson(ctx, `SELECT `+personColumns+` FROM persons WHERE id = $1 FOR UPDATE`, id)
}

func (s queries) getPerson(ctx context.Context, query string, id uuid.UUID) (*models.Person, error) {
	p := &models.Person{}
	err := s.q.QueryRow(ctx, query, id).Scan(&p.ID, &p.DisplayName, &p.Confirmed, &p.CreatedAt)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

func (s queries) UpdatePerson(ctx context.Context, id uuid.UUID, displayName *string, confirmed *bool) (*models.Person, error) {
	b := psql.Update("persons").Where(sq.Eq{"id": id}).Suffix("RETURNING " + personColumns)
	switch {
	case displayName == nil && confirmed == nil:
		return s.GetPerson(ctx, id)
	case displayName != nil:
		b = b.Set("display_name", *displayName)
		if confirmed != nil {
			b = b.Set("confirmed", *confirmed)
		}
	default:
		b = b.Set("confirmed", *confirmed)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update person: %w", err)
	}
	p := &models.Person{}
	err = s.q.QueryRow(ctx, query, args...).Scan(&p.ID, &p.DisplayName, &p.Confirmed, &p.CreatedAt)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("update person: %w", err)
	}
	return p, nil
}

func (s queries) DeletePerson(ctx context.Context, id uuid.UUID) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM persons WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	return nil
}

// ListPersons returns persons with their face counts, newest first.
func (s queries) ListPersons(ctx context.Context, f models.PersonFilter) ([]models.PersonSummary, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	b := psql.Select("p.id", "p.display_name", "p.confirmed", "p.created_at", "COUNT(f.id) AS face_count").
		From("persons p").
		LeftJoin("faces f ON f.person_id = p.id").
		GroupBy("p.id").
		OrderBy("p.created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(max(f.Offset, 0)))
	if f.Confirmed != nil {
		b = b.Where(sq.Eq{"p.confirmed": *f.Confirmed})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list persons: %w", err)
	}
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	var persons []models.PersonSummary
	for rows.Next() {
		var p models.PersonSummary
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.Confirmed, &p.CreatedAt, &p.FaceCount); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}
	return persons, rows.Err()
}
