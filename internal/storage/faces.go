package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Limmita2/FaseWatch/internal/models"
)

var faceColumns = []string{"f.id", "f.person_id", "f.message_id", "f.bbox", "f.confidence", "f.crop_path", "f.qdrant_point_id", "f.created_at"}

func scanFace(row pgx.Row) (*models.Face, error) {
	f := &models.Face{}
	var bbox []float32
	if err := row.Scan(&f.ID, &f.PersonID, &f.MessageID, &bbox, &f.Confidence,
		&f.CropPath, &f.PointID, &f.CreatedAt); err != nil {
		return nil, err
	}
	copy(f.BBox[:], bbox)
	return f, nil
}

func (s queries) InsertFace(ctx context.Context, f *models.Face) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	err := s.q.QueryRow(ctx,
		`INSERT INTO faces (id, person_id, message_id, bbox, confidence, crop_path, qdrant_point_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		f.ID, f.PersonID, f.MessageID, f.BBox[:], f.Confidence, f.CropPath, f.PointID,
	).Scan(&f.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert face: %w", err)
	}
	return nil
}

func (s queries) SetFaceVector(ctx context.Context, faceID, pointID uuid.UUID, cropPath *string) error {
	_, err := s.q.Exec(ctx,
		`UPDATE faces SET qdrant_point_id = $1, crop_path = $2 WHERE id = $3`,
		pointID, cropPath, faceID)
	if err != nil {
		return fmt.Errorf("set face vector: %w", err)
	}
	return nil
}

func (s queries) SetFacePerson(ctx context.Context, faceID, personID uuid.UUID) error {
	_, err := s.q.Exec(ctx, `UPDATE faces SET person_id = $1 WHERE id = $2`, personID, faceID)
	if err != nil {
		return fmt.Errorf("set face person: %w", err)
	}
	return nil
}

func (s queries) GetFace(ctx context.Context, id uuid.UUID) (*models.Face, error) {
	query, args, err := psql.Select(faceColumns...).From("faces f").Where(sq.Eq{"f.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get face: %w", err)
	}
	f, err := scanFace(s.q.QueryRow(ctx, query, args...))
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get face: %w", err)
	}
	return f, nil
}

func (s queries) ListFacesByPerson(ctx context.Context, personID uuid.UUID) ([]models.Face, error) {
	return s.listFaces(ctx, psql.Select(faceColumns...).From("faces f").
		Where(sq.Eq{"f.person_id": personID}).
		OrderBy("f.created_at DESC"))
}

func (s queries) ListFacesByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Face, error) {
	return s.listFaces(ctx, psql.Select(faceColumns...).From("faces f").
		Join("messages m ON m.id = f.message_id").
		Where(sq.Eq{"m.group_id": groupID}))
}

func (s queries) ListFacesByMessage(ctx context.Context, messageID uuid.UUID) ([]models.Face, error) {
	return s.listFaces(ctx, psql.Select(faceColumns...).From("faces f").
		Where(sq.Eq{"f.message_id": messageID}))
}

func (s queries) ListFacesAfter(ctx context.Context, after uuid.UUID, limit int) ([]models.Face, error) {
	return s.listFaces(ctx, psql.Select(faceColumns...).From("faces f").
		Where(sq.Gt{"f.id": after}).
		OrderBy("f.id").
		Limit(uint64(limit)))
}

func (s queries) listFaces(ctx context.Context, b sq.SelectBuilder) ([]models.Face, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list faces: %w", err)
	}
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list faces: %w", err)
	}
	defer rows.Close()

	var faces []models.Face
	for rows.Next() {
		f, err := scanFace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		faces = append(faces, *f)
	}
	return faces, rows.Err()
}

func (s queries) CountFaces(ctx context.Context, personID uuid.UUID) (int, error) {
	var count int
	err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM faces WHERE person_id = $1`, personID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count faces: %w", err)
	}
	return count, nil
}

func (s queries) ReassignFaces(ctx context.Context, from, to uuid.UUID) (int64, error) {
	tag, err := s.q.Exec(ctx, `UPDATE faces SET person_id = $1 WHERE person_id = $2`, to, from)
	if err != nil {
		return 0, fmt.Errorf("reassign faces: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s queries) DeleteFaces(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.q.Exec(ctx, `DELETE FROM faces WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("delete faces: %w", err)
	}
	return nil
}
