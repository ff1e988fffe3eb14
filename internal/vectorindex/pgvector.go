package vectorindex

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PGVector keeps face vectors in a Postgres table using the pgvector
// extension. It may share the relational pool but never joins its
// transactions: the index is a separate store as far as callers are concerned.
type PGVector struct {
	pool  *pgxpool.Pool
	table string
	dim   int
}

func NewPGVector(pool *pgxpool.Pool, table string, dim int) *PGVector {
	return &PGVector{
		pool:  pool,
		table: pgx.Identifier{table}.Sanitize(),
		dim:   dim,
	}
}

// EnsureSchema creates the extension, table and HNSW cosine index.
func (s *PGVector) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id         UUID PRIMARY KEY,
			embedding  vector(%d) NOT NULL,
			face_id    UUID NOT NULL,
			person_id  UUID NOT NULL,
			message_id UUID,
			group_id   UUID,
			ts         TIMESTAMPTZ NOT NULL
		)`, s.table, s.dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			pgx.Identifier{"idx_" + unquote(s.table) + "_embedding"}.Sanitize(), s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure vector schema: %w", err)
		}
	}
	return nil
}

func (s *PGVector) Upsert(ctx context.Context, p Point) (uuid.UUID, error) {
	if len(p.Vector) != s.dim {
		return uuid.Nil, fmt.Errorf("upsert point: vector has %d dims, want %d", len(p.Vector), s.dim)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, embedding, face_id, person_id, message_id, group_id, ts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding, face_id = EXCLUDED.face_id,
			person_id = EXCLUDED.person_id, message_id = EXCLUDED.message_id,
			group_id = EXCLUDED.group_id, ts = EXCLUDED.ts`, s.table),
		p.ID, pgvector.NewVector(p.Vector), p.Payload.FaceID, p.Payload.PersonID,
		p.Payload.MessageID, p.Payload.GroupID, p.Payload.Timestamp)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert point: %w", err)
	}
	return p.ID, nil
}

func (s *PGVector) Query(ctx context.Context, vector []float32, k int, minScore float64) ([]Hit, error) {
	if k <= 0 {
		k = 1
	}
	vec := pgvector.NewVector(vector)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT id, 1 - (embedding <=> $1) AS score, face_id, person_id, message_id, group_id, ts
		 FROM %s
		 WHERE 1 - (embedding <=> $1) >= $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`, s.table), vec, minScore, k)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.PointID, &h.Score, &h.Payload.FaceID, &h.Payload.PersonID,
			&h.Payload.MessageID, &h.Payload.GroupID, &h.Payload.Timestamp); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *PGVector) SetPersonID(ctx context.Context, pointIDs []uuid.UUID, personID uuid.UUID) error {
	if len(pointIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET person_id = $1 WHERE id = ANY($2)`, s.table), personID, pointIDs)
	if err != nil {
		return fmt.Errorf("set point person: %w", err)
	}
	return nil
}

func (s *PGVector) Delete(ctx context.Context, pointIDs []uuid.UUID) error {
	if len(pointIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, s.table), pointIDs)
	if err != nil {
		return fmt.Errorf("delete points: %w", err)
	}
	return nil
}

func (s *PGVector) Scan(ctx context.Context, after uuid.UUID, limit int) ([]Point, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT id, face_id, person_id, message_id, group_id, ts
		 FROM %s WHERE id > $1 ORDER BY id LIMIT $2`, s.table), after, limit)
	if err != nil {
		return nil, fmt.Errorf("scan points: %w", err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var p Point
		var ts time.Time
		if err := rows.Scan(&p.ID, &p.Payload.FaceID, &p.Payload.PersonID,
			&p.Payload.MessageID, &p.Payload.GroupID, &ts); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		p.Payload.Timestamp = ts
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *PGVector) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func unquote(ident string) string {
	if len(ident) >= 2 && ident[0] == '"' && ident[len(ident)-1] == '"' {
		return ident[1 : len(ident)-1]
	}
	return ident
}
