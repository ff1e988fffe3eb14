package storage

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Limmita2/FaseWatch/internal/models"
)

var messageColumns = []string{"id", "group_id", "telegram_message_id", "sender_telegram_id", "sender_name",
	"text", "has_photo", "photo_path", "timestamp", "imported_from_backup", "created_at"}

func scanMessage(row pgx.Row) (*models.Message, error) {
	m := &models.Message{}
	err := row.Scan(&m.ID, &m.GroupID, &m.TelegramMessageID, &m.SenderTelegramID, &m.SenderName,
		&m.Text, &m.HasPhoto, &m.PhotoPath, &m.Timestamp, &m.ImportedFromBackup, &m.CreatedAt)
	return m, err
}

func (s queries) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	query, args, err := psql.Select(messageColumns...).From("messages").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get message: %w", err)
	}
	m, err := scanMessage(s.q.QueryRow(ctx, query, args...))
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (s queries) CreateMessage(ctx context.Context, m *models.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	query, args, err := psql.Insert("messages").
		Columns("id", "group_id", "telegram_message_id", "sender_telegram_id", "sender_name",
			"text", "has_photo", "photo_path", "timestamp", "imported_from_backup").
		Values(m.ID, m.GroupID, m.TelegramMessageID, m.SenderTelegramID, m.SenderName,
			m.Text, m.HasPhoto, m.PhotoPath, m.Timestamp, m.ImportedFromBackup).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create message: %w", err)
	}
	if err := s.q.QueryRow(ctx, query, args...).Scan(&m.CreatedAt); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// SetMessagePhoto records the blob key of a message's photo.
func (s queries) SetMessagePhoto(ctx context.Context, id uuid.UUID, photoPath string) error {
	_, err := s.q.Exec(ctx, `UPDATE messages SET photo_path = $1, has_photo = TRUE WHERE id = $2`, photoPath, id)
	if err != nil {
		return fmt.Errorf("set message photo: %w", err)
	}
	return nil
}

// MessageContext returns up to radius messages before and after the given one
// in the same group, ordered by timestamp then created_at, the message itself
// included.
func (s queries) MessageContext(ctx context.Context, m *models.Message, radius int) ([]models.Message, error) {
	cols := strings.Join(messageColumns, ", ")
	rows, err := s.q.Query(ctx, `
		WITH ranked AS (
			SELECT `+cols+`, ROW_NUMBER() OVER (ORDER BY timestamp NULLS FIRST, created_at) AS rn
			FROM messages WHERE group_id = $1
		), anchor AS (
			SELECT rn FROM ranked WHERE id = $2
		)
		SELECT `+cols+` FROM ranked, anchor
		WHERE ranked.rn BETWEEN anchor.rn - $3 AND anchor.rn + $3
		ORDER BY ranked.rn`, m.GroupID, m.ID, radius)
	if err != nil {
		return nil, fmt.Errorf("message context: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, *msg)
	}
	return msgs, rows.Err()
}

func (s queries) GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	g := &models.Group{}
	err := s.q.QueryRow(ctx,
		`SELECT id, telegram_id, name, bot_active, created_at FROM groups WHERE id = $1`, id,
	).Scan(&g.ID, &g.TelegramID, &g.Name, &g.BotActive, &g.CreatedAt)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

// EnsureGroup returns the manual-input group with the given name, creating
// it when absent. Concurrent callers get the same row.
func (s queries) EnsureGroup(ctx context.Context, name string) (*models.Group, error) {
	g := &models.Group{}
	err := s.q.QueryRow(ctx,
		`INSERT INTO groups (id, name, bot_active) VALUES ($1, $2, FALSE)
		 ON CONFLICT (name) WHERE telegram_id IS NULL DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, telegram_id, name, bot_active, created_at`,
		uuid.New(), name,
	).Scan(&g.ID, &g.TelegramID, &g.Name, &g.BotActive, &g.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ensure group: %w", err)
	}
	return g, nil
}

// ListGroups returns every group, newest first, with the timestamp of its
// latest message.
func (s queries) ListGroups(ctx context.Context) ([]models.GroupSummary, error) {
	rows, err := s.q.Query(ctx, `
		SELECT g.id, g.telegram_id, g.name, g.bot_active, g.created_at,
		       (SELECT MAX(m.timestamp) FROM messages m WHERE m.group_id = g.id)
		FROM groups g
		ORDER BY g.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []models.GroupSummary
	for rows.Next() {
		var g models.GroupSummary
		if err := rows.Scan(&g.ID, &g.TelegramID, &g.Name, &g.BotActive, &g.CreatedAt, &g.LastMessageAt); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListMessages returns messages matching f joined with their group names,
// newest first.
func (s queries) ListMessages(ctx context.Context, f models.MessageFilter) ([]models.MessageRow, error) {
	cols := make([]string, 0, len(messageColumns)+1)
	for _, c := range messageColumns {
		cols = append(cols, "m."+c)
	}
	cols = append(cols, "g.name")

	b := psql.Select(cols...).From("messages m").LeftJoin("groups g ON g.id = m.group_id")
	if f.GroupID != nil {
		b = b.Where(sq.Eq{"m.group_id": *f.GroupID})
	}
	if f.OnlyWithPhoto {
		b = b.Where(sq.Eq{"m.has_photo": true})
	}
	if f.DateFrom != nil {
		b = b.Where(sq.GtOrEq{"m.timestamp": *f.DateFrom})
	}
	if f.DateTo != nil {
		b = b.Where(sq.LtOrEq{"m.timestamp": *f.DateTo})
	}
	if f.Text != "" {
		b = b.Where(sq.ILike{"m.text": "%" + likeEscaper.Replace(f.Text) + "%"})
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query, args, err := b.OrderBy("m.timestamp DESC NULLS LAST", "m.created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(max(f.Offset, 0))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list messages: %w", err)
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.MessageRow
	for rows.Next() {
		var r models.MessageRow
		m := &r.Message
		if err := rows.Scan(&m.ID, &m.GroupID, &m.TelegramMessageID, &m.SenderTelegramID, &m.SenderName,
			&m.Text, &m.HasPhoto, &m.PhotoPath, &m.Timestamp, &m.ImportedFromBackup, &m.CreatedAt,
			&r.GroupName); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, r)
	}
	return msgs, rows.Err()
}

func (s queries) ListGroupPhotoPaths(ctx context.Context, groupID uuid.UUID) ([]string, error) {
	rows, err := s.q.Query(ctx,
		`SELECT photo_path FROM messages WHERE group_id = $1 AND photo_path IS NOT NULL`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group photos: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan photo path: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s queries) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (s queries) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM messages WHERE group_id = $1`, id); err != nil {
		return fmt.Errorf("delete group messages: %w", err)
	}
	if _, err := s.q.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}
