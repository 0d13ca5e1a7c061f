package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/heimdex/mlt2fcpx/internal/db"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

const timeLayout = db.TimeLayout

type Repository interface {
	CreateConversion(ctx context.Context, c *Conversion) error
	GetConversion(ctx context.Context, id string) (*Conversion, error)
	ListConversions(ctx context.Context, limit int) ([]*Conversion, error)
	FinishConversion(ctx context.Context, c *Conversion) error
	CountConversions(ctx context.Context, status string) (int, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const conversionColumns = `id, input_path, output_path, format, status, error_code, error,
	clip_count, track_count, embedded_count, bytes, duration_ms, created_at, updated_at`

func (r *SQLiteRepository) CreateConversion(ctx context.Context, c *Conversion) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversions (`+conversionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.InputPath, c.OutputPath, c.Format, c.Status, nullString(c.ErrorCode), nullString(c.Error),
		c.ClipCount, c.TrackCount, c.EmbeddedCount, c.Bytes, c.DurationMs,
		c.CreatedAt.UTC().Format(timeLayout), c.UpdatedAt.UTC().Format(timeLayout))
	return err
}

func (r *SQLiteRepository) GetConversion(ctx context.Context, id string) (*Conversion, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+conversionColumns+` FROM conversions WHERE id = ?`, id)
	c, err := scanConversion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (r *SQLiteRepository) ListConversions(ctx context.Context, limit int) ([]*Conversion, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+conversionColumns+`
		FROM conversions ORDER BY created_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversions []*Conversion
	for rows.Next() {
		c, err := scanConversion(rows)
		if err != nil {
			return nil, err
		}
		conversions = append(conversions, c)
	}
	return conversions, rows.Err()
}

// FinishConversion stores the terminal state of c: status, error and the
// output statistics.
func (r *SQLiteRepository) FinishConversion(ctx context.Context, c *Conversion) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversions SET
			output_path = ?, status = ?, error_code = ?, error = ?,
			clip_count = ?, track_count = ?, embedded_count = ?, bytes = ?, duration_ms = ?,
			updated_at = ?
		WHERE id = ?
	`, c.OutputPath, c.Status, nullString(c.ErrorCode), nullString(c.Error),
		c.ClipCount, c.TrackCount, c.EmbeddedCount, c.Bytes, c.DurationMs,
		c.UpdatedAt.UTC().Format(timeLayout), c.ID)
	return err
}

// CountConversions counts conversions with the given status, or all of them
// when status is empty.
func (r *SQLiteRepository) CountConversions(ctx context.Context, status string) (int, error) {
	var count int
	var err error
	if status == "" {
		err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversions").Scan(&count)
	} else {
		err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversions WHERE status = ?", status).Scan(&count)
	}
	return count, err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversion(s scanner) (*Conversion, error) {
	var c Conversion
	var errorCode, errMsg sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&c.ID, &c.InputPath, &c.OutputPath, &c.Format, &c.Status, &errorCode, &errMsg,
		&c.ClipCount, &c.TrackCount, &c.EmbeddedCount, &c.Bytes, &c.DurationMs, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.ErrorCode = errorCode.String
	c.Error = errMsg.String
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

func parseTime(s string) time.Time {
	for _, layout := range []string{timeLayout, time.RFC3339, time.DateTime} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
