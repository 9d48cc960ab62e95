// Package history хранит журнал экспортов в SQLite.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/ivlev/svg2video/internal/export"
)

//go:embed schema.sql
var schema string

var ErrNotFound = errors.New("export record not found")

// Record - одна запись журнала.
type Record struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Source    string    `json:"source,omitempty"`
	Kind      string    `json:"kind"`
	Format    string    `json:"format"`
	Name      string    `json:"name"`
	Path      string    `json:"-"`
	MIME      string    `json:"mime"`
	Frames    int       `json:"frames"`
	Duration  float64   `json:"duration"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	FPS       int       `json:"fps"`
	Warnings  []string  `json:"warnings,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// FromArtifact заполняет запись по результату экспорта.
func FromArtifact(sessionID, source string, width, height, fps int, a *export.Artifact) Record {
	return Record{
		SessionID: sessionID,
		Source:    source,
		Kind:      string(a.Kind),
		Format:    a.Format,
		Name:      a.Name,
		Path:      a.Path,
		MIME:      a.MIME,
		Frames:    a.Frames,
		Duration:  a.Duration,
		Width:     width,
		Height:    height,
		FPS:       fps,
		Warnings:  a.Warnings,
	}
}

type Store struct {
	db *sql.DB
}

// Open открывает (и при необходимости создает) базу по пути.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Add сохраняет запись; пустой ID заполняется новым UUID.
func (s *Store) Add(ctx context.Context, r Record) (Record, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO exports (id, session_id, source, kind, format, name, path, mime,
                             frames, duration, width, height, fps, warnings, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		r.ID, r.SessionID, r.Source, r.Kind, r.Format, r.Name, r.Path, r.MIME,
		r.Frames, r.Duration, r.Width, r.Height, r.FPS,
		strings.Join(r.Warnings, "\n"), r.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return r, fmt.Errorf("insert export: %w", err)
	}
	return r, nil
}

const selectColumns = `SELECT id, session_id, source, kind, format, name, path, mime,
        frames, duration, width, height, fps, warnings, created_at FROM exports`

func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	r, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

// List возвращает последние limit записей, новые первыми. Пустой sessionID -
// записи всех сессий.
func (s *Store) List(ctx context.Context, sessionID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	query := selectColumns
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exports WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (Record, error) {
	var (
		r        Record
		warnings string
		created  string
	)
	err := row.Scan(&r.ID, &r.SessionID, &r.Source, &r.Kind, &r.Format, &r.Name, &r.Path, &r.MIME,
		&r.Frames, &r.Duration, &r.Width, &r.Height, &r.FPS, &warnings, &created)
	if err != nil {
		return r, err
	}
	if warnings != "" {
		r.Warnings = strings.Split(warnings, "\n")
	}
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		r.CreatedAt = t
	}
	return r, nil
}
