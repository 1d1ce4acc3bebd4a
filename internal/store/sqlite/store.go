package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MrSnakeDoc/gallery/internal/store"
)

// Store keeps blobs in a single SQLite table.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS blobs (
		name TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		content_type TEXT NOT NULL,
		revision TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	`)
	return err
}

func (s *Store) Get(ctx context.Context, name string) (*store.Object, error) {
	obj := &store.Object{Name: name}
	err := s.db.QueryRowContext(ctx,
		`SELECT data, content_type, revision FROM blobs WHERE name = ?`, name,
	).Scan(&obj.Data, &obj.ContentType, &obj.Revision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get blob: %w", err)
	}
	if obj.Data == nil {
		obj.Data = []byte{}
	}
	return obj, nil
}

func (s *Store) Put(ctx context.Context, name string, data []byte, contentType string) error {
	if err := store.ValidateName(name); err != nil {
		return fmt.Errorf("%w: %q", err, name)
	}
	contentType = defaultType(contentType)

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO blobs (name, data, content_type, revision, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		data = excluded.data,
		content_type = excluded.content_type,
		revision = excluded.revision,
		updated_at = excluded.updated_at
	`, name, nonNil(data), contentType, store.RevisionOf(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put blob: %w", err)
	}
	return nil
}

// CompareAndSwap relies on single conditional statements: an INSERT that
// does nothing when the name exists, or an UPDATE guarded by the revision.
func (s *Store) CompareAndSwap(ctx context.Context, name, expected string, data []byte, contentType string) error {
	if err := store.ValidateName(name); err != nil {
		return fmt.Errorf("%w: %q", err, name)
	}
	contentType = defaultType(contentType)
	rev := store.RevisionOf(data)
	now := time.Now().UTC()

	var (
		res sql.Result
		err error
	)
	if expected == "" {
		res, err = s.db.ExecContext(ctx, `
		INSERT INTO blobs (name, data, content_type, revision, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
		`, name, nonNil(data), contentType, rev, now)
	} else {
		res, err = s.db.ExecContext(ctx, `
		UPDATE blobs SET data = ?, content_type = ?, revision = ?, updated_at = ?
		WHERE name = ? AND revision = ?
		`, nonNil(data), contentType, rev, now, name, expected)
	}
	if err != nil {
		return fmt.Errorf("swap blob: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("swap blob: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", store.ErrConflict, name)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM blobs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := make([]string, 0, 16)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan blob name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func defaultType(contentType string) string {
	if contentType == "" {
		return store.ContentTypeDefault
	}
	return contentType
}

// nonNil keeps empty blobs from being stored as NULL.
func nonNil(data []byte) []byte {
	if data == nil {
		return []byte{}
	}
	return data
}
