package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/collapsinghierarchy/rfidgate/model"
	"github.com/collapsinghierarchy/rfidgate/store"
)

// Store keeps the allow-list in a single SQLite table ordered by rowid.
type Store struct{ db *sql.DB }

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrMountFailed, err)
	}
	// One writer process, one connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS uid_records (
            seq  INTEGER PRIMARY KEY AUTOINCREMENT,
            uid  TEXT NOT NULL,
            name TEXT NOT NULL,
            role TEXT NOT NULL
        );
        CREATE INDEX IF NOT EXISTS uid_records_uid_seq ON uid_records (uid, seq);`)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrMountFailed, err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, rec model.UidRecord) error {
	rec = rec.Normalized()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO uid_records (uid, name, role) VALUES (?, ?, ?)`,
		rec.UID, rec.Name, string(rec.Role))
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrWriteFailed, err)
	}
	return nil
}

func (s *Store) Lookup(ctx context.Context, uid string) (model.UidRecord, bool, error) {
	var (
		rec  model.UidRecord
		role string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT uid, name, role FROM uid_records WHERE uid = ? ORDER BY seq ASC LIMIT 1`,
		model.NormalizeUID(uid)).Scan(&rec.UID, &rec.Name, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UidRecord{}, false, nil
	}
	if err != nil {
		return model.UidRecord{}, false, fmt.Errorf("%w: %v", store.ErrReadFailed, err)
	}
	rec.Role = model.Role(role)
	return rec, true, nil
}

func (s *Store) Stream(ctx context.Context, fn func(*model.UidRecord) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT uid, name, role FROM uid_records ORDER BY seq ASC`)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrReadFailed, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r    model.UidRecord
			role string
		)
		if err := rows.Scan(&r.UID, &r.Name, &role); err != nil {
			return fmt.Errorf("%w: %v", store.ErrReadFailed, err)
		}
		r.Role = model.Role(role)
		if err := fn(&r); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrReadFailed, err)
	}
	return nil
}
