package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/collapsinghierarchy/rfidgate/model"
	"github.com/collapsinghierarchy/rfidgate/store"
)

type pgStore struct{ db *pgxpool.Pool }

// Store is the pgx-backed allow-list. It keeps the append-only, first-match
// semantics of the file store: there is deliberately no UNIQUE constraint.
type Store interface {
	store.Store
	Migrate(ctx context.Context) error
}

func NewStore(db *pgxpool.Pool) Store { return &pgStore{db: db} }

// Open connects a pool and verifies it with a ping.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrMountFailed, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", store.ErrMountFailed, err)
	}
	return pool, nil
}

func (p *pgStore) Migrate(ctx context.Context) error {
	_, err := p.db.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS uid_records (
            seq  BIGSERIAL PRIMARY KEY,
            uid  TEXT NOT NULL,
            name TEXT NOT NULL,
            role TEXT NOT NULL
        );
        CREATE INDEX IF NOT EXISTS uid_records_uid_seq ON uid_records (uid, seq)`)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrMountFailed, err)
	}
	return nil
}

// -------- records ----------------------------------------------------------

func (p *pgStore) Insert(ctx context.Context, rec model.UidRecord) error {
	rec = rec.Normalized()
	_, err := p.db.Exec(ctx,
		`INSERT INTO uid_records (uid, name, role) VALUES ($1,$2,$3)`,
		rec.UID, rec.Name, string(rec.Role))
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrWriteFailed, err)
	}
	return nil
}

func (p *pgStore) Lookup(ctx context.Context, uid string) (model.UidRecord, bool, error) {
	var (
		rec  model.UidRecord
		role string
	)
	err := p.db.QueryRow(ctx,
		`SELECT uid, name, role
         FROM uid_records
         WHERE uid=$1
         ORDER BY seq ASC
         LIMIT 1`, model.NormalizeUID(uid)).
		Scan(&rec.UID, &rec.Name, &role)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.UidRecord{}, false, nil
	}
	if err != nil {
		return model.UidRecord{}, false, fmt.Errorf("%w: %v", store.ErrReadFailed, err)
	}
	rec.Role = model.Role(role)
	return rec, true, nil
}

func (p *pgStore) Stream(ctx context.Context, fn func(*model.UidRecord) error) error {
	rows, err := p.db.Query(ctx,
		`SELECT uid, name, role
         FROM uid_records
         ORDER BY seq ASC`)
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
