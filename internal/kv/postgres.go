package kv

import (
	"context"
	"errors"

	"github.com/example/post-scheduler/internal/db"
	"github.com/example/post-scheduler/internal/internaltypes"
)

// Postgres keeps entries in the kv_entries table created by migrate.Up.
type Postgres struct {
	db *db.DB
}

func NewPostgres(d *db.DB) *Postgres { return &Postgres{db: d} }

func (p *Postgres) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var v []byte
	err := db.WrapNotFound(p.db.QueryRow(ctx, `SELECT value FROM kv_entries WHERE namespace=$1 AND entry_key=$2`, namespace, key).Scan(&v))
	if errors.Is(err, internaltypes.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, unavailable("get", namespace, key, err)
	}
	return v, nil
}

func (p *Postgres) Put(ctx context.Context, namespace, key string, value []byte) error {
	err := p.db.Exec(ctx, `
INSERT INTO kv_entries(namespace, entry_key, value, updated_at)
VALUES ($1,$2,$3,now())
ON CONFLICT (namespace, entry_key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`,
		namespace, key, value)
	if err != nil {
		return unavailable("put", namespace, key, err)
	}
	return nil
}
