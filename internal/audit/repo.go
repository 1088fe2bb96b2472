package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository implements Repository using PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE auth_events (
//	    id         BIGSERIAL PRIMARY KEY,
//	    kind       TEXT NOT NULL,
//	    email      TEXT NOT NULL DEFAULT '',
//	    detail     TEXT NOT NULL DEFAULT '',
//	    ip         TEXT,
//	    ua         TEXT,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const insertEvent = `
INSERT INTO auth_events (kind, email, detail, ip, ua, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`

// Insert persists one audit event.
func (r *PGRepository) Insert(ctx context.Context, e Event) error {
	_, err := r.pool.Exec(ctx, insertEvent,
		e.Kind,
		e.Email,
		e.Detail,
		pgtype.Text{String: e.IP, Valid: e.IP != ""},
		pgtype.Text{String: e.UA, Valid: e.UA != ""},
		pgtype.Timestamptz{Time: e.At, Valid: true},
	)
	return err
}

var _ Repository = (*PGRepository)(nil)
