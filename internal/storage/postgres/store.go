// Package postgres implements storage.Store on jackc/pgx/v5's pgxpool, the
// cloud deployment's backend. Writers are serialized without an explicit
// application mutex: append_block takes a row lock on the singleton
// chain_head row (SELECT ... FOR UPDATE) inside its transaction, so
// concurrent appenders queue on Postgres itself rather than in process
// memory.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/eventbus"
	"midnight-indexer/internal/storage"
	"midnight-indexer/pkg/utils"
)

type Store struct {
	pool *pgxpool.Pool
	bus  *eventbus.Bus
}

// Open connects to dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, utils.Wrap(err, "connect postgres")
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, utils.Wrap(err, "migrate")
	}
	return &Store{pool: pool, bus: eventbus.New()}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Bus() *eventbus.Bus { return s.bus }

var _ storage.Store = (*Store)(nil)

func constraintErr(format string, args ...any) error {
	return domain.NewError(domain.KindConstraintViolated, format, args...)
}
