// Package sqlite implements storage.Store on top of an embedded, single-
// writer SQLite database for the standalone deployment shape. It uses
// modernc.org/sqlite, a pure-Go driver, so the standalone binary needs no
// cgo toolchain.
package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/eventbus"
	"midnight-indexer/internal/storage"
	"midnight-indexer/pkg/utils"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// Store is a single-writer embedded storage.Store. Concurrency on the write
// path is eliminated by mu: correctness rests on one ordered stream of
// commits.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	bus *eventbus.Bus
}

// Open creates or opens the SQLite database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, utils.Wrap(err, fmt.Sprintf("open sqlite %s", path))
	}
	db.SetMaxOpenConns(1) // single-writer; also avoids concurrent-reader/writer lock contention
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, utils.Wrap(err, "enable foreign keys")
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, utils.Wrap(err, "migrate")
	}
	return &Store{db: db, bus: eventbus.New()}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Bus() *eventbus.Bus { return s.bus }

var _ storage.Store = (*Store)(nil)

func constraintErr(format string, args ...any) error {
	return domain.NewError(domain.KindConstraintViolated, format, args...)
}
