// Package store is the single mutable state of adwatch: ad queries,
// browser clients, subscriptions, stored ad content, the text
// de-duplication ledger and the push queue, all in one SQLite database.
//
// Every public operation is a single transaction executed under a
// process-wide serialization lock. If SQLite reports transient contention
// the whole transaction is rolled back and retried after a short sleep;
// all other errors propagate to the caller. Because every transaction runs
// under one lock, concurrent callers observe a total order consistent with
// lock acquisition order.
package store

import (
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adwatch/adwatch/db"
	"github.com/adwatch/adwatch/errors"
)

// lockRetryDelay is how long to sleep before retrying a transaction that
// failed with SQLite's "database is locked".
const lockRetryDelay = 10 * time.Millisecond

// Store wraps the SQLite connection with the serialization discipline all
// adwatch components rely on.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.SugaredLogger

	// now is the clock; replaced in tests to drive expiry windows
	now func() time.Time
}

// New creates a store on an open, migrated database connection.
func New(conn *sql.DB, logger *zap.SugaredLogger) *Store {
	return &Store{
		db:     conn,
		logger: logger,
		now:    time.Now,
	}
}

// unix returns the store clock as integer seconds since epoch.
func (s *Store) unix() int64 {
	return s.now().Unix()
}

// withTx runs fn in one serialized transaction. The transaction commits if
// fn returns nil and rolls back otherwise. Transient lock contention
// retries the whole transaction; the mutex is held across retries so the
// operation stays atomic with respect to other store calls.
//
// Nested calls are forbidden by contract: fn must not invoke another
// public store operation.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		err := s.runTx(fn)
		if err == nil {
			return nil
		}
		if db.IsLocked(err) {
			s.logger.Debugw("Transaction hit lock contention, retrying",
				"delay", lockRetryDelay)
			time.Sleep(lockRetryDelay)
			continue
		}
		return err
	}
}

func (s *Store) runTx(fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}
