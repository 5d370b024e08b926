package store

import (
	"database/sql"
	"time"

	"github.com/adwatch/adwatch/db"
	"github.com/adwatch/adwatch/errors"
)

const subscribedExistsExpr = `EXISTS(
	SELECT 1 FROM client_subs cs
	JOIN clients c ON c.client_id = cs.client_id
	WHERE cs.ad_query_id = q.ad_query_id AND c.session_hash = ?
)`

// AdQueries lists saved searches with the subscription flag of the client
// matching sessionID. If no client matches, every row reports
// subscribed=false. When adQueryID is non-nil, only that query is
// returned.
func (s *Store) AdQueries(sessionID string, adQueryID *int64) ([]AdQueryResult, error) {
	hash := HashSessionID(sessionID)

	var results []AdQueryResult
	err := s.withTx(func(tx *sql.Tx) error {
		query := `
			SELECT q.ad_query_id, q.nickname, q.query, q.filters, ` + subscribedExistsExpr + `
			FROM ad_queries q
		`
		args := []interface{}{hash}
		if adQueryID != nil {
			query += ` WHERE q.ad_query_id = ?`
			args = append(args, *adQueryID)
		}
		query += ` ORDER BY q.ad_query_id`

		rows, err := tx.Query(query, args...)
		if err != nil {
			return errors.Wrap(err, "list ad queries")
		}
		defer rows.Close()

		results = nil
		for rows.Next() {
			var r AdQueryResult
			var filtersJSON string
			if err := rows.Scan(&r.AdQueryID, &r.Nickname, &r.Query, &filtersJSON, &r.Subscribed); err != nil {
				return errors.Wrap(err, "scan ad query")
			}
			if r.Filters, err = unmarshalFilters(filtersJSON); err != nil {
				return err
			}
			results = append(results, r)
		}
		return errors.Wrap(rows.Err(), "iterate ad queries")
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// InsertAdQuery creates a saved search with next_pull set to now so the
// scheduler picks it up immediately. When subSessionID is non-empty the
// matching client is subscribed in the same transaction; if no client
// matches, nothing is written and ErrUnknownSession is returned.
//
// The row is allocated before the nickname uniqueness check fires, so a
// duplicate surfaces as ErrDataArgument from the constraint and may burn
// a sequence value. Acceptable for a mostly-append workload.
func (s *Store) InsertAdQuery(q AdQueryBase, subSessionID string) (int64, error) {
	filtersJSON, err := marshalFilters(q.Filters)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.withTx(func(tx *sql.Tx) error {
		var clientID int64
		if subSessionID != "" {
			err := tx.QueryRow(
				"SELECT client_id FROM clients WHERE session_hash = ?",
				HashSessionID(subSessionID),
			).Scan(&clientID)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUnknownSession
			}
			if err != nil {
				return errors.Wrap(err, "resolve subscribing client")
			}
		}

		res, err := tx.Exec(
			"INSERT INTO ad_queries (nickname, query, filters, next_pull) VALUES (?, ?, ?, ?)",
			q.Nickname, q.Query, filtersJSON, s.unix(),
		)
		if db.IsUniqueViolation(err) {
			return errors.Wrap(ErrDataArgument, "name is already in use")
		}
		if err != nil {
			return errors.Wrap(err, "insert ad query")
		}
		if id, err = res.LastInsertId(); err != nil {
			return errors.Wrap(err, "ad query id")
		}

		if subSessionID != "" {
			if _, err := tx.Exec(
				"INSERT INTO client_subs (ad_query_id, client_id) VALUES (?, ?)",
				id, clientID,
			); err != nil {
				return errors.Wrap(err, "insert subscription")
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateResult reports which halves of an update took effect.
type UpdateResult struct {
	UpdatedData bool `json:"updated_data"`
	UpdatedSub  bool `json:"updated_sub"`
}

// UpdateAdQuery rewrites nickname/query/filters atomically, resets the
// pull schedule (next_pull=now, last_notify cleared) and then brings the
// caller's subscription edge in line with q.Subscribed. A nickname
// collision rolls the whole transaction back with ErrDataArgument.
func (s *Store) UpdateAdQuery(q AdQueryResult, sessionID string) (UpdateResult, error) {
	filtersJSON, err := marshalFilters(q.Filters)
	if err != nil {
		return UpdateResult{}, err
	}

	var result UpdateResult
	err = s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			"UPDATE ad_queries SET nickname = ?, query = ?, filters = ?, next_pull = ?, last_notify = NULL WHERE ad_query_id = ?",
			q.Nickname, q.Query, filtersJSON, s.unix(), q.AdQueryID,
		)
		if db.IsUniqueViolation(err) {
			return errors.Wrap(ErrDataArgument, "name is already in use")
		}
		if err != nil {
			return errors.Wrap(err, "update ad query")
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "update ad query rows")
		}
		result.UpdatedData = affected != 0

		result.UpdatedSub, err = s.toggleSubscription(tx, q.AdQueryID, sessionID, q.Subscribed)
		return err
	})
	if err != nil {
		return UpdateResult{}, err
	}
	return result, nil
}

// ToggleAdQuerySubscription upserts or removes the subscription edge.
// Returns false when either the session or the ad query is unknown.
func (s *Store) ToggleAdQuerySubscription(adQueryID int64, sessionID string, subscribed bool) (bool, error) {
	var ok bool
	err := s.withTx(func(tx *sql.Tx) error {
		var err error
		ok, err = s.toggleSubscription(tx, adQueryID, sessionID, subscribed)
		return err
	})
	return ok, err
}

func (s *Store) toggleSubscription(tx *sql.Tx, adQueryID int64, sessionID string, subscribed bool) (bool, error) {
	var clientID int64
	err := tx.QueryRow(
		"SELECT client_id FROM clients WHERE session_hash = ?",
		HashSessionID(sessionID),
	).Scan(&clientID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "resolve client")
	}

	var exists bool
	if err := tx.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM ad_queries WHERE ad_query_id = ?)", adQueryID,
	).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "check ad query")
	}
	if !exists {
		return false, nil
	}

	if subscribed {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO client_subs (ad_query_id, client_id) VALUES (?, ?)",
			adQueryID, clientID,
		); err != nil {
			return false, errors.Wrap(err, "insert subscription")
		}
	} else {
		if _, err := tx.Exec(
			"DELETE FROM client_subs WHERE ad_query_id = ? AND client_id = ?",
			adQueryID, clientID,
		); err != nil {
			return false, errors.Wrap(err, "delete subscription")
		}
	}
	return true, nil
}

// DeleteAdQuery removes a saved search. Foreign keys cascade through
// subscriptions, stored content, the text ledger and queued pushes.
// Returns true if a row was deleted.
func (s *Store) DeleteAdQuery(id int64) (bool, error) {
	var deleted bool
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec("DELETE FROM ad_queries WHERE ad_query_id = ?", id)
		if err != nil {
			return errors.Wrap(err, "delete ad query")
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "delete ad query rows")
		}
		deleted = affected != 0
		return nil
	})
	return deleted, err
}

// AdQueryNext leases the most overdue saved search: the query with the
// smallest next_pull still in the past, whose next_pull is bumped to
// now+refreshInterval inside the same transaction. A crash between lease
// and completion leaves the query eligible again after one interval.
// Returns nil when nothing is due.
func (s *Store) AdQueryNext(refreshInterval time.Duration) (*AdQuery, error) {
	var result *AdQuery
	err := s.withTx(func(tx *sql.Tx) error {
		now := s.unix()

		var q AdQuery
		var filtersJSON string
		err := tx.QueryRow(`
			SELECT ad_query_id, nickname, query, filters
			FROM ad_queries
			WHERE next_pull < ?
			ORDER BY next_pull
			LIMIT 1
		`, now).Scan(&q.AdQueryID, &q.Nickname, &q.Query, &filtersJSON)
		if errors.Is(err, sql.ErrNoRows) {
			result = nil
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "select due ad query")
		}
		if q.Filters, err = unmarshalFilters(filtersJSON); err != nil {
			return err
		}

		if _, err := tx.Exec(
			"UPDATE ad_queries SET next_pull = ? WHERE ad_query_id = ?",
			now+int64(refreshInterval/time.Second), q.AdQueryID,
		); err != nil {
			return errors.Wrap(err, "lease ad query")
		}

		result = &q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AdQueryFinishedPull records the outcome of one crawl pass. An empty
// pullErr clears last_error.
func (s *Store) AdQueryFinishedPull(adQueryID int64, pullErr string) error {
	return s.withTx(func(tx *sql.Tx) error {
		var lastError interface{}
		if pullErr != "" {
			lastError = pullErr
		}
		if _, err := tx.Exec(
			"UPDATE ad_queries SET last_pull = ?, last_error = ? WHERE ad_query_id = ?",
			s.unix(), lastError, adQueryID,
		); err != nil {
			return errors.Wrap(err, "record pull result")
		}
		return nil
	})
}

// AdQueryStatus returns the full record including scheduler metadata and
// the caller's subscription flag. Unknown ids return ErrNotFound.
func (s *Store) AdQueryStatus(sessionID string, adQueryID int64) (*AdQueryStatus, error) {
	hash := HashSessionID(sessionID)

	var status AdQueryStatus
	err := s.withTx(func(tx *sql.Tx) error {
		var filtersJSON string
		err := tx.QueryRow(`
			SELECT q.ad_query_id, q.nickname, q.query, q.filters,
			       q.next_pull, q.last_pull, q.last_error, q.last_notify,
			       `+subscribedExistsExpr+`
			FROM ad_queries q
			WHERE q.ad_query_id = ?
		`, hash, adQueryID).Scan(
			&status.AdQueryID, &status.Nickname, &status.Query, &filtersJSON,
			&status.NextPull, &status.LastPull, &status.LastError, &status.LastNotify,
			&status.Subscribed,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrap(ErrNotFound, "no such ad query")
		}
		if err != nil {
			return errors.Wrap(err, "select ad query status")
		}
		status.Filters, err = unmarshalFilters(filtersJSON)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}
