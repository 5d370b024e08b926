package store

import (
	"database/sql"
	"time"

	"github.com/adwatch/adwatch/errors"
)

// CreateSession writes a new client row. The caller (the session issuer)
// has already generated the VAPID keypair and the opaque session id; the
// id itself is never stored, only its SHA-256.
func (s *Store) CreateSession(vapidPub, vapidPriv []byte, sessionID string) error {
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			"INSERT INTO clients (vapid_pub, vapid_priv, session_hash, last_seen) VALUES (?, ?, ?, ?)",
			vapidPub, vapidPriv, HashSessionID(sessionID), s.unix(),
		); err != nil {
			return errors.Wrap(err, "insert client")
		}
		return nil
	})
}

// SessionExists reports whether a client matches the session id.
func (s *Store) SessionExists(sessionID string) (bool, error) {
	var exists bool
	err := s.withTx(func(tx *sql.Tx) error {
		if err := tx.QueryRow(
			"SELECT EXISTS(SELECT 1 FROM clients WHERE session_hash = ?)",
			HashSessionID(sessionID),
		).Scan(&exists); err != nil {
			return errors.Wrap(err, "check session")
		}
		return nil
	})
	return exists, err
}

// CleanupSessions deletes clients idle for longer than expiration.
// Subscriptions and queued pushes cascade. Returns the number of clients
// removed.
func (s *Store) CleanupSessions(expiration time.Duration) (int64, error) {
	var removed int64
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			"DELETE FROM clients WHERE last_seen < ?",
			s.unix()-int64(expiration/time.Second),
		)
		if err != nil {
			return errors.Wrap(err, "cleanup sessions")
		}
		removed, err = res.RowsAffected()
		return errors.Wrap(err, "cleanup sessions rows")
	})
	return removed, err
}

// UpdateClientPushSub stores the client's push subscription blob (nil
// clears it and drops any queued pushes for the client) and touches
// last_seen. Reports found iff a client exists with that session hash.
func (s *Store) UpdateClientPushSub(sessionID string, pushSub *string) (bool, error) {
	hash := HashSessionID(sessionID)

	var found bool
	err := s.withTx(func(tx *sql.Tx) error {
		var clientID int64
		err := tx.QueryRow(
			"SELECT client_id FROM clients WHERE session_hash = ?", hash,
		).Scan(&clientID)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "resolve client")
		}
		found = true

		var sub interface{}
		if pushSub != nil {
			sub = *pushSub
		}
		if _, err := tx.Exec(
			"UPDATE clients SET push_sub = ?, last_seen = ? WHERE client_id = ?",
			sub, s.unix(), clientID,
		); err != nil {
			return errors.Wrap(err, "update push subscription")
		}

		if pushSub == nil {
			if _, err := tx.Exec(
				"DELETE FROM push_queue WHERE client_id = ?", clientID,
			); err != nil {
				return errors.Wrap(err, "drop queued pushes")
			}
		}
		return nil
	})
	return found, err
}
