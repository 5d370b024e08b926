package store

import (
	"database/sql"
	"time"

	"github.com/adwatch/adwatch/errors"
)

// PushQueueNext leases the most overdue queue entry: the due item with
// the smallest retry_time, whose retry_time is bumped to now+retryTimeout
// and whose retries counter is incremented inside the same transaction.
// The returned Retries field is the pre-increment count of attempts
// already made, so a dispatcher seeing Retries >= max knows the budget is
// spent. Returns nil when nothing is due.
func (s *Store) PushQueueNext(retryTimeout time.Duration) (*PushQueueItem, error) {
	var result *PushQueueItem
	err := s.withTx(func(tx *sql.Tx) error {
		now := s.unix()

		var item PushQueueItem
		err := tx.QueryRow(`
			SELECT pq.id, pq.client_id, pq.message, pq.retries, c.push_sub, c.vapid_priv
			FROM push_queue pq
			JOIN clients c ON c.client_id = pq.client_id
			WHERE pq.retry_time <= ?
			ORDER BY pq.retry_time
			LIMIT 1
		`, now).Scan(
			&item.ID, &item.ClientID, &item.Message, &item.Retries,
			&item.PushInfo.PushSub, &item.PushInfo.VAPIDPriv,
		)
		if errors.Is(err, sql.ErrNoRows) {
			result = nil
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "select due push")
		}

		if _, err := tx.Exec(
			"UPDATE push_queue SET retry_time = ?, retries = retries + 1 WHERE id = ?",
			now+int64(retryTimeout/time.Second), item.ID,
		); err != nil {
			return errors.Wrap(err, "lease push")
		}

		result = &item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PushQueueFinish deletes a leased queue entry. With unsubClient the
// client's push subscription is cleared (delivery gave up or the endpoint
// is gone); otherwise the client's last_seen is touched to keep the
// session alive. Finishing an id that is already gone is a no-op, which
// keeps retries idempotent under at-least-once delivery.
func (s *Store) PushQueueFinish(id int64, unsubClient bool) error {
	return s.withTx(func(tx *sql.Tx) error {
		var clientID int64
		err := tx.QueryRow(
			"SELECT client_id FROM push_queue WHERE id = ?", id,
		).Scan(&clientID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "resolve queued push")
		}

		if _, err := tx.Exec("DELETE FROM push_queue WHERE id = ?", id); err != nil {
			return errors.Wrap(err, "delete queued push")
		}

		if unsubClient {
			if _, err := tx.Exec(
				"UPDATE clients SET push_sub = NULL WHERE client_id = ?", clientID,
			); err != nil {
				return errors.Wrap(err, "clear push subscription")
			}
		} else {
			if _, err := tx.Exec(
				"UPDATE clients SET last_seen = ? WHERE client_id = ?", s.unix(), clientID,
			); err != nil {
				return errors.Wrap(err, "touch client")
			}
		}
		return nil
	})
}
