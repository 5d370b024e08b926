package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/adwatch/adwatch/errors"
)

// UnseenAdIDs filters ids down to those not yet stored under adQueryID.
// The crawler uses this to decide which ads are worth screenshotting.
func (s *Store) UnseenAdIDs(adQueryID int64, ids []string) (map[string]bool, error) {
	unseen := make(map[string]bool, len(ids))
	for _, id := range ids {
		unseen[id] = true
	}
	if len(ids) == 0 {
		return unseen, nil
	}

	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return nil, errors.Wrap(err, "marshal ad ids")
	}

	err = s.withTx(func(tx *sql.Tx) error {
		rows, err := tx.Query(`
			SELECT ac.id
			FROM ad_content ac
			JOIN json_each(?) je ON je.value = ac.id
			WHERE ac.ad_query_id = ?
		`, string(idsJSON), adQueryID)
		if err != nil {
			return errors.Wrap(err, "select seen ads")
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return errors.Wrap(err, "scan seen ad id")
			}
			delete(unseen, id)
		}
		return errors.Wrap(rows.Err(), "iterate seen ads")
	})
	if err != nil {
		return nil, err
	}
	return unseen, nil
}

// InsertAd upserts one crawled ad and decides, in the same transaction,
// whether it fans out as a notification. The decision has two gates:
//
//   - novelty: the ASCII-lowercased text hash must not appear in the
//     query's text ledger with a last_seen inside the expiration window.
//     Reposts of recently seen text are stored but stay silent.
//   - throttle: the query's last_notify must be more than
//     MinNotifyInterval seconds in the past (or unset).
//
// When both gates pass, one push_queue row per subscribed client with an
// active push subscription is enqueued due immediately, and last_notify
// is stamped even if that fan-out matched zero clients. The ledger entry
// is refreshed on every call regardless.
//
// Returns whether a notification was enqueued. An unknown ad query or an
// over-long ad id yields ErrDataArgument.
func (s *Store) InsertAd(p InsertAdParams) (bool, error) {
	if len(p.ID) > MaxAdIDLength {
		return false, errors.Wrap(ErrDataArgument, "ad id too long")
	}

	textHash := TextHash(p.Text)

	var notified bool
	err := s.withTx(func(tx *sql.Tx) error {
		now := s.unix()

		var nickname string
		var lastNotify *int64
		err := tx.QueryRow(
			"SELECT nickname, last_notify FROM ad_queries WHERE ad_query_id = ?",
			p.AdQueryID,
		).Scan(&nickname, &lastNotify)
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrap(ErrDataArgument, "no such ad query")
		}
		if err != nil {
			return errors.Wrap(err, "resolve ad query")
		}

		if _, err := tx.Exec(`
			INSERT INTO ad_content
				(ad_query_id, id, account_name, account_url, start_date, last_seen, text_hash, text, screenshot)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(ad_query_id, id) DO UPDATE SET
				account_name = excluded.account_name,
				account_url = excluded.account_url,
				start_date = excluded.start_date,
				last_seen = excluded.last_seen,
				text_hash = excluded.text_hash,
				text = excluded.text,
				screenshot = excluded.screenshot
		`, p.AdQueryID, p.ID, p.AccountName, p.AccountURL, p.StartDate, now, textHash, p.Text, p.Screenshot); err != nil {
			return errors.Wrap(err, "upsert ad content")
		}

		var fresh bool
		if err := tx.QueryRow(`
			SELECT EXISTS(
				SELECT 1 FROM ad_content_text
				WHERE ad_query_id = ? AND text_hash = ? AND last_seen > ?
			)
		`, p.AdQueryID, textHash, now-p.TextExpiration).Scan(&fresh); err != nil {
			return errors.Wrap(err, "check text ledger")
		}

		if _, err := tx.Exec(`
			INSERT INTO ad_content_text (ad_query_id, text_hash, text, last_seen)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(ad_query_id, text_hash) DO UPDATE SET
				text = excluded.text,
				last_seen = excluded.last_seen
		`, p.AdQueryID, textHash, p.Text, now); err != nil {
			return errors.Wrap(err, "upsert text ledger")
		}

		notify := !fresh && (lastNotify == nil || now-*lastNotify > p.MinNotifyInterval)
		if !notify {
			return nil
		}

		message, err := notifyMessage(p.AdQueryID, nickname, p)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(`
			INSERT INTO push_queue (ad_query_id, client_id, message, retry_time, retries)
			SELECT cs.ad_query_id, cs.client_id, ?, ?, 0
			FROM client_subs cs
			JOIN clients c ON c.client_id = cs.client_id
			WHERE cs.ad_query_id = ? AND c.push_sub IS NOT NULL
		`, message, now, p.AdQueryID); err != nil {
			return errors.Wrap(err, "enqueue notifications")
		}

		if _, err := tx.Exec(
			"UPDATE ad_queries SET last_notify = ? WHERE ad_query_id = ?",
			now, p.AdQueryID,
		); err != nil {
			return errors.Wrap(err, "stamp last notify")
		}

		notified = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return notified, nil
}

// CleanupAds trims stored content beyond maxAds per query, keeping the
// newest by (last_seen DESC, start_date DESC), then drops text ledger
// entries that are both outside the expiration window and no longer
// backed by stored content. Returns (ads removed, ledger rows removed).
func (s *Store) CleanupAds(maxAds int, textExpiration time.Duration) (int64, int64, error) {
	var adsRemoved, textRemoved int64
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			DELETE FROM ad_content WHERE rowid IN (
				SELECT rowid FROM (
					SELECT rowid, ROW_NUMBER() OVER (
						PARTITION BY ad_query_id
						ORDER BY last_seen DESC, start_date DESC
					) AS rn
					FROM ad_content
				) WHERE rn > ?
			)
		`, maxAds)
		if err != nil {
			return errors.Wrap(err, "trim ad content")
		}
		if adsRemoved, err = res.RowsAffected(); err != nil {
			return errors.Wrap(err, "trim ad content rows")
		}

		res, err = tx.Exec(`
			DELETE FROM ad_content_text WHERE last_seen < ? AND NOT EXISTS (
				SELECT 1 FROM ad_content ac
				WHERE ac.ad_query_id = ad_content_text.ad_query_id
				  AND ac.text_hash = ad_content_text.text_hash
			)
		`, s.unix()-int64(textExpiration/time.Second))
		if err != nil {
			return errors.Wrap(err, "trim text ledger")
		}
		if textRemoved, err = res.RowsAffected(); err != nil {
			return errors.Wrap(err, "trim text ledger rows")
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return adsRemoved, textRemoved, nil
}

// ListAdContent returns all stored ads under a query, newest first by
// (last_seen, start_date). An unknown id yields ErrDataArgument.
func (s *Store) ListAdContent(adQueryID int64) ([]AdContent, error) {
	var results []AdContent
	err := s.withTx(func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRow(
			"SELECT EXISTS(SELECT 1 FROM ad_queries WHERE ad_query_id = ?)", adQueryID,
		).Scan(&exists); err != nil {
			return errors.Wrap(err, "check ad query")
		}
		if !exists {
			return errors.Wrap(ErrDataArgument, "no such ad query")
		}

		rows, err := tx.Query(`
			SELECT ad_query_id, id, account_name, account_url, start_date, last_seen, text_hash, text, screenshot
			FROM ad_content
			WHERE ad_query_id = ?
			ORDER BY last_seen DESC, start_date DESC
		`, adQueryID)
		if err != nil {
			return errors.Wrap(err, "list ad content")
		}
		defer rows.Close()

		results = nil
		for rows.Next() {
			var ad AdContent
			if err := rows.Scan(
				&ad.AdQueryID, &ad.ID, &ad.AccountName, &ad.AccountURL,
				&ad.StartDate, &ad.LastSeen, &ad.TextHash, &ad.Text, &ad.Screenshot,
			); err != nil {
				return errors.Wrap(err, "scan ad content")
			}
			results = append(results, ad)
		}
		return errors.Wrap(rows.Err(), "iterate ad content")
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
