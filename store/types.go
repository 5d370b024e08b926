package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/adwatch/adwatch/errors"
	"github.com/adwatch/adwatch/internal/util"
)

// MaxAdIDLength bounds external ad identifiers. They are opaque strings
// from a third party and treated as unvalidated bytes up to this length.
const MaxAdIDLength = 64

// notifyTextLimit is the maximum number of characters of ad text carried
// in a push notification payload.
const notifyTextLimit = 128

// AdQueryBase is the user-editable part of a saved search.
type AdQueryBase struct {
	Nickname string
	Query    string
	Filters  []string
}

// AdQuery is a saved search with its identity.
type AdQuery struct {
	AdQueryBase
	AdQueryID int64
}

// AdQueryResult is an ad query as seen by one client: includes whether
// that client is subscribed.
type AdQueryResult struct {
	AdQuery
	Subscribed bool
}

// AdQueryStatus adds the scheduler metadata to an AdQueryResult.
type AdQueryStatus struct {
	AdQueryResult
	NextPull   int64
	LastPull   *int64
	LastError  *string
	LastNotify *int64
}

// ClientPushInfo is what the push dispatcher needs to deliver to one
// client: the subscription blob (null when the client unsubscribed) and
// the client's VAPID private key in PEM form.
type ClientPushInfo struct {
	PushSub   *string
	VAPIDPriv []byte
}

// PushQueueItem is one leased entry of the push queue. Retries is the
// number of delivery attempts made before this lease; the lease itself
// has already bumped the stored counter.
type PushQueueItem struct {
	ID       int64
	ClientID int64
	Message  string
	Retries  int
	PushInfo ClientPushInfo
}

// AdContent is one stored advertisement under an ad query.
type AdContent struct {
	AdQueryID   int64
	ID          string
	AccountName string
	AccountURL  string
	StartDate   int64
	LastSeen    int64
	TextHash    string
	Text        string
	Screenshot  []byte
}

// InsertAdParams carries one crawled ad into InsertAd together with the
// notification policy knobs that decide whether it fans out.
type InsertAdParams struct {
	AdQueryID   int64
	ID          string
	AccountName string
	AccountURL  string
	StartDate   int64
	Text        string
	Screenshot  []byte

	TextExpiration    int64 // seconds; dedup window for the text ledger
	MinNotifyInterval int64 // seconds; per-query notification throttle
}

// notifyPayload is the canonical wire form of a push notification.
type notifyPayload struct {
	AdQueryID int64    `json:"adQueryId"`
	Nickname  string   `json:"nickname"`
	Ad        notifyAd `json:"ad"`
}

type notifyAd struct {
	ID          string `json:"id"`
	AccountName string `json:"accountName"`
	AccountURL  string `json:"accountUrl"`
	Text        string `json:"text"`
}

// notifyMessage builds the JSON message enqueued for every subscriber of
// an ad query when a novel ad passes the notification gates.
func notifyMessage(adQueryID int64, nickname string, p InsertAdParams) (string, error) {
	payload := notifyPayload{
		AdQueryID: adQueryID,
		Nickname:  nickname,
		Ad: notifyAd{
			ID:          p.ID,
			AccountName: p.AccountName,
			AccountURL:  p.AccountURL,
			Text:        util.TruncateRunes(p.Text, notifyTextLimit),
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "marshal notification payload")
	}
	return string(data), nil
}

// HashSessionID returns the hex SHA-256 of a session id. Session ids are
// the user-held capability; only this hash is stored and indexed.
func HashSessionID(sessionID string) string {
	sum := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:])
}

// TextHash returns the hex SHA-256 of the ASCII-lowercased ad text, the
// de-duplication key within one ad query.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(util.ASCIILower(text)))
	return hex.EncodeToString(sum[:])
}

func marshalFilters(filters []string) (string, error) {
	if filters == nil {
		filters = []string{}
	}
	data, err := json.Marshal(filters)
	if err != nil {
		return "", errors.Wrap(err, "marshal filters")
	}
	return string(data), nil
}

func unmarshalFilters(raw string) ([]string, error) {
	var filters []string
	if err := json.Unmarshal([]byte(raw), &filters); err != nil {
		return nil, errors.Wrap(err, "unmarshal filters")
	}
	if filters == nil {
		filters = []string{}
	}
	return filters, nil
}
