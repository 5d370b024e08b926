package server

import (
	"strconv"

	"github.com/adwatch/adwatch/store"
)

// adQueryJSON is the wire form of a saved search. The id travels as a
// string even though it is numeric in storage.
type adQueryJSON struct {
	AdQueryID  string   `json:"adQueryId"`
	Nickname   string   `json:"nickname"`
	Query      string   `json:"query"`
	Filters    []string `json:"filters"`
	Subscribed bool     `json:"subscribed"`
}

// adQueryStatusJSON adds the scheduler metadata to the wire form.
type adQueryStatusJSON struct {
	adQueryJSON
	NextPull   int64   `json:"nextPull"`
	LastPull   *int64  `json:"lastPull"`
	LastError  *string `json:"lastError"`
	LastNotify *int64  `json:"lastNotify"`
}

// adContentJSON is the wire form of one stored ad. Screenshot bytes
// marshal as base64.
type adContentJSON struct {
	ID          string `json:"id"`
	AccountName string `json:"accountName"`
	AccountURL  string `json:"accountUrl"`
	StartDate   int64  `json:"startDate"`
	LastSeen    int64  `json:"lastSeen"`
	Text        string `json:"text"`
	Screenshot  []byte `json:"screenshot"`
}

func toAdQueryJSON(q store.AdQueryResult) adQueryJSON {
	return adQueryJSON{
		AdQueryID:  strconv.FormatInt(q.AdQueryID, 10),
		Nickname:   q.Nickname,
		Query:      q.Query,
		Filters:    q.Filters,
		Subscribed: q.Subscribed,
	}
}

func toAdQueryStatusJSON(q store.AdQueryStatus) adQueryStatusJSON {
	return adQueryStatusJSON{
		adQueryJSON: toAdQueryJSON(q.AdQueryResult),
		NextPull:    q.NextPull,
		LastPull:    q.LastPull,
		LastError:   q.LastError,
		LastNotify:  q.LastNotify,
	}
}

func toAdContentJSON(ads []store.AdContent) []adContentJSON {
	out := make([]adContentJSON, 0, len(ads))
	for _, ad := range ads {
		out = append(out, adContentJSON{
			ID:          ad.ID,
			AccountName: ad.AccountName,
			AccountURL:  ad.AccountURL,
			StartDate:   ad.StartDate,
			LastSeen:    ad.LastSeen,
			Text:        ad.Text,
			Screenshot:  ad.Screenshot,
		})
	}
	return out
}
