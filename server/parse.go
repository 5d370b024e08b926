package server

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/adwatch/adwatch/errors"
	"github.com/adwatch/adwatch/store"
)

// parseAdQueryID parses the ad_query_id argument.
func parseAdQueryID(values url.Values) (int64, error) {
	raw := values.Get("ad_query_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Newf("invalid ad_query_id %q", raw)
	}
	return id, nil
}

// parseSubscribed parses the subscribed argument as a JSON boolean.
func parseSubscribed(values url.Values) (bool, error) {
	raw := values.Get("subscribed")
	switch raw {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, errors.Newf("invalid subscribed %q", raw)
}

// parseAdQueryRequest assembles a saved-search record from the query
// string: nickname, query, filters (a JSON array of strings), subscribed,
// and ad_query_id when withID is set.
func parseAdQueryRequest(values url.Values, withID bool) (store.AdQueryResult, error) {
	var q store.AdQueryResult

	q.Nickname = values.Get("nickname")
	if q.Nickname == "" {
		return q, errors.New("nickname must not be empty")
	}
	q.Query = values.Get("query")
	if q.Query == "" {
		return q, errors.New("query must not be empty")
	}

	rawFilters := values.Get("filters")
	if rawFilters == "" {
		rawFilters = "[]"
	}
	if err := json.Unmarshal([]byte(rawFilters), &q.Filters); err != nil {
		return q, errors.New("filters must be a JSON array of strings")
	}
	if q.Filters == nil {
		q.Filters = []string{}
	}

	subscribed, err := parseSubscribed(values)
	if err != nil {
		return q, err
	}
	q.Subscribed = subscribed

	if withID {
		if q.AdQueryID, err = parseAdQueryID(values); err != nil {
			return q, err
		}
	}
	return q, nil
}

type pushSubKeys struct {
	Auth   *string `json:"auth"`
	P256dh *string `json:"p256dh"`
}

type pushSubBlob struct {
	Endpoint *string     `json:"endpoint"`
	Keys     pushSubKeys `json:"keys"`
}

// parsePushSub validates the push_sub argument. A JSON null normalizes to
// nil (clear the subscription); otherwise the blob must carry a string
// endpoint and string keys.auth / keys.p256dh. An empty argument is a
// caller mistake, not a clear request.
func parsePushSub(raw string) (*string, error) {
	if raw == "" {
		return nil, errors.New("push_sub must not be empty")
	}
	if raw == "null" {
		return nil, nil
	}

	var blob pushSubBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return nil, errors.New("push_sub must be JSON")
	}
	if blob.Endpoint == nil || blob.Keys.Auth == nil || blob.Keys.P256dh == nil {
		return nil, errors.New("push_sub must carry endpoint, keys.auth and keys.p256dh")
	}
	return &raw, nil
}
