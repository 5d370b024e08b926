package server

import (
	"encoding/json"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adwatch/adwatch/store"
)

// A record serialized to its wire form and fed back through request
// parsing yields the same field values.
func TestAdQueryRoundTrip(t *testing.T) {
	original := store.AdQueryResult{
		AdQuery: store.AdQuery{
			AdQueryBase: store.AdQueryBase{
				Nickname: "shoes",
				Query:    "running shoes",
				Filters:  []string{"nike", "Adidas"},
			},
			AdQueryID: 42,
		},
		Subscribed: true,
	}

	wire := toAdQueryJSON(original)
	data, err := json.Marshal(wire)
	require.NoError(t, err)

	var decoded adQueryJSON
	require.NoError(t, json.Unmarshal(data, &decoded))

	filters, err := json.Marshal(decoded.Filters)
	require.NoError(t, err)

	parsed, err := parseAdQueryRequest(url.Values{
		"ad_query_id": {decoded.AdQueryID},
		"nickname":    {decoded.Nickname},
		"query":       {decoded.Query},
		"filters":     {string(filters)},
		"subscribed":  {strconv.FormatBool(decoded.Subscribed)},
	}, true)
	require.NoError(t, err)

	assert.Equal(t, original, parsed)
}

func TestParseAdQueryRequestValidation(t *testing.T) {
	valid := url.Values{
		"nickname": {"n"}, "query": {"q"}, "filters": {`["f"]`}, "subscribed": {"false"},
	}

	q, err := parseAdQueryRequest(valid, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"f"}, q.Filters)
	assert.Zero(t, q.AdQueryID)

	for name, mutate := range map[string]func(url.Values){
		"missing nickname": func(v url.Values) { v.Del("nickname") },
		"missing query":    func(v url.Values) { v.Del("query") },
		"bad filters":      func(v url.Values) { v.Set("filters", `{"not":"array"}`) },
		"bad subscribed":   func(v url.Values) { v.Set("subscribed", "1") },
	} {
		t.Run(name, func(t *testing.T) {
			values := url.Values{}
			for k, vs := range valid {
				values[k] = append([]string(nil), vs...)
			}
			mutate(values)
			_, err := parseAdQueryRequest(values, false)
			assert.Error(t, err)
		})
	}

	// Absent filters default to an empty list.
	q, err = parseAdQueryRequest(url.Values{
		"nickname": {"n"}, "query": {"q"}, "subscribed": {"true"},
	}, false)
	require.NoError(t, err)
	assert.NotNil(t, q.Filters)
	assert.Empty(t, q.Filters)

	// withID requires a parseable positive id.
	_, err = parseAdQueryRequest(valid, true)
	assert.Error(t, err)
}

func TestParsePushSub(t *testing.T) {
	sub, err := parsePushSub(`{"endpoint":"https://e","keys":{"auth":"a","p256dh":"p"}}`)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Contains(t, *sub, "https://e")

	sub, err = parsePushSub("null")
	require.NoError(t, err)
	assert.Nil(t, sub)

	for _, raw := range []string{
		"",
		"not json",
		`{"endpoint":"https://e"}`,
		`{"endpoint":"https://e","keys":{"auth":"a"}}`,
		`{"keys":{"auth":"a","p256dh":"p"}}`,
	} {
		_, err := parsePushSub(raw)
		assert.Error(t, err, "raw=%q", raw)
	}
}

func TestParseAdQueryID(t *testing.T) {
	id, err := parseAdQueryID(url.Values{"ad_query_id": {"7"}})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	for _, raw := range []string{"", "0", "-3", "abc", "1.5"} {
		_, err := parseAdQueryID(url.Values{"ad_query_id": {raw}})
		assert.Error(t, err, "raw=%q", raw)
	}
}
