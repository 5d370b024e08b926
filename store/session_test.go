package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adwatch/adwatch/internal/util"
)

func TestSessionLifecycle(t *testing.T) {
	s, _ := newTestStore(t)

	exists, err := s.SessionExists("never-issued")
	require.NoError(t, err)
	assert.False(t, exists)

	session := mustCreateSession(t, s, "a")
	exists, err = s.SessionExists(session)
	require.NoError(t, err)
	assert.True(t, exists)

	// Only the hash is stored in the lookup column.
	var hash string
	require.NoError(t, s.db.QueryRow("SELECT session_hash FROM clients").Scan(&hash))
	assert.Equal(t, HashSessionID(session), hash)
	assert.NotEqual(t, session, hash)
}

func TestCleanupSessions(t *testing.T) {
	s, clock := newTestStore(t)
	stale := mustCreateSession(t, s, "stale")
	*clock += 100
	fresh := mustCreateSession(t, s, "fresh")

	id := mustInsertQuery(t, s, "q", "query", nil)
	ok, err := s.ToggleAdQuerySubscription(id, stale, true)
	require.NoError(t, err)
	require.True(t, ok)

	*clock += 50
	removed, err := s.CleanupSessions(100 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	exists, err := s.SessionExists(stale)
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = s.SessionExists(fresh)
	require.NoError(t, err)
	assert.True(t, exists)

	// The expired client's subscription went with it; the query stays.
	assert.Zero(t, countRows(t, s, "client_subs"))
	assert.Equal(t, 1, countRows(t, s, "ad_queries"))
}

func TestUpdateClientPushSub(t *testing.T) {
	s, clock := newTestStore(t)
	session := mustCreateSession(t, s, "a")

	found, err := s.UpdateClientPushSub("no-such-session", util.Ptr("{}"))
	require.NoError(t, err)
	assert.False(t, found)

	sub := `{"endpoint":"https://push.example/x","keys":{"auth":"a","p256dh":"p"}}`
	*clock += 10
	found, err = s.UpdateClientPushSub(session, util.Ptr(sub))
	require.NoError(t, err)
	assert.True(t, found)

	var stored *string
	var lastSeen int64
	require.NoError(t, s.db.QueryRow("SELECT push_sub, last_seen FROM clients").Scan(&stored, &lastSeen))
	require.NotNil(t, stored)
	assert.Equal(t, sub, *stored)
	assert.Equal(t, *clock, lastSeen)
}

func TestClearPushSubDropsQueuedPushes(t *testing.T) {
	s, clock := newTestStore(t)
	session := mustCreateSession(t, s, "a")
	sub := `{"endpoint":"https://push.example/x","keys":{"auth":"a","p256dh":"p"}}`
	found, err := s.UpdateClientPushSub(session, util.Ptr(sub))
	require.NoError(t, err)
	require.True(t, found)

	id, err := s.InsertAdQuery(AdQueryBase{Nickname: "q", Query: "query"}, session)
	require.NoError(t, err)
	notified, err := s.InsertAd(InsertAdParams{
		AdQueryID: id, ID: "ad-1", AccountName: "acct", AccountURL: "https://x", StartDate: *clock,
		Text: "hello", TextExpiration: 3600, MinNotifyInterval: 60,
	})
	require.NoError(t, err)
	require.True(t, notified)
	require.Equal(t, 1, countRows(t, s, "push_queue"))

	found, err = s.UpdateClientPushSub(session, nil)
	require.NoError(t, err)
	assert.True(t, found)

	assert.Zero(t, countRows(t, s, "push_queue"))
	var stored *string
	require.NoError(t, s.db.QueryRow("SELECT push_sub FROM clients").Scan(&stored))
	assert.Nil(t, stored)
}
