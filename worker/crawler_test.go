package worker

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adwatch/adwatch/browser"
	"github.com/adwatch/adwatch/config"
	testdb "github.com/adwatch/adwatch/internal/testing"
	"github.com/adwatch/adwatch/internal/util"
	"github.com/adwatch/adwatch/store"
)

// fakeBrowser scripts the renderer: fixed results per query, fixed
// screenshots, optional injected failures.
type fakeBrowser struct {
	results     []browser.SearchResult
	screenshots map[string][]byte

	queryErr      error
	screenshotErr error

	queries       []string
	screenshotIDs [][]string
}

func (f *fakeBrowser) Query(_ context.Context, query string) ([]browser.SearchResult, error) {
	f.queries = append(f.queries, query)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.results, nil
}

func (f *fakeBrowser) ScreenshotIDs(_ context.Context, ids []string) (map[string][]byte, error) {
	f.screenshotIDs = append(f.screenshotIDs, ids)
	if f.screenshotErr != nil {
		return nil, f.screenshotErr
	}
	shots := make(map[string][]byte, len(ids))
	for _, id := range ids {
		if data, ok := f.screenshots[id]; ok {
			shots[id] = data
		}
	}
	return shots, nil
}

func (f *fakeBrowser) Close() error { return nil }

func testCrawlConfig() config.CrawlConfig {
	return config.CrawlConfig{
		RefreshIntervalSeconds:   3600,
		AdTextExpirationSeconds:  3600,
		MinNotifyIntervalSeconds: 300,
		MaxAdHistory:             50,
		IdlePollSeconds:          1,
	}
}

func newCrawlEnv(t *testing.T, b browser.Browser) (*CrawlScheduler, *store.Store, *sql.DB) {
	t.Helper()

	conn := testdb.CreateTestDB(t)
	s := store.New(conn, zap.NewNop().Sugar())
	c := NewCrawlScheduler(context.Background(), s, b, testCrawlConfig(), nil)
	return c, s, conn
}

// makeDue rewinds scheduling timestamps so leased or fresh rows become
// immediately eligible again without sleeping through real intervals.
func makeDue(t *testing.T, conn *sql.DB, table, column string) {
	t.Helper()

	_, err := conn.Exec("UPDATE " + table + " SET " + column + " = " + column + " - 100000")
	require.NoError(t, err)
}

func subscribedSession(t *testing.T, s *store.Store) string {
	t.Helper()

	session := store.HashSessionID("crawl-test-client")
	require.NoError(t, s.CreateSession([]byte("pub"), []byte("priv"), session))
	sub := `{"endpoint":"https://push.example/x","keys":{"auth":"a","p256dh":"p"}}`
	found, err := s.UpdateClientPushSub(session, util.Ptr(sub))
	require.NoError(t, err)
	require.True(t, found)
	return session
}

func TestCrawlPassNoveltyAndNotify(t *testing.T) {
	fb := &fakeBrowser{
		results: []browser.SearchResult{
			{ID: "1", AccountName: "acct", AccountURL: "https://x/1", StartDate: 100, Text: "SALE today"},
			{ID: "2", AccountName: "acct", AccountURL: "https://x/2", StartDate: 200, Text: "no match"},
		},
	}
	c, s, conn := newCrawlEnv(t, fb)
	session := subscribedSession(t, s)

	id, err := s.InsertAdQuery(store.AdQueryBase{
		Nickname: "Q", Query: "running shoes", Filters: []string{"sale"},
	}, session)
	require.NoError(t, err)
	makeDue(t, conn, "ad_queries", "next_pull")

	require.True(t, c.processNext())

	assert.Equal(t, []string{"running shoes"}, fb.queries)
	require.Len(t, fb.screenshotIDs, 1)
	assert.Equal(t, []string{"1"}, fb.screenshotIDs[0])

	// Only the filter-matching ad was stored.
	ads, err := s.ListAdContent(id)
	require.NoError(t, err)
	require.Len(t, ads, 1)
	assert.Equal(t, "1", ads[0].ID)

	// Exactly one notification for the subscribed client.
	var queued int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM push_queue").Scan(&queued))
	assert.Equal(t, 1, queued)

	status, err := s.AdQueryStatus(session, id)
	require.NoError(t, err)
	assert.NotNil(t, status.LastNotify)
	assert.NotNil(t, status.LastPull)
	assert.Nil(t, status.LastError)
}

func TestCrawlPassNothingDue(t *testing.T) {
	fb := &fakeBrowser{}
	c, s, conn := newCrawlEnv(t, fb)
	_ = mustQuery(t, s, "idle", "q")

	// Push the query into the future; the scheduler must not touch the
	// browser.
	_, err := conn.Exec("UPDATE ad_queries SET next_pull = next_pull + 1000")
	require.NoError(t, err)

	assert.False(t, c.processNext())
	assert.Empty(t, fb.queries)
}

func TestCrawlPassBrowserFailureIsIsolated(t *testing.T) {
	fb := &fakeBrowser{queryErr: assert.AnError}
	c, s, conn := newCrawlEnv(t, fb)
	session := subscribedSession(t, s)
	id := mustQuery(t, s, "Q", "query")
	makeDue(t, conn, "ad_queries", "next_pull")

	require.True(t, c.processNext())

	status, err := s.AdQueryStatus(session, id)
	require.NoError(t, err)
	require.NotNil(t, status.LastError)
	assert.Contains(t, *status.LastError, assert.AnError.Error())
	assert.NotNil(t, status.LastPull)

	// The lease bump means the query is not retried immediately.
	assert.False(t, c.processNext())
}

func TestCrawlPassScreenshotFailureIsIsolated(t *testing.T) {
	fb := &fakeBrowser{
		results:       []browser.SearchResult{{ID: "1", Text: "text"}},
		screenshotErr: assert.AnError,
	}
	c, s, conn := newCrawlEnv(t, fb)
	session := subscribedSession(t, s)
	id := mustQuery(t, s, "Q", "query")
	makeDue(t, conn, "ad_queries", "next_pull")

	require.True(t, c.processNext())

	status, err := s.AdQueryStatus(session, id)
	require.NoError(t, err)
	require.NotNil(t, status.LastError)

	// Nothing was stored for the failed pass.
	ads, err := s.ListAdContent(id)
	require.NoError(t, err)
	assert.Empty(t, ads)
}

func TestCrawlPassInsertsOldestFirst(t *testing.T) {
	// The surface returns newest first. With both ads novel in one pull,
	// only the first insert (the oldest ad) wins the notification window.
	fb := &fakeBrowser{
		results: []browser.SearchResult{
			{ID: "new", AccountName: "a", AccountURL: "u", StartDate: 200, Text: "newest ad"},
			{ID: "old", AccountName: "a", AccountURL: "u", StartDate: 100, Text: "oldest ad"},
		},
	}
	c, s, conn := newCrawlEnv(t, fb)
	session := subscribedSession(t, s)
	_, err := s.InsertAdQuery(store.AdQueryBase{Nickname: "Q", Query: "q"}, session)
	require.NoError(t, err)
	makeDue(t, conn, "ad_queries", "next_pull")

	require.True(t, c.processNext())

	var message string
	require.NoError(t, conn.QueryRow("SELECT message FROM push_queue").Scan(&message))
	assert.Contains(t, message, `"id":"old"`)

	var queued int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM push_queue").Scan(&queued))
	assert.Equal(t, 1, queued)
}

func TestCrawlPassSkipsSeenAds(t *testing.T) {
	fb := &fakeBrowser{
		results: []browser.SearchResult{{ID: "1", Text: "text one"}},
	}
	c, s, conn := newCrawlEnv(t, fb)
	id := mustQuery(t, s, "Q", "q")
	makeDue(t, conn, "ad_queries", "next_pull")
	require.True(t, c.processNext())

	// Second pass with the same results: no new screenshot requests and
	// no duplicate rows.
	makeDue(t, conn, "ad_queries", "next_pull")
	require.True(t, c.processNext())

	require.Len(t, fb.screenshotIDs, 1)
	ads, err := s.ListAdContent(id)
	require.NoError(t, err)
	assert.Len(t, ads, 1)
}

func TestCrawlCleanupBoundsHistory(t *testing.T) {
	fb := &fakeBrowser{}
	for i := range 5 {
		fb.results = append(fb.results, browser.SearchResult{
			ID: string(rune('a' + i)), Text: "distinct text " + string(rune('a'+i)), StartDate: int64(i),
		})
	}
	c, s, conn := newCrawlEnv(t, fb)
	c.cfg.MaxAdHistory = 3
	id := mustQuery(t, s, "Q", "q")
	makeDue(t, conn, "ad_queries", "next_pull")

	require.True(t, c.processNext())

	ads, err := s.ListAdContent(id)
	require.NoError(t, err)
	assert.Len(t, ads, 3)
}

func TestFilterResults(t *testing.T) {
	results := []browser.SearchResult{
		{ID: "1", Text: "Big SALE now"},
		{ID: "2", Text: "nothing here"},
		{ID: "3", Text: "discount DEAL"},
	}

	assert.Len(t, filterResults(results, nil), 3)
	assert.Len(t, filterResults(results, []string{}), 3)

	kept := filterResults(results, []string{"sale", "deal"})
	require.Len(t, kept, 2)
	assert.Equal(t, "1", kept[0].ID)
	assert.Equal(t, "3", kept[1].ID)

	assert.Empty(t, filterResults(results, []string{"zebra"}))
}

func mustQuery(t *testing.T, s *store.Store, nickname, query string) int64 {
	t.Helper()

	id, err := s.InsertAdQuery(store.AdQueryBase{Nickname: nickname, Query: query}, "")
	require.NoError(t, err)
	return id
}
