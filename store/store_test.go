package store

import (
	"testing"
	"time"

	"go.uber.org/zap"

	testdb "github.com/adwatch/adwatch/internal/testing"
)

// testEpoch is an arbitrary fixed start time for the fake clock.
const testEpoch = int64(1_700_000_000)

// newTestStore returns a store over an in-memory database with a
// controllable clock. Advance time by adding seconds to *clock.
func newTestStore(t *testing.T) (*Store, *int64) {
	t.Helper()

	conn := testdb.CreateTestDB(t)
	s := New(conn, zap.NewNop().Sugar())

	clock := new(int64)
	*clock = testEpoch
	s.now = func() time.Time { return time.Unix(*clock, 0) }
	return s, clock
}

// mustInsertQuery creates a saved search without a subscriber and returns
// its id.
func mustInsertQuery(t *testing.T, s *Store, nickname, query string, filters []string) int64 {
	t.Helper()

	id, err := s.InsertAdQuery(AdQueryBase{Nickname: nickname, Query: query, Filters: filters}, "")
	if err != nil {
		t.Fatalf("insert ad query %q: %v", nickname, err)
	}
	return id
}

// mustCreateSession registers a client and returns its session id.
func mustCreateSession(t *testing.T, s *Store, seed string) string {
	t.Helper()

	sessionID := HashSessionID("seed:" + seed) // any 64-hex string works
	if err := s.CreateSession([]byte("pub-"+seed), []byte("priv-"+seed), sessionID); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sessionID
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
