// Package browser is the boundary to the headless renderer that drives
// the third-party ads library. The core treats it as a blocking,
// possibly-slow, possibly-failing collaborator; only the crawl worker
// calls it, and calls are serialized because the remote end holds a
// single browser session.
package browser

import "context"

// SearchResult is one advertisement as returned by the renderer for a
// keyword query. StartDate is integer seconds since epoch.
type SearchResult struct {
	ID          string `json:"id"`
	AccountName string `json:"accountName"`
	AccountURL  string `json:"accountUrl"`
	StartDate   int64  `json:"startDate"`
	Text        string `json:"text"`
}

// Browser queries the ads library and captures screenshots of rendered
// ads. Implementations must be safe for concurrent use.
type Browser interface {
	// Query searches the ads library and returns results newest-first,
	// in the order the surface presents them.
	Query(ctx context.Context, query string) ([]SearchResult, error)

	// ScreenshotIDs captures rendered screenshots for the given ad ids.
	// Ids the renderer could not capture are absent from the result.
	ScreenshotIDs(ctx context.Context, ids []string) (map[string][]byte, error)

	// Close releases the browser session.
	Close() error
}
