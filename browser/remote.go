package browser

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adwatch/adwatch/errors"
)

// Remote talks to a renderer sidecar over HTTP. The sidecar owns one
// browser session, so Remote serializes all calls behind a mutex.
type Remote struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.SugaredLogger
	mu         sync.Mutex
}

// NewRemote creates a client for the renderer at baseURL. The timeout
// bounds each call end to end; renders of heavy pages are slow, so
// callers should pass a generous value.
func NewRemote(baseURL string, timeout time.Duration, logger *zap.SugaredLogger) *Remote {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Remote{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("browser"),
	}
}

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse struct {
	Results []SearchResult `json:"results"`
}

// Query implements Browser.
func (r *Remote) Query(ctx context.Context, query string) ([]SearchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	var resp queryResponse
	if err := r.post(ctx, "/query", queryRequest{Query: query}, &resp); err != nil {
		return nil, errors.Wrap(err, "browser query")
	}

	r.logger.Debugw("Browser query complete",
		"query", query,
		"results", len(resp.Results),
		"duration", time.Since(start))
	return resp.Results, nil
}

type screenshotRequest struct {
	IDs []string `json:"ids"`
}

type screenshotResponse struct {
	// Screenshots maps ad id to base64-encoded image bytes.
	Screenshots map[string]string `json:"screenshots"`
}

// ScreenshotIDs implements Browser.
func (r *Remote) ScreenshotIDs(ctx context.Context, ids []string) (map[string][]byte, error) {
	if len(ids) == 0 {
		return map[string][]byte{}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var resp screenshotResponse
	if err := r.post(ctx, "/screenshot", screenshotRequest{IDs: ids}, &resp); err != nil {
		return nil, errors.Wrap(err, "browser screenshot")
	}

	shots := make(map[string][]byte, len(resp.Screenshots))
	for id, encoded := range resp.Screenshots {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			r.logger.Warnw("Discarding undecodable screenshot", "ad_id", id, "error", err)
			continue
		}
		shots[id] = data
	}
	return shots, nil
}

// Close implements Browser. The session belongs to the sidecar; closing
// tells it to release the page.
func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, err := http.NewRequest(http.MethodPost, r.baseURL+"/close", nil)
	if err != nil {
		return errors.Wrap(err, "create close request")
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "close browser session")
	}
	resp.Body.Close()
	return nil
}

func (r *Remote) post(ctx context.Context, path string, body, out interface{}) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Newf("renderer returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrap(err, "unmarshal response")
	}
	return nil
}
