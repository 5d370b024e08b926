// Package worker holds the two long-lived loops: the crawl scheduler
// that pulls saved searches through the headless browser, and the push
// dispatcher that drains the notification queue. Each is a single
// goroutine; both talk to the world only through the store and their
// external collaborator.
package worker

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adwatch/adwatch/browser"
	"github.com/adwatch/adwatch/config"
	"github.com/adwatch/adwatch/internal/util"
	"github.com/adwatch/adwatch/store"
)

// CrawlScheduler repeatedly leases the most overdue ad query, pulls the
// ads library through the browser, stores novelties and keeps history
// bounded. One bad query fails only its own pass.
type CrawlScheduler struct {
	store   *store.Store
	browser browser.Browser
	cfg     config.CrawlConfig
	logger  *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCrawlScheduler creates the scheduler. Start must be called to begin
// processing.
func NewCrawlScheduler(ctx context.Context, s *store.Store, b browser.Browser, cfg config.CrawlConfig, logger *zap.SugaredLogger) *CrawlScheduler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	workerCtx, cancel := context.WithCancel(ctx)
	return &CrawlScheduler{
		store:   s,
		browser: b,
		cfg:     cfg,
		logger:  logger.Named("crawler"),
		ctx:     workerCtx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutine.
func (c *CrawlScheduler) Start() {
	c.logger.Infow("Starting crawl scheduler",
		"refresh_interval", c.cfg.RefreshInterval(),
		"max_ad_history", c.cfg.MaxAdHistory)

	// Trim before the first pull so a long downtime doesn't leave
	// oversized histories in place for a whole cycle.
	c.cleanup()

	c.wg.Add(1)
	go c.run()
}

// Stop cancels the worker and waits for the in-flight pass to finish.
func (c *CrawlScheduler) Stop() {
	c.cancel()
	c.wg.Wait()
	c.logger.Infow("Crawl scheduler stopped")
}

func (c *CrawlScheduler) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.IdlePoll())
	defer ticker.Stop()

	for {
		// Drain all due queries before going back to sleep.
		for c.processNext() {
			select {
			case <-c.ctx.Done():
				return
			default:
			}
		}

		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// processNext runs one pass over the most overdue query. Returns false
// when nothing was due.
func (c *CrawlScheduler) processNext() bool {
	q, err := c.store.AdQueryNext(c.cfg.RefreshInterval())
	if err != nil {
		c.logger.Errorw("Failed to lease next ad query", "error", err)
		return false
	}
	if q == nil {
		return false
	}

	c.pull(q)
	c.cleanup()
	return true
}

// pull performs one crawl pass for a leased query. Browser failures are
// recorded on the query and never escape.
func (c *CrawlScheduler) pull(q *store.AdQuery) {
	start := time.Now()

	results, err := c.browser.Query(c.ctx, q.Query)
	if err != nil {
		c.logger.Warnw("Browser query failed",
			"ad_query_id", q.AdQueryID, "nickname", q.Nickname, "error", err)
		c.finishPull(q.AdQueryID, err.Error())
		return
	}

	kept := filterResults(results, q.Filters)

	ids := make([]string, 0, len(kept))
	for _, r := range kept {
		ids = append(ids, r.ID)
	}
	unseen, err := c.store.UnseenAdIDs(q.AdQueryID, ids)
	if err != nil {
		c.logger.Errorw("Failed to compute novelty set",
			"ad_query_id", q.AdQueryID, "error", err)
		c.finishPull(q.AdQueryID, err.Error())
		return
	}

	novelIDs := make([]string, 0, len(unseen))
	for _, r := range kept {
		if unseen[r.ID] {
			novelIDs = append(novelIDs, r.ID)
		}
	}

	var screenshots map[string][]byte
	if len(novelIDs) > 0 {
		screenshots, err = c.browser.ScreenshotIDs(c.ctx, novelIDs)
		if err != nil {
			c.logger.Warnw("Browser screenshot failed",
				"ad_query_id", q.AdQueryID, "error", err)
			c.finishPull(q.AdQueryID, err.Error())
			return
		}
	}

	// The surface lists newest first. Insert in reverse so the oldest
	// novelty lands first and a single notification window covers the
	// whole pull from its oldest ad.
	inserted, notified := 0, 0
	for i := len(kept) - 1; i >= 0; i-- {
		r := kept[i]
		if !unseen[r.ID] {
			continue
		}

		didNotify, err := c.store.InsertAd(store.InsertAdParams{
			AdQueryID:         q.AdQueryID,
			ID:                r.ID,
			AccountName:       r.AccountName,
			AccountURL:        r.AccountURL,
			StartDate:         r.StartDate,
			Text:              r.Text,
			Screenshot:        reencodeScreenshot(screenshots[r.ID]),
			TextExpiration:    int64(c.cfg.AdTextExpirationSeconds),
			MinNotifyInterval: int64(c.cfg.MinNotifyIntervalSeconds),
		})
		if err != nil {
			c.logger.Errorw("Failed to store ad",
				"ad_query_id", q.AdQueryID, "ad_id", r.ID, "error", err)
			c.finishPull(q.AdQueryID, err.Error())
			return
		}
		inserted++
		if didNotify {
			notified++
		}
	}

	c.finishPull(q.AdQueryID, "")
	c.logger.Infow("Crawl pass complete",
		"ad_query_id", q.AdQueryID,
		"nickname", q.Nickname,
		"results", len(results),
		"kept", len(kept),
		"inserted", inserted,
		"notified", notified,
		"duration", time.Since(start))
}

func (c *CrawlScheduler) finishPull(adQueryID int64, pullErr string) {
	if err := c.store.AdQueryFinishedPull(adQueryID, pullErr); err != nil {
		c.logger.Errorw("Failed to record pull result",
			"ad_query_id", adQueryID, "error", err)
	}
}

func (c *CrawlScheduler) cleanup() {
	ads, texts, err := c.store.CleanupAds(c.cfg.MaxAdHistory, c.cfg.AdTextExpiration())
	if err != nil {
		c.logger.Errorw("Ad history cleanup failed", "error", err)
		return
	}
	if ads > 0 || texts > 0 {
		c.logger.Infow("Trimmed ad history", "ads_removed", ads, "texts_removed", texts)
	}
}

// filterResults keeps a result when the filter list is empty or any
// filter is a substring of the ad text, compared ASCII-lowercased.
func filterResults(results []browser.SearchResult, filters []string) []browser.SearchResult {
	if len(filters) == 0 {
		return results
	}

	kept := make([]browser.SearchResult, 0, len(results))
	for _, r := range results {
		text := util.ASCIILower(r.Text)
		for _, f := range filters {
			if strings.Contains(text, util.ASCIILower(f)) {
				kept = append(kept, r)
				break
			}
		}
	}
	return kept
}
