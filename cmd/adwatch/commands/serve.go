package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/adwatch/adwatch/browser"
	"github.com/adwatch/adwatch/config"
	"github.com/adwatch/adwatch/db"
	"github.com/adwatch/adwatch/errors"
	"github.com/adwatch/adwatch/logger"
	"github.com/adwatch/adwatch/server"
	"github.com/adwatch/adwatch/session"
	"github.com/adwatch/adwatch/store"
	"github.com/adwatch/adwatch/webpush"
	"github.com/adwatch/adwatch/worker"
)

// ServeCmd runs the full service.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the adwatch service",
	Long: `Run the full adwatch service: the HTTP API, the crawl scheduler
that pulls the ads library, and the push dispatcher that delivers
notifications.

The service stops cleanly on SIGINT/SIGTERM: the HTTP listener drains,
both workers finish their in-flight pass, and the browser session and
database are released.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}

	log := logger.Logger
	log.Infow("Starting adwatch",
		"db_path", cfg.Database.Path,
		"listen", cfg.Server.Host,
		"port", cfg.Server.Port)

	conn, err := db.Open(cfg.Database.Path, log)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer conn.Close()

	if err := db.Migrate(conn, log); err != nil {
		return errors.Wrap(err, "migrate database")
	}

	st := store.New(conn, log)
	issuer := session.NewIssuer(st, cfg.Session.Expiration(), log)

	remote := browser.NewRemote(cfg.Browser.URL, cfg.Browser.Timeout(), log)
	sender := webpush.NewSender(cfg.Push.VAPIDSub, log)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	crawler := worker.NewCrawlScheduler(ctx, st, remote, cfg.Crawl, log)
	dispatcher := worker.NewPushDispatcher(ctx, st, sender, cfg.Push, log)
	crawler.Start()
	dispatcher.Start()

	srv := server.New(st, issuer, cfg.Server, log)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infow("Received shutdown signal", "signal", sig)
	case err := <-serveErr:
		if err != nil {
			log.Errorw("HTTP server failed", "error", err)
		}
	}

	// Stop accepting new work, then let in-flight passes finish.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("HTTP shutdown incomplete", "error", err)
	}

	crawler.Stop()
	dispatcher.Stop()

	if err := remote.Close(); err != nil {
		log.Warnw("Failed to close browser session", "error", err)
	}

	log.Infow("adwatch stopped")
	logger.Sync()
	return nil
}
