package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/MatusOllah/slogcolor"

	"github.com/solvane/phonefleet-console/pkg/api"
	"github.com/solvane/phonefleet-console/pkg/cache"
	"github.com/solvane/phonefleet-console/pkg/config"
	"github.com/solvane/phonefleet-console/pkg/feed"
	"github.com/solvane/phonefleet-console/pkg/ops"
	"github.com/solvane/phonefleet-console/pkg/poller"
	"github.com/solvane/phonefleet-console/pkg/routes"
	"github.com/solvane/phonefleet-console/pkg/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	slog.SetDefault(slog.New(slogcolor.NewHandler(os.Stderr, slogcolor.DefaultOptions)))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := store.Migrate(cfg.DatabaseURL()); err != nil {
		slog.Error("failed to run database migrations", "error", err)
		os.Exit(1)
	}
	db, err := store.Connect(cfg.DatabaseURL())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	storage := store.New(db)

	session := api.NewSession()
	client := api.NewClient(cfg.Upstream.BaseURL, session)

	notifier := routes.NewUpdateNotifier()
	feedState := feed.NewState(notifier.Notify)
	lists := cache.NewLists(client, cfg.Cache.ListTTL, notifier.Notify)
	defer lists.Stop()

	coordinator := ops.NewCoordinator(client, lists.Invalidate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The status channel is scoped to the signed-in principal; until an
	// operator logs in the feed keeps retrying with an empty session and
	// stays disconnected.
	channel := func() string {
		return fmt.Sprintf("%s#%s", cfg.Upstream.ChannelPrefix, session.UserID())
	}
	statusFeed := feed.New(cfg.Upstream.FeedURL, channel, client.FeedTokenSource(), feedState)
	go statusFeed.Run(ctx)

	telemetryPoller := poller.New(client, storage.Telemetry, cfg.Telemetry.PollInterval, cfg.Telemetry.Retention)
	go telemetryPoller.Run(ctx)

	slog.Info("starting phonefleet console", "listen", cfg.ListenAddr, "upstream", cfg.Upstream.BaseURL)

	router := &routes.WebRouter{}
	if err := router.Initialize(cfg, client, lists, feedState, coordinator, storage, notifier); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}
