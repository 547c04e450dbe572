package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kiranalabs/kirana-client/internal/api"
	"github.com/kiranalabs/kirana-client/internal/auth"
	"github.com/kiranalabs/kirana-client/internal/cart"
	"github.com/kiranalabs/kirana-client/internal/catalog"
	"github.com/kiranalabs/kirana-client/internal/notifications"
	"github.com/kiranalabs/kirana-client/internal/orders"
	"github.com/kiranalabs/kirana-client/internal/session"
	"github.com/kiranalabs/kirana-client/internal/storage"
	"github.com/kiranalabs/kirana-client/internal/wishlist"
	"github.com/kiranalabs/kirana-client/pkg/config"
	"github.com/kiranalabs/kirana-client/pkg/logger"
	"go.uber.org/multierr"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "kirana"})

	if err := godotenv.Load(); err != nil {
		logg.Debug(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "kirana",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := context.Background()

	store, err := storage.New(ctx, cfg.Storage, logg)
	if err != nil {
		logg.Error(ctx, "failed to open snapshot storage", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logg.Error(ctx, "error closing snapshot storage", err)
		}
	}()

	client, err := api.NewClient(cfg.API, logg)
	if err != nil {
		logg.Error(ctx, "failed to build api client", err)
		os.Exit(1)
	}

	sessions, err := session.NewManager(session.ManagerParams{Storage: store, Logger: logg})
	if err != nil {
		logg.Error(ctx, "failed to build session manager", err)
		os.Exit(1)
	}

	cartSvc, err := cart.NewService(cart.ServiceParams{
		API: client, Sessions: sessions, Storage: store, Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to build cart service", err)
		os.Exit(1)
	}

	wishSvc, err := wishlist.NewService(wishlist.ServiceParams{
		API: client, Sessions: sessions, Storage: store, Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to build wishlist service", err)
		os.Exit(1)
	}

	authSvc, err := auth.NewService(auth.ServiceParams{API: client, Sessions: sessions, Logger: logg})
	if err != nil {
		logg.Error(ctx, "failed to build auth service", err)
		os.Exit(1)
	}

	catalogSvc, err := catalog.NewService(catalog.ServiceParams{API: client, Logger: logg, Config: cfg.Catalog})
	if err != nil {
		logg.Error(ctx, "failed to build catalog service", err)
		os.Exit(1)
	}

	orderSvc, err := orders.NewService(orders.ServiceParams{API: client, Sessions: sessions, Logger: logg})
	if err != nil {
		logg.Error(ctx, "failed to build orders service", err)
		os.Exit(1)
	}

	notifSvc, err := notifications.NewService(notifications.ServiceParams{API: client, Sessions: sessions, Logger: logg})
	if err != nil {
		logg.Error(ctx, "failed to build notifications service", err)
		os.Exit(1)
	}

	// Session transitions cascade into collection re-syncs; the session
	// listener fires before any collection state is touched.
	sessions.Subscribe(func(_ *session.Session) {
		err := multierr.Combine(cartSvc.Sync(ctx), wishSvc.Sync(ctx))
		if err != nil {
			logg.Warn(ctx, "collection re-sync after session change: "+err.Error())
		}
	})

	// Cold-start: render the persisted snapshots before the network answers.
	if err := multierr.Combine(cartSvc.Restore(ctx), wishSvc.Restore(ctx)); err != nil {
		logg.Warn(ctx, "restoring snapshots: "+err.Error())
	}

	cli := &app{
		logg:     logg,
		client:   client,
		sessions: sessions,
		auth:     authSvc,
		cart:     cartSvc,
		wishlist: wishSvc,
		catalog:  catalogSvc,
		orders:   orderSvc,
		notifs:   notifSvc,
	}

	if err := cli.run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", friendlyMessage(err))
		os.Exit(1)
	}
}
