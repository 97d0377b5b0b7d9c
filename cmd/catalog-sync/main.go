package main

import (
	"context"
	"flag"
	"os"

	catalogapp "github.com/HurmakR/herabuna-b2b/internal/catalog/application"
	catalogpg "github.com/HurmakR/herabuna-b2b/internal/catalog/infrastructure/postgres"
	"github.com/HurmakR/herabuna-b2b/internal/catalog/infrastructure/woo"
	storagepg "github.com/HurmakR/herabuna-b2b/internal/storage/postgres"
	"github.com/HurmakR/herabuna-b2b/pkg/config"
	"github.com/HurmakR/herabuna-b2b/pkg/logging"
	"github.com/HurmakR/herabuna-b2b/pkg/shutdown"
)

// catalog-sync pulls the external catalog into the local database, either
// once (default) or continuously with -watch.
func main() {
	watch := flag.Bool("watch", false, "keep syncing on the configured interval")
	flag.Parse()

	log := logging.New()
	cfg := config.Load()

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if cfg.WooBaseURL == "" {
		log.Error("WOO_BASE_URL is not configured")
		os.Exit(1)
	}

	pool, err := storagepg.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("postgres connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := storagepg.Migrate(ctx, pool); err != nil {
		log.Error("migrate failed", "error", err)
		os.Exit(1)
	}

	client := woo.NewClient(logging.For(log, "woo"),
		cfg.WooBaseURL, cfg.WooAPIRoot, cfg.WooConsumerKey, cfg.WooConsumerSecret)
	repo := catalogpg.NewRepository(logging.For(log, "catalog"), pool)
	reconciler := catalogapp.NewReconciler(logging.For(log, "catalog-sync"), client, repo)

	if *watch {
		reconciler.Run(ctx, cfg.SyncInterval)
		return
	}
	if err := reconciler.SyncOnce(ctx); err != nil {
		log.Error("sync failed", "error", err)
		os.Exit(1)
	}
}
