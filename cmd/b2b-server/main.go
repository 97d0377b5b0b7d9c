package main

import (
	"context"
	stdhttp "net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	catalogapp "github.com/HurmakR/herabuna-b2b/internal/catalog/application"
	catalogpg "github.com/HurmakR/herabuna-b2b/internal/catalog/infrastructure/postgres"
	"github.com/HurmakR/herabuna-b2b/internal/catalog/infrastructure/woo"
	invapp "github.com/HurmakR/herabuna-b2b/internal/inventory/application"
	invpg "github.com/HurmakR/herabuna-b2b/internal/inventory/infrastructure/postgres"
	"github.com/HurmakR/herabuna-b2b/internal/notify/consumer"
	"github.com/HurmakR/herabuna-b2b/internal/notify/invoice"
	"github.com/HurmakR/herabuna-b2b/internal/notify/telegram"
	orderapp "github.com/HurmakR/herabuna-b2b/internal/order/application"
	orderhttp "github.com/HurmakR/herabuna-b2b/internal/order/infrastructure/http"
	orderpg "github.com/HurmakR/herabuna-b2b/internal/order/infrastructure/postgres"
	orderredis "github.com/HurmakR/herabuna-b2b/internal/order/infrastructure/redis"
	"github.com/HurmakR/herabuna-b2b/internal/shipping/infrastructure/novaposhta"
	storagepg "github.com/HurmakR/herabuna-b2b/internal/storage/postgres"
	"github.com/HurmakR/herabuna-b2b/pkg/config"
	"github.com/HurmakR/herabuna-b2b/pkg/idempotency"
	"github.com/HurmakR/herabuna-b2b/pkg/logging"
	"github.com/HurmakR/herabuna-b2b/pkg/outbox"
	"github.com/HurmakR/herabuna-b2b/pkg/shutdown"
	"github.com/HurmakR/herabuna-b2b/pkg/tracing"
)

func main() {
	log := logging.New()
	cfg := config.Load()

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	traceShutdown, err := tracing.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Error("tracing init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shCancel()
		_ = traceShutdown(shCtx)
	}()

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

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	// Inventory.
	stockRepo := invpg.NewRepository(logging.For(log, "inventory"), pool)
	engine := invapp.NewEngine(logging.For(log, "inventory"), stockRepo)

	// Catalog.
	catalogRepo := catalogpg.NewRepository(logging.For(log, "catalog"), pool)
	wooClient := woo.NewClient(logging.For(log, "woo"),
		cfg.WooBaseURL, cfg.WooAPIRoot, cfg.WooConsumerKey, cfg.WooConsumerSecret)
	reader := catalogapp.NewReader(catalogRepo)

	// Shipping provider doubles as the location resolver.
	np := novaposhta.NewClient(logging.For(log, "novaposhta"),
		cfg.NovaPoshtaAPIURL, cfg.NovaPoshtaAPIKey, cfg.SenderCityRef, cfg.SenderWarehouse)

	// Orders.
	orderRepo := orderpg.NewRepository(logging.For(log, "orders"), pool)
	statusCache := orderredis.NewStatusCache(logging.For(log, "orders"), rdb)
	orderSvc := orderapp.NewService(logging.For(log, "orders"),
		orderRepo, engine, reader, np, np, statusCache)

	// Outbox relays: lifecycle events to kafka, stock pushes to the catalog.
	outboxStore := storagepg.NewOutboxStore(logging.For(log, "outbox"), pool)
	writer := outbox.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()

	eventRelay := outbox.NewRelay(logging.For(log, "event-relay"), outboxStore,
		outbox.NewKafkaDispatcher(logging.For(log, "event-relay"), writer, cfg.OrderEventsTopic),
		cfg.ServiceName+"-events", outbox.KindEvent)
	stockRelay := outbox.NewRelay(logging.For(log, "stock-relay"), outboxStore,
		catalogapp.NewStockPushDispatcher(logging.For(log, "stock-relay"), wooClient),
		cfg.ServiceName+"-stock", outbox.KindStockPush)

	go func() { _ = eventRelay.Run(ctx) }()
	go func() { _ = stockRelay.Run(ctx) }()

	// Notification consumer.
	kafkaReader := consumer.NewReader(cfg.KafkaBrokers, cfg.OrderEventsTopic, cfg.ServiceName+"-notify")
	defer kafkaReader.Close()
	bot := telegram.NewClient(logging.For(log, "telegram"), cfg.TelegramToken)
	issuer := invoice.NewIssuer(logging.For(log, "invoice"), cfg.InvoiceWebhookURL)
	notify := consumer.New(logging.For(log, "notify"), kafkaReader,
		idempotency.NewStore(rdb, 24*time.Hour), bot, issuer,
		cfg.TelegramAdminChat, cfg.TelegramOrderChat)
	go func() {
		if err := notify.Run(ctx); err != nil {
			log.Error("notify consumer stopped", "error", err)
		}
	}()

	// Periodic catalog pull in-process; cmd/catalog-sync runs the same
	// reconciler standalone for one-shot syncs.
	if cfg.WooBaseURL != "" {
		reconciler := catalogapp.NewReconciler(logging.For(log, "catalog-sync"), wooClient, catalogRepo)
		go reconciler.Run(ctx, cfg.SyncInterval)
	}

	handler := orderhttp.NewHandler(logging.For(log, "http"), orderSvc, np, engine)
	srv := &stdhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shCancel()
		_ = srv.Shutdown(shCtx)
	}()

	log.Info("server starting", "addr", cfg.HTTPAddr, "service", cfg.ServiceName)
	if err := srv.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
