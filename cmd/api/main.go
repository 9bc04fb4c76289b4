package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-orderwise/internal/cart"
	"github.com/ariefcatur/go-orderwise/internal/config"
	"github.com/ariefcatur/go-orderwise/internal/docstore"
	"github.com/ariefcatur/go-orderwise/internal/httpx"
	kafkax "github.com/ariefcatur/go-orderwise/internal/kafka"
	"github.com/ariefcatur/go-orderwise/internal/loyalty"
	"github.com/ariefcatur/go-orderwise/internal/menu"
	"github.com/ariefcatur/go-orderwise/internal/orders"
	"github.com/ariefcatur/go-orderwise/internal/pickup"
	"github.com/ariefcatur/go-orderwise/internal/postgres"
	"github.com/ariefcatur/go-orderwise/internal/pricing"
	"github.com/ariefcatur/go-orderwise/internal/redisx"
	"github.com/ariefcatur/go-orderwise/internal/timewindow"
	"github.com/ariefcatur/go-orderwise/internal/voucher"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := config.NewLogger(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}
	store := docstore.NewPostgres(db)

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	catalogCache := redisx.NewJSONCache(rdb, redisx.TTLCatalog)

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, logger.Named("producer"))
	prod.Start(ctx)
	events := kafkax.NewEmitter(prod, cfg.ServiceName)
	// the retry queue must not report success before the broker has the message
	retryWriter := kafkax.NewSyncWriter(cfg.KafkaBrokers, 5*time.Second)
	defer retryWriter.Close()

	hours, err := pickup.ParseHours(cfg.PickupOpen, cfg.PickupClose, cfg.SlotMinutes)
	if err != nil {
		logger.Warn("pickup hours invalid, using defaults", zap.Error(err))
		hours = pickup.DefaultHours()
	}

	calc := pricing.NewCalculator(cfg.TaxRate)
	sessions := cart.NewRegistry()
	menuCat := menu.NewCatalog(store, catalogCache, logger.Named("menu"))
	vouchers := voucher.NewCatalog(store, catalogCache, logger.Named("voucher"))
	ledger := voucher.NewLedger(store, logger.Named("ledger"))
	repo := &orders.Repository{Store: store, Events: events, Location: cfg.Location, Log: logger.Named("orders")}
	checkout := &orders.Checkout{
		Store:       store,
		Redemptions: ledger,
		Calc:        calc,
		Awarder:     loyalty.NewAwarder(store, logger.Named("loyalty")),
		Retry:       loyalty.KafkaQueue{Emitter: kafkax.NewEmitter(retryWriter, cfg.ServiceName)},
		Events:      events,
		Idem:        redisx.NewIdempotency(rdb),
		Location:    cfg.Location,
		Log:         logger.Named("checkout"),
	}

	router := httpx.NewRouter()
	httpx.Mount(router,
		&httpx.ShopHandler{Menu: menuCat, Sessions: sessions, Hours: hours, Calc: calc, Location: cfg.Location},
		&httpx.OrdersHandler{Checkout: checkout, Repo: repo, Sessions: sessions},
		&httpx.VoucherHandler{Catalog: vouchers, Ledger: ledger},
		&httpx.AdminHandler{
			Menu:     menuCat,
			Vouchers: vouchers,
			Orders:   repo,
			Resolver: timewindow.NewResolver(cfg.WeekStart, cfg.Location),
			Log:      logger.Named("admin"),
		},
	)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // close inbox, flush and close writer
	cancel()          // stop producer loop
	prod.WaitClosed() // drain
}
