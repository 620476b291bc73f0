package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"gawulo-platform/services/api/internal/auth"
	httpx "gawulo-platform/services/api/internal/http"
	"gawulo-platform/services/api/internal/http/handlers"
	"gawulo-platform/services/api/internal/repo"
	"gawulo-platform/services/api/internal/worker"
	"gawulo-platform/services/api/internal/ws"
	"gawulo-platform/shared/pkg/cache"
	"gawulo-platform/shared/pkg/config"
	"gawulo-platform/shared/pkg/logger"
	"gawulo-platform/shared/pkg/models"
	"gawulo-platform/shared/pkg/rabbit"
)

const (
	queueOrderEvents = "api.order-events"
	dlqKeyOrders     = "dlq.api.orders"
	retryTTLMs       = 15000
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New("api", cfg.Common.LogLevel)

	ctxDB, cancelDB := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelDB()

	db, err := pgxpool.New(ctxDB, cfg.Postgres.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("pg connect failed")
	}
	defer db.Close()

	rds := cache.New(cfg.Redis.Addr)
	defer rds.Close()
	if err := rds.Ping(ctxDB); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, caching degraded")
	}

	mq, err := rabbit.Connect(cfg.Rabbit.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit connect failed")
	}
	defer mq.Close()

	if err := rabbit.DeclareBase(mq.Ch); err != nil {
		log.Fatal().Err(err).Msg("declare exchanges failed")
	}
	if err := rabbit.DeclareQueueWithDLQ(mq.Ch, rabbit.QueueSpec{
		Name:     queueOrderEvents,
		BindKeys: []string{"orders.*"},
		DLQKey:   dlqKeyOrders,
		Prefetch: 10,
	}); err != nil {
		log.Fatal().Err(err).Msg("declare queue failed")
	}
	for _, key := range []string{models.EventOrderCreated, models.EventOrderStatusChanged, models.EventOrderRefunded} {
		name := "api." + key + ".retry"
		if err := rabbit.DeclareRetryQueue(mq.Ch, name, "api."+key, key, retryTTLMs); err != nil {
			log.Fatal().Err(err).Msg("declare retry queue failed")
		}
	}

	issuer := &auth.Issuer{
		Secret:     []byte(cfg.Auth.JWTSecret),
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
		BcryptCost: cfg.Auth.BcryptCost,
	}

	users := &repo.UsersPG{DB: db}
	vendors := &repo.VendorsPG{DB: db}
	menu := &repo.MenuPG{DB: db}
	orders := &repo.OrdersPG{DB: db}
	reviews := &repo.ReviewsPG{DB: db}
	payments := &repo.PaymentsPG{DB: db}
	lookups := &repo.LookupsPG{DB: db}
	syncRepo := &repo.SyncPG{DB: db}
	notifications := &repo.NotificationsPG{DB: db}
	outbox := &repo.OutboxPG{}
	processed := &repo.ProcessedEventsPG{DB: db}

	statusCache := &repo.OrdersStatusCache{PG: orders, Redis: rds, TTL: cfg.Redis.StatusTTL}
	menuCache := &repo.MenuCached{PG: menu, Redis: rds, TTL: cfg.Redis.MenuTTL}
	lookupCache := &repo.LookupsCached{PG: lookups, Redis: rds, TTL: cfg.Redis.LookupTTL}

	hub := ws.NewHub(log)

	h := &httpx.Handlers{
		Auth: &handlers.AuthHandler{
			Users:    users,
			Issuer:   issuer,
			OTP:      handlers.LogOTPSender{Log: log},
			OTPTTL:   cfg.Auth.OTPTTL,
			ResetTTL: cfg.Auth.ResetTokenTTL,
			Log:      log,
		},
		Vendors: &handlers.VendorsHandler{Vendors: vendors, Reviews: reviews, Users: users, Log: log},
		Menu:    &handlers.MenuHandler{Menu: menu, Cached: menuCache, Vendors: vendors, Log: log},
		Orders: &handlers.OrdersHandler{
			DB:       db,
			Orders:   orders,
			Vendors:  vendors,
			Menu:     menu,
			Payments: payments,
			Outbox:   outbox,
			Status:   statusCache,
			VATRate:  cfg.Orders.VATRate,
			Log:      log,
		},
		Refunds: &handlers.RefundsHandler{
			DB:       db,
			Orders:   orders,
			Payments: payments,
			Vendors:  vendors,
			Outbox:   outbox,
			Log:      log,
		},
		Lookups:       &handlers.LookupsHandler{Store: lookupCache, Log: log},
		Sync:          &handlers.SyncHandler{Store: syncRepo, MaxRetries: cfg.Sync.MaxRetries, Log: log},
		Notifications: &handlers.NotificationsHandler{Store: notifications, Log: log},
		WS:            handlers.NewWSHandler(hub, issuer, vendors, log),
	}

	consumer := &worker.Consumer{
		Log:           log,
		Hub:           hub,
		Notifications: notifications,
		Processed:     processed,
		Vendors:       vendors,
		RetryPub:      rabbit.NewPublisher(mq.Ch, rabbit.ExchangeRetry),
		DLQPub:        rabbit.NewPublisher(mq.Ch, rabbit.ExchangeDLX),
		Service:       "api",
		MaxAttempts:   3,
		DLQKey:        dlqKeyOrders,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := rabbit.NewConsumer(mq.Ch).Consume(queueOrderEvents, 10)
	if err != nil {
		log.Fatal().Err(err).Msg("consume failed")
	}
	go consumer.Run(ctx, deliveries)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpx.NewRouter(issuer, h),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutdown...")
	cancel()
	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	_ = srv.Shutdown(shCtx)
}
