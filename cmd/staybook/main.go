package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"staybook/internal/app/commands"
	bookingapp "staybook/internal/app/handlers/booking"
	couponapp "staybook/internal/app/handlers/coupons"
	loyaltyapp "staybook/internal/app/handlers/loyalty"
	meapp "staybook/internal/app/handlers/me"
	reconcileapp "staybook/internal/app/handlers/reconcile"
	"staybook/internal/app/middleware"
	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domaincoupon "staybook/internal/domain/coupon"
	domainpayout "staybook/internal/domain/payout"
	domainproperty "staybook/internal/domain/property"
	"staybook/internal/domain/shared/money"
	"staybook/internal/infra/broker/kafka"
	"staybook/internal/infra/config"
	infradb "staybook/internal/infra/db/mongo"
	ginserver "staybook/internal/infra/http/gin"
	"staybook/internal/infra/obs"
	infraoutbox "staybook/internal/infra/outbox"
	infrapayments "staybook/internal/infra/payments"
	"staybook/internal/infra/storage/memory"
	"staybook/internal/infra/storage/s3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Warn("using fallback configuration", "error", err)
		cfg.Env = env
		cfg.HTTPAddr = getenv("HTTP_ADDR", ":8080")
		cfg.StorageMode = "memory"
		cfg.WebhookSecret = getenv("PAYMENTS_WEBHOOK_SECRET", "dev-webhook-secret")
		cfg.CommissionBps = 1000
		cfg.OutboxPollInterval = 500 * time.Millisecond
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("application wiring failed", "error", err)
		os.Exit(1)
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: app.ready,
	}, app.handlers)

	if app.memoryFactory != nil {
		fixturesPath := getenv("STAYBOOK_FIXTURES", "")
		if fixturesPath != "" {
			if err := loadFixtures(ctx, fixturesPath, app.memoryFactory, logger); err != nil {
				logger.Warn("fixtures load failed", "error", err, "path", fixturesPath)
			}
		}
	}

	if app.outboxWorker != nil {
		go func() {
			if err := app.outboxWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox worker stopped", "error", err)
			}
		}()
	}
	if app.reviewConsumer != nil {
		topic := cfg.KafkaTopicPrefix + "reviews.events.v1"
		go func() {
			if err := app.reviewConsumer.Run(ctx, []string{topic}); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("review consumer stopped", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers       ginserver.Handlers
	ready          func() error
	memoryFactory  *memory.Factory
	outboxWorker   *infraoutbox.Worker
	reviewConsumer *kafka.Consumer
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (application, error) {
	var (
		app        application
		uowFactory uow.UoWFactory
		idStore    middleware.IdempotencyStore
		outboxDest appoutbox.Outbox
		receipts   policies.ReceiptArchive
	)
	app.ready = func() error { return nil }

	switch cfg.StorageMode {
	case "mongo":
		client, err := infradb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return application{}, fmt.Errorf("mongo connect: %w", err)
		}
		if err := infradb.EnsureIndexes(ctx, client.DB, cfg.IdempotencyTTL); err != nil {
			return application{}, fmt.Errorf("mongo indexes: %w", err)
		}
		uowFactory = infradb.NewFactory(client.DB)
		idStore = infradb.NewIdempotencyStore(client.DB)
		store := infraoutbox.NewStore(client.DB)
		outboxDest = store
		app.ready = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}

		if len(cfg.KafkaBrokers) > 0 {
			producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
			if err != nil {
				return application{}, fmt.Errorf("kafka producer: %w", err)
			}
			app.outboxWorker = &infraoutbox.Worker{
				Store:       store,
				Producer:    producer,
				Interval:    cfg.OutboxPollInterval,
				TopicPrefix: cfg.KafkaTopicPrefix,
				Source:      "app://staybook",
				Backoff:     cfg.RetryBackoff,
			}
		}

		archive, err := s3.NewReceiptArchive(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, logger)
		if err != nil {
			logger.Warn("receipt archive unavailable, receipts kept in memory", "error", err)
			receipts = memory.NewReceiptArchive()
		} else {
			receipts = archive
		}
	default:
		factory := memory.NewFactory()
		app.memoryFactory = &factory
		uowFactory = factory
		idStore = memory.NewIdempotencyStore()
		outboxDest = memory.NewOutbox()
		receipts = memory.NewReceiptArchive()
	}

	var payments policies.PaymentsPort
	if cfg.PaymentsAPIKey != "" {
		payments = &infrapayments.Client{
			HTTP:    &http.Client{Timeout: 10 * time.Second},
			BaseURL: cfg.PaymentsBaseURL,
			APIKey:  cfg.PaymentsAPIKey,
			Logger:  logger,
		}
	} else {
		logger.Warn("payments api key missing, using in-process gateway stub")
		payments = memory.NewPaymentsStub()
	}

	rates := domainpayout.Rates{CommissionBps: cfg.CommissionBps, TaxWithholdingBps: cfg.TaxWithholdingBps}
	encoder := appoutbox.JSONEventEncoder{}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, bookingapp.CreateBookingCommand{}.Key(), &bookingapp.CreateBookingHandler{
		UoWFactory: uowFactory,
		Payments:   payments,
		Outbox:     outboxDest,
		Encoder:    encoder,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, bookingapp.CancelBookingCommand{}.Key(), &bookingapp.CancelBookingHandler{
		UoWFactory: uowFactory,
		Outbox:     outboxDest,
		Encoder:    encoder,
	})
	commands.RegisterHandler(commandBus, couponapp.ApplyCouponCommand{}.Key(), &couponapp.ApplyCouponHandler{
		UoWFactory: uowFactory,
	})
	commands.RegisterHandler(commandBus, reconcileapp.IngestEventCommand{}.Key(), &reconcileapp.IngestEventHandler{
		UoWFactory: uowFactory,
		Rates:      rates,
		Receipts:   receipts,
		Outbox:     outboxDest,
		Encoder:    encoder,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, loyaltyapp.RedeemPointsCommand{}.Key(), &loyaltyapp.RedeemPointsHandler{
		UoWFactory: uowFactory,
	})
	commands.RegisterHandler(commandBus, loyaltyapp.AccrueReviewCommand{}.Key(), &loyaltyapp.AccrueReviewHandler{
		UoWFactory: uowFactory,
	})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, meapp.ListGuestBookingsQuery{}.Key(), &meapp.ListGuestBookingsHandler{
		UoWFactory: uowFactory,
		Logger:     logger,
	})
	queries.RegisterHandler(queryBus, meapp.LoyaltyStatementQuery{}.Key(), &meapp.LoyaltyStatementHandler{
		UoWFactory: uowFactory,
	})

	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Idempotency(idStore, nil),
		middleware.Transaction(uowFactory, txOptionsFor),
		middleware.OutboxFlush(outboxDest),
	)
	queryBusWithMiddleware := middleware.ChainQueries(queryBus)

	if len(cfg.KafkaBrokers) > 0 {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, "staybook-loyalty", nil, kafka.ReviewEventHandler{
			Commands: commandBusWithMiddleware,
			Logger:   logger,
		})
		if err != nil {
			logger.Warn("review consumer unavailable", "error", err)
		} else {
			app.reviewConsumer = consumer
		}
	}

	app.handlers = ginserver.Handlers{
		Booking: ginserver.BookingHandler{Commands: commandBusWithMiddleware},
		Coupon:  ginserver.CouponHandler{Commands: commandBusWithMiddleware},
		Me: ginserver.MeHandler{
			Queries:  queryBusWithMiddleware,
			Commands: commandBusWithMiddleware,
			Logger:   logger,
		},
		Webhook: ginserver.WebhookHandler{
			Commands: commandBusWithMiddleware,
			Verifier: infrapayments.SignatureVerifier{Secret: []byte(cfg.WebhookSecret)},
			Logger:   logger,
		},
		AuthMiddleware: ginserver.TrustedHeaderAuth(),
	}
	return app, nil
}

// txOptionsFor keeps booking creation outside the shared transaction
// boundary: the handler runs its own two units around the gateway call.
func txOptionsFor(cmd commands.Command) uow.TxOptions {
	if cmd.Key() == (bookingapp.CreateBookingCommand{}).Key() {
		return uow.TxOptions{Skip: true}
	}
	return uow.TxOptions{}
}

func loadFixtures(ctx context.Context, path string, factory *memory.Factory, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}

	var fixtures struct {
		Properties []propertyFixture `json:"properties"`
		Coupons    []couponFixture   `json:"coupons"`
	}
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	for _, fx := range fixtures.Properties {
		prop := &domainproperty.Property{
			ID:          domainproperty.PropertyID(fx.ID),
			Host:        domainproperty.HostID(fx.Host),
			Title:       fx.Title,
			NightlyRate: money.Money{Amount: fx.NightlyRate, Currency: fx.Currency},
			CleaningFee: money.Money{Amount: fx.CleaningFee, Currency: fx.Currency},
			GuestsLimit: fx.GuestsLimit,
			Active:      true,
		}
		if err := factory.PropertiesRepo.Save(ctx, prop); err != nil {
			logger.Error("cannot store fixture property", "property_id", fx.ID, "error", err)
			continue
		}
		logger.Info("property fixture imported", "property_id", fx.ID)
	}

	couponRepo, ok := factory.CouponsRepo.(*memory.CouponRepository)
	if !ok {
		return nil
	}
	for _, fx := range fixtures.Coupons {
		coupon := &domaincoupon.Coupon{
			ID:         domaincoupon.CouponID(fx.ID),
			Code:       fx.Code,
			Kind:       domaincoupon.DiscountKind(fx.Kind),
			Value:      fx.Value,
			MaxUses:    fx.MaxUses,
			MinBooking: money.Money{Amount: fx.MinBooking, Currency: fx.Currency},
			Active:     true,
		}
		if fx.ValidFrom != "" {
			if t, err := time.Parse(time.RFC3339, fx.ValidFrom); err == nil {
				coupon.ValidFrom = t
			}
		}
		if fx.ValidTo != "" {
			if t, err := time.Parse(time.RFC3339, fx.ValidTo); err == nil {
				coupon.ValidTo = t
			}
		}
		couponRepo.Seed(coupon)
		logger.Info("coupon fixture imported", "code", coupon.Code)
	}
	return nil
}

type propertyFixture struct {
	ID          string `json:"id"`
	Host        string `json:"host"`
	Title       string `json:"title"`
	NightlyRate int64  `json:"nightly_rate"`
	CleaningFee int64  `json:"cleaning_fee"`
	Currency    string `json:"currency"`
	GuestsLimit int    `json:"guests_limit"`
}

type couponFixture struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Kind       string `json:"kind"`
	Value      int64  `json:"value"`
	MaxUses    int64  `json:"max_uses"`
	MinBooking int64  `json:"min_booking"`
	Currency   string `json:"currency"`
	ValidFrom  string `json:"valid_from"`
	ValidTo    string `json:"valid_to"`
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
