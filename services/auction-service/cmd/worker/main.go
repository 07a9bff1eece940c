package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/greenrow/lot-auction/pkg/clock"
	pkgdb "github.com/greenrow/lot-auction/pkg/database"
	pkgevents "github.com/greenrow/lot-auction/pkg/events"
	"github.com/greenrow/lot-auction/services/auction-service/internal/adapters/database"
	"github.com/greenrow/lot-auction/services/auction-service/internal/adapters/delivery"
	"github.com/greenrow/lot-auction/services/auction-service/internal/adapters/events"
	"github.com/greenrow/lot-auction/services/auction-service/internal/config"
	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/notifications"
	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/reminders"
)

// The worker runs everything that happens off the request path: the outbox
// relay, the outbid notifier and the ending-soon reminder sweep. If one of
// them fails the others are cancelled and the process exits non-zero.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Initialize Postgres Connection Pool
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("Unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if pingErr := pool.Ping(ctx); pingErr != nil {
		logger.Error("Unable to ping database", "error", pingErr)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

	// 2. Connect to RabbitMQ
	if cfg.Events.RabbitMQURL == "" {
		logger.Error("RABBITMQ_URL is not set")
		os.Exit(1)
	}
	amqpConn, err := amqp.Dial(cfg.Events.RabbitMQURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	publisher, err := pkgevents.NewRabbitMQPublisher(amqpConn, cfg.Events.Exchange)
	if err != nil {
		logger.Error("Failed to create RabbitMQ publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	// 3. Delivery channels
	var sms delivery.TextSender
	if cfg.Delivery.SNSRegion != "" {
		sender, err := delivery.NewSMSSender(ctx, cfg.Delivery.SNSRegion)
		if err != nil {
			logger.Error("Failed to configure SNS", "error", err)
			os.Exit(1)
		}
		sms = sender
	} else {
		logger.Warn("SNS_REGION is not set, SMS delivery disabled")
	}
	notifier := delivery.NewDispatcher(delivery.NewMailer(delivery.SMTPConfig{
		Host:     cfg.Delivery.SMTPHost,
		Port:     cfg.Delivery.SMTPPort,
		From:     cfg.Delivery.SMTPFrom,
		Username: cfg.Delivery.SMTPUsername,
		Password: cfg.Delivery.SMTPPassword,
	}), sms)

	// 4. Dependencies
	clk := clock.System()
	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.Database.LockTimeout)
	contacts := database.NewPostgresContactRepository(pool)

	relay := pkgevents.NewOutboxRelay(
		database.NewPostgresOutboxRepository(clk),
		publisher,
		txManager,
		cfg.Events.OutboxBatchSize,
		cfg.Events.OutboxInterval,
		cfg.Events.Exchange,
		logger,
	)

	outbidService := notifications.NewOutbidService(
		txManager,
		database.NewPostgresProcessedEventRepository(),
		contacts,
		notifier,
		clk,
		cfg.Delivery.MoneyExponent,
		logger,
	)
	consumer := events.NewOutbidConsumer(amqpConn, cfg.Events.Exchange, cfg.Events.Prefetch, outbidService, logger)

	scheduler := reminders.NewScheduler(reminders.Deps{
		Lots:      database.NewPostgresLotRepository(pool),
		Bids:      database.NewPostgresBidRepository(pool),
		Alerts:    database.NewPostgresAlertRepository(pool),
		Contacts:  contacts,
		Notifier:  notifier,
		TxManager: txManager,
		Clock:     clk,
		Logger:    logger,
	}, cfg.Reminders)

	// 5. Run
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting Outbox Relay...")
		return relay.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Starting Outbid Consumer...")
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}
