package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"staysettle/internal/app/commands"
	bookingapp "staysettle/internal/app/handlers/booking"
	earningsapp "staysettle/internal/app/handlers/earnings"
	paymentapp "staysettle/internal/app/handlers/payments"
	payoutapp "staysettle/internal/app/handlers/payouts"
	"staysettle/internal/app/middleware"
	appoutbox "staysettle/internal/app/outbox"
	"staysettle/internal/app/policies"
	"staysettle/internal/app/queries"
	"staysettle/internal/app/services/bookings"
	"staysettle/internal/app/services/earnings"
	"staysettle/internal/app/services/payments"
	"staysettle/internal/app/services/payouts"
	"staysettle/internal/app/services/promoter"
	"staysettle/internal/app/services/refunds"
	"staysettle/internal/app/services/reminders"
	"staysettle/internal/app/uow"
	"staysettle/internal/domain/pricing"
	"staysettle/internal/infra/broker/kafka"
	"staysettle/internal/infra/config"
	mongodb "staysettle/internal/infra/db/mongo"
	"staysettle/internal/infra/fixtures"
	"staysettle/internal/infra/gateway"
	infrainbox "staysettle/internal/infra/inbox"
	"staysettle/internal/infra/jobs"
	"staysettle/internal/infra/jobs/redisq"
	"staysettle/internal/infra/notify"
	"staysettle/internal/infra/obs"
	infraoutbox "staysettle/internal/infra/outbox"
	"staysettle/internal/infra/storage/memory"
)

// container holds the wired application. Mongo, Kafka and Redis are used
// when configured; otherwise the in-memory store, log producer and memory
// queue stand in, which only makes sense for a single process.
type container struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *obs.Metrics

	factory  uow.UoWFactory
	source   infraoutbox.Source
	producer infraoutbox.Producer
	queue    jobs.Queue
	health   map[string]obs.Check

	bookings *bookings.Service
	payments *payments.Service
	payouts  *payouts.Service
	earnings *earnings.Service
	promoter *promoter.Promoter

	jobWorker    *jobs.Worker
	outboxWorker *infraoutbox.Worker

	commands commands.Bus
	queries  queries.Bus

	inMemory bool
	closers  []func(context.Context) error
}

func buildContainer(ctx context.Context, cfg config.Config, logger *slog.Logger) (*container, error) {
	c := &container{cfg: cfg, logger: logger, metrics: obs.NewMetrics(), health: map[string]obs.Check{}}
	c.closers = append(c.closers, obs.InitTracing("staysettle"))

	var (
		idem  middleware.IdempotencyStore
		inbox policies.Inbox
	)
	if cfg.UsesMongo() {
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		c.closers = append(c.closers, client.Close)
		if err := client.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		box := infraoutbox.NewStore(client.DB)
		c.factory = mongodb.NewFactory(client.DB, box)
		c.source = box
		idemStore, err := mongodb.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
		if err != nil {
			return nil, fmt.Errorf("idempotency store: %w", err)
		}
		idem = idemStore
		inbox = infrainbox.NewStore(client.DB, "payments.webhooks")
		c.health["mongo"] = client.Ping
	} else {
		logger.Warn("MONGO_URI not set, using in-memory storage")
		store := memory.NewStore()
		c.factory = store
		c.source = store
		idem = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
		inbox = memory.NewInbox()
		c.inMemory = true
	}

	var notifier policies.Notifier = notify.LogNotifier{Logger: logger}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		c.closers = append(c.closers, func(context.Context) error { return producer.Close() })
		c.producer = producer
		notifier = notify.KafkaNotifier{Producer: producer, Topic: cfg.KafkaTopicPrefix + notify.DefaultTopic, Timeout: 5 * time.Second}
	} else {
		c.producer = infraoutbox.LogProducer{Logger: logger}
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		c.closers = append(c.closers, func(context.Context) error { return rdb.Close() })
		c.health["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		c.queue = redisq.New(rdb, "staysettle:jobs", cfg.Jobs.Lease)
	} else {
		c.queue = jobs.NewMemoryQueue(cfg.Jobs.Lease)
	}

	gw := gateway.New(gateway.Config{BaseURL: cfg.Gateway.BaseURL, SecretKey: cfg.Gateway.SecretKey, Timeout: cfg.Gateway.Timeout}, logger)
	encoder := appoutbox.JSONEventEncoder{IDGenerator: uuid.NewString}
	engine := &earnings.Engine{Hold: cfg.EarningHold, Encoder: encoder, Logger: logger, NewID: uuid.NewString}

	c.bookings = &bookings.Service{
		UoW:       c.factory,
		Pricing:   pricing.NewCalculator(cfg.ServiceFeePercent),
		Refunds:   &refunds.Executor{Gateway: gw, Logger: logger},
		Earnings:  engine,
		Jobs:      c.queue,
		Notifier:  notifier,
		Metrics:   c.metrics,
		Encoder:   encoder,
		StayTimes: bookings.DefaultStayTimes(),
		Logger:    logger,
		NewID:     uuid.NewString,
	}
	c.payouts = &payouts.Service{
		UoW:      c.factory,
		Gateway:  gw,
		Notifier: notifier,
		Metrics:  c.metrics,
		Encoder:  encoder,
		Logger:   logger,
		NewID:    uuid.NewString,
	}
	c.payments = &payments.Service{
		UoW:         c.factory,
		Gateway:     gw,
		Verifier:    gateway.NewHMACVerifier(cfg.Gateway.WebhookSecret),
		Inbox:       inbox,
		Bookings:    c.bookings,
		Payouts:     c.payouts,
		CallbackURL: cfg.Gateway.CallbackURL,
		Encoder:     encoder,
		Metrics:     c.metrics,
		Logger:      logger,
	}
	c.earnings = &earnings.Service{
		UoW:      c.factory,
		Engine:   engine,
		Notifier: notifier,
		Metrics:  c.metrics,
		Encoder:  encoder,
		Logger:   logger,
	}
	c.promoter = &promoter.Promoter{
		UoW:      c.factory,
		Earnings: c.earnings,
		Bookings: c.bookings,
		Interval: cfg.PromoterInterval,
		Logger:   logger,
	}

	handlers := &reminders.Handlers{UoW: c.factory, Bookings: c.bookings, Notifier: notifier, Logger: logger}
	c.jobWorker = &jobs.Worker{
		Queue:        c.queue,
		Handle:       handlers.Handle,
		PollInterval: cfg.Jobs.PollInterval,
		MaxAttempts:  cfg.Jobs.MaxAttempts,
		BackoffBase:  cfg.Jobs.BackoffBase,
		Logger:       logger,
		Metrics:      c.metrics,
	}
	workerID, _ := os.Hostname()
	c.outboxWorker = &infraoutbox.Worker{
		Source:      c.source,
		Producer:    c.producer,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		SourceURI:   "urn:staysettle",
		ID:          workerID,
		Backoff:     cfg.RetryBackoff,
		Logger:      logger,
		Metrics:     c.metrics,
	}

	cmdBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	bookingapp.Register(cmdBus, c.bookings)
	bookingapp.RegisterQueries(queryBus, c.bookings)
	paymentapp.Register(cmdBus, c.payments)
	payoutapp.Register(cmdBus, queryBus, c.payouts)
	earningsapp.Register(queryBus, c.earnings)

	validator := middleware.NewStructValidator()
	authorizer := middleware.RoleAuthorizer{}
	c.commands = middleware.ChainCommands(cmdBus,
		middleware.Logging(logger),
		middleware.Authorization(authorizer),
		middleware.Validation(validator),
		middleware.Idempotency(idem, nil),
	)
	c.queries = middleware.ChainQueries(queryBus,
		middleware.QueryAuthorization(authorizer),
		middleware.QueryValidation(validator),
	)

	if _, err := fixtures.LoadProperties(ctx, cfg.PropertyFixtures, c.factory, logger, time.Now()); err != nil {
		logger.Warn("property fixtures load failed", "error", err, "path", cfg.PropertyFixtures)
	}
	return c, nil
}

func (c *container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
