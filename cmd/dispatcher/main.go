package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rabbitmq/amqp091-go"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/redis"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	analyticshandler "github.com/vetrovmax/notify-dispatcher/internal/api/handlers/analytics"
	dlqhandler "github.com/vetrovmax/notify-dispatcher/internal/api/handlers/deadletter"
	notifhandler "github.com/vetrovmax/notify-dispatcher/internal/api/handlers/notification"
	"github.com/vetrovmax/notify-dispatcher/internal/api/router"
	"github.com/vetrovmax/notify-dispatcher/internal/api/server"
	"github.com/vetrovmax/notify-dispatcher/internal/bus"
	"github.com/vetrovmax/notify-dispatcher/internal/config"
	"github.com/vetrovmax/notify-dispatcher/internal/consumer"
	"github.com/vetrovmax/notify-dispatcher/internal/deadletter"
	"github.com/vetrovmax/notify-dispatcher/internal/model"
	"github.com/vetrovmax/notify-dispatcher/internal/outbox"
	notifrepo "github.com/vetrovmax/notify-dispatcher/internal/repository/notification"
	notifsvc "github.com/vetrovmax/notify-dispatcher/internal/service/notification"
	"github.com/vetrovmax/notify-dispatcher/pkg/email"
	"github.com/vetrovmax/notify-dispatcher/pkg/push"
	"github.com/vetrovmax/notify-dispatcher/pkg/sms"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Init()
	cfg := config.Must()
	val := validator.New()

	subscriptions := []bus.Subscription{
		{
			Name:          cfg.Bus.EmailSubscription,
			Filter:        map[string]string{bus.AttrChannel: model.ChannelEmail},
			MaxDeliveries: cfg.Bus.MaxDeliveries,
		},
		{
			Name:          cfg.Bus.SMSSubscription,
			Filter:        map[string]string{bus.AttrChannel: model.ChannelSMS},
			MaxDeliveries: cfg.Bus.MaxDeliveries,
		},
		{
			Name:          cfg.Bus.PushSubscription,
			Filter:        map[string]string{bus.AttrChannel: model.ChannelPush},
			MaxDeliveries: cfg.Bus.MaxDeliveries,
		},
	}

	// The memory driver keeps the whole pipeline in-process for local runs;
	// its lease expiry uses the consumer lock timeout.
	var (
		dispatchBus bus.Bus
		conn        *amqp091.Connection
	)
	switch cfg.Bus.Driver {
	case "memory":
		dispatchBus = bus.NewMemoryBus(cfg.Consumer.LockTimeout, subscriptions...)
	default:
		err := retry.DoContext(ctx, retry.Strategy{Attempts: cfg.RabbitMQ.Retries, Delay: cfg.RabbitMQ.Pause}, func() error {
			var dialErr error
			conn, dialErr = amqp091.Dial(cfg.RabbitMQ.URL())
			return dialErr
		})
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to connect to rabbitmq")
		}

		dispatchBus, err = bus.NewRabbitBus(conn, cfg.Bus.Topic, cfg.Retry, subscriptions...)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to create dispatch bus")
		}
	}

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	rdb := redis.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.Database)
	if err = rdb.Ping(ctx); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	repo := notifrepo.NewRepository(db)
	service := notifsvc.NewService(repo, dispatchBus, rdb)

	consumers := []*consumer.Consumer{
		consumer.New(
			dispatchBus, service,
			email.NewClient(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.Username, cfg.Email.Password, cfg.Email.From),
			model.ChannelEmail, cfg.Bus.EmailSubscription, cfg.Retry, cfg.Consumer.MaxInFlight,
		),
		consumer.New(
			dispatchBus, service,
			sms.NewClient(cfg.SMS.GatewayURL, cfg.SMS.APIKey, cfg.SMS.Sender),
			model.ChannelSMS, cfg.Bus.SMSSubscription, cfg.Retry, cfg.Consumer.MaxInFlight,
		),
		consumer.New(
			dispatchBus, service,
			push.NewClient(cfg.Push.GatewayURL, cfg.Push.APIKey),
			model.ChannelPush, cfg.Bus.PushSubscription, cfg.Retry, cfg.Consumer.MaxInFlight,
		),
	}

	for _, c := range consumers {
		go func(c *consumer.Consumer) {
			if err := c.Run(ctx); err != nil {
				zlog.Logger.Error().Err(err).Msg("consumer exited with error")
			}
		}(c)
	}

	sweeper := outbox.NewSweeper(repo, dispatchBus, cfg.Sweep.Every, cfg.Sweep.OlderThan, cfg.Sweep.BatchSize)
	if err := sweeper.Start(ctx); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to start reconciliation sweep")
	}

	dlqManager := deadletter.NewManager(dispatchBus)

	r := router.New(
		notifhandler.NewHandler(service, val, cfg),
		dlqhandler.NewHandler(dlqManager),
		analyticshandler.NewHandler(service),
	)
	s := server.New(cfg.Server.HTTPPort, r)

	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}

	sweeper.Stop()

	if err := db.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close master DB")
	}

	for i, slave := range db.Slaves {
		if err := slave.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msgf("failed to close slave DB %d", i)
		}
	}

	if conn != nil {
		if err := conn.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close RabbitMQ connection")
		}
	}
}
