package main

import (
	"time"

	"slotbook/internal/identity"
	identityhandler "slotbook/internal/identity/handler"
	identityrepo "slotbook/internal/identity/repository"
	identityservice "slotbook/internal/identity/service"
	"slotbook/internal/liveview"
	"slotbook/internal/notifications"
	"slotbook/internal/reservations/handler"
	"slotbook/internal/reservations/repository"
	"slotbook/internal/reservations/service"
	"slotbook/internal/reservations/validator"
	"slotbook/internal/slots"
	"slotbook/internal/sms"
	"slotbook/pkg/app"
	"slotbook/pkg/clock"
	"slotbook/pkg/config"
	"slotbook/pkg/events"
	"slotbook/pkg/kafka"
	kafka_config "slotbook/pkg/kafka/config"
	kafka_middleware "slotbook/pkg/kafka/middleware"
)

const (
	ServiceName    = "reservations"
	publishTimeout = 10 * time.Second
)

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Reservations service")

	hours, err := slots.ParseHours(cfg.OpeningTime, cfg.ClosingTime, cfg.SlotDurationMin, cfg.BusinessTimeZone)
	if err != nil {
		cfg.Log.Fatal("Invalid business hours", "error", err)
	}

	serverApp := app.NewApplication(cfg)
	serverApp.OnShutdown(cfg.GracefulShutdown)

	store := initStore(cfg)
	if cfg.RedisURL != "" {
		cfg.SetRedis()
	}
	dispatcher := initDispatcher(cfg, serverApp)
	tokens := identity.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL, clock.Real())
	gate := identity.ContextGate{}

	lifecycle := service.NewLifecycleManager(
		store,
		validator.NewReservationValidator(cfg.Log),
		gate,
		dispatcher,
		hours,
		clock.Real(),
		cfg,
	)
	users := initUsers(cfg)
	liveViews := func() *liveview.Synchronizer {
		return liveview.New(store, hours, clock.Real(), cfg.Log, liveview.WithRefreshInterval(cfg.LiveViewRefreshInterval))
	}

	serverApp.SetApp(
		store,
		tokens,
		handler.NewReservationHandler(lifecycle, gate, liveViews, cfg.Log),
		identityhandler.NewAuthHandler(initVerifier(cfg, tokens, users), users, gate, cfg.Log),
	)
	serverApp.Run()
}

func initStore(cfg *config.Config) repository.ReservationStore {
	if cfg.StoreBackend == config.StoreBackendMemory {
		cfg.Log.Warn("Using in-memory reservation store; data is lost on restart")
		return repository.NewMemoryStore(clock.Real())
	}
	cfg.SetMongo()
	cfg.Log.Info("Reservation store initialized", "database", cfg.MongoDatabaseName)
	return repository.NewMongoReservationStore(cfg)
}

func initUsers(cfg *config.Config) identityrepo.UserRepository {
	if cfg.Client.Mongo != nil {
		return identityrepo.NewMongoUserRepository(cfg)
	}
	return identityrepo.NewMemoryUserRepository()
}

func initVerifier(cfg *config.Config, tokens *identity.TokenIssuer, users identityrepo.UserRepository) identityservice.Verifier {
	var challenges identityrepo.ChallengeStore
	if cfg.Client.Redis != nil {
		challenges = identityrepo.NewRedisChallengeStore(cfg.Client.Redis, clock.Real())
	} else {
		challenges = identityrepo.NewMemoryChallengeStore(clock.Real())
	}

	return identityservice.NewVerifier(challenges, users, initSender(cfg), tokens, clock.Real(), cfg)
}

func initSender(cfg *config.Config) sms.Sender {
	if cfg.SMSGatewayURL == "" {
		cfg.Log.Warn("No SMS gateway configured; verification codes are only logged")
		return sms.NewLogSender(cfg.Log)
	}
	return sms.NewEskizSender(sms.EskizConfig{
		BaseURL:  cfg.SMSGatewayURL,
		Email:    cfg.SMSGatewayEmail,
		Password: cfg.SMSGatewayPassword,
		SenderID: cfg.SMSSenderID,
	}, cfg.Log)
}

func initDispatcher(cfg *config.Config, serverApp *app.Application) notifications.Dispatcher {
	var publisher notifications.Publisher

	switch cfg.NotifyTransport {
	case config.TransportKafka:
		kafkaCfg, err := kafka_config.Load()
		if err != nil {
			cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
		}
		kafkaCfg.LogConfiguration(cfg.Log)

		producer, err := kafka.NewProducer(kafkaCfg, cfg.NotifyTopic, cfg.NotifyDLQTopic, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
		}
		metrics := kafka_middleware.NewMetrics()
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(metrics.ProducerMiddleware())
		serverApp.OnShutdown(func() {
			if err := producer.Close(); err != nil {
				cfg.Log.Error("Failed to close Kafka producer", "error", err)
			}
			cfg.Log.Info("Kafka producer closed", "metrics", metrics.Snapshot())
		})
		publisher = notifications.NewKafkaPublisher(producer, ServiceName)

	case config.TransportNATS:
		cfg.SetNATS()
		bus, err := events.NewNATSEventBus(cfg.Client.NATS, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create NATS event bus", "error", err)
		}
		publisher = notifications.NewNATSPublisher(bus)

	default:
		cfg.Log.Info("Status notifications disabled")
		return notifications.Nop{}
	}

	dispatcher := notifications.NewAsyncDispatcher(publisher, publishTimeout, cfg.Log)
	serverApp.OnShutdown(dispatcher.Close)
	cfg.Log.Info("Status notifications enabled", "transport", cfg.NotifyTransport)
	return dispatcher
}
