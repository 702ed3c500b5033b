package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"slotbook/internal/notifications"
	"slotbook/internal/sms"
	"slotbook/pkg/config"
	"slotbook/pkg/events"
	"slotbook/pkg/kafka"
	kafka_config "slotbook/pkg/kafka/config"
	kafka_middleware "slotbook/pkg/kafka/middleware"
)

const ServiceName = "notifier"

func main() {
	cfg := config.Load(ServiceName)
	defer cfg.GracefulShutdown()
	cfg.Log.Info("Starting Notifier service", "transport", cfg.NotifyTransport)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker := notifications.NewWorker(initSender(cfg), cfg.Log)

	switch cfg.NotifyTransport {
	case config.TransportKafka:
		runKafka(ctx, cfg, worker)
	case config.TransportNATS:
		runNATS(ctx, cfg, worker)
	default:
		cfg.Log.Fatal("Notifier needs NOTIFY_TRANSPORT kafka or nats", "transport", cfg.NotifyTransport)
	}

	cfg.Log.Info("Notifier stopped")
}

func runKafka(ctx context.Context, cfg *config.Config, worker *notifications.Worker) {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	consumer, err := kafka.NewConsumer(kafkaCfg, cfg.NotifyTopic, cfg.NotifyGroupID, cfg.NotifyDLQTopic, worker.KafkaHandler(), cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	metrics := kafka_middleware.NewMetrics()
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(metrics.ConsumerMiddleware())

	err = consumer.Start(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, kafka.ErrConsumerClosed) {
		cfg.Log.Error("Kafka consumer stopped with error", "error", err)
	}
	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close Kafka consumer", "error", err)
	}
	cfg.Log.Info("Kafka consumer metrics", "metrics", metrics.Snapshot())
}

func runNATS(ctx context.Context, cfg *config.Config, worker *notifications.Worker) {
	cfg.SetNATS()
	bus, err := events.NewNATSEventBus(cfg.Client.NATS, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create NATS event bus", "error", err)
	}

	if err := bus.QueueSubscribe(events.ReservationStatusChanged, cfg.NotifyGroupID, worker.NATSHandler(ctx)); err != nil {
		cfg.Log.Fatal("Failed to subscribe to status events", "error", err)
	}
	cfg.Log.Info("Subscribed to status events", "subject", events.ReservationStatusChanged, "queue", cfg.NotifyGroupID)

	<-ctx.Done()
	if err := bus.Close(); err != nil {
		cfg.Log.Error("Failed to close NATS subscriptions", "error", err)
	}
}

func initSender(cfg *config.Config) sms.Sender {
	if cfg.SMSGatewayURL == "" {
		cfg.Log.Warn("No SMS gateway configured; messages are only logged")
		return sms.NewLogSender(cfg.Log)
	}
	return sms.NewEskizSender(sms.EskizConfig{
		BaseURL:  cfg.SMSGatewayURL,
		Email:    cfg.SMSGatewayEmail,
		Password: cfg.SMSGatewayPassword,
		SenderID: cfg.SMSSenderID,
	}, cfg.Log)
}
