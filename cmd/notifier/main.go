package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/quicktix/quicktix/internal/adapters/rabbit"
	"github.com/quicktix/quicktix/internal/config"
	"github.com/quicktix/quicktix/internal/notify"
	"github.com/quicktix/quicktix/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := observability.NewLogger()

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()

	consumer, err := rabbit.NewConsumer(rabbitConn, "quicktix.notifications", "booking.*")
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	worker := notify.NewWorker(consumer, notify.LogSender{Logger: logger}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	logger.Info("notifier started")
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("notifier stopped: %v", err)
	}
	logger.Info("notifier exiting")
}
