package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quicktix/quicktix/internal/adapters/crdb"
	"github.com/quicktix/quicktix/internal/adapters/gateway"
	mongoadapter "github.com/quicktix/quicktix/internal/adapters/mongo"
	"github.com/quicktix/quicktix/internal/booking"
	"github.com/quicktix/quicktix/internal/clock"
	"github.com/quicktix/quicktix/internal/config"
	"github.com/quicktix/quicktix/internal/observability"
	"github.com/quicktix/quicktix/internal/sweeper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("quicktix")
	catalog := booking.NewMongoCatalog(mongoadapter.NewCatalogRepository(mongoDB, logger))
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	// The sweeper only expires bookings; it never initiates payments or
	// issues tickets.
	svc := booking.NewService(repo, catalog, gateway.Disabled{}, audit, booking.NoopQR{}, clock.Real{}, logger)
	sw := sweeper.New(svc, cfg.ExpiryWindow, cfg.SweepInterval, clock.Real{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go sw.Run(ctx)
	logger.Info("sweeper started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	cancel()
	logger.Info("sweeper exiting")
}
