package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quicktix/quicktix/internal/adapters/crdb"
	"github.com/quicktix/quicktix/internal/adapters/gateway"
	mongoadapter "github.com/quicktix/quicktix/internal/adapters/mongo"
	redisadapter "github.com/quicktix/quicktix/internal/adapters/redis"
	"github.com/quicktix/quicktix/internal/booking"
	"github.com/quicktix/quicktix/internal/clock"
	"github.com/quicktix/quicktix/internal/config"
	httphandler "github.com/quicktix/quicktix/internal/http"
	"github.com/quicktix/quicktix/internal/idempotency"
	"github.com/quicktix/quicktix/internal/observability"
	"github.com/quicktix/quicktix/internal/rateLimit"
	"github.com/quicktix/quicktix/internal/webhook"
	redisclient "github.com/redis/go-redis/v9"
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
	if err := repo.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("quicktix")
	catalog := booking.NewMongoCatalog(mongoadapter.NewCatalogRepository(mongoDB, logger))
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), cfg.IdempotencyTTL)
	rl := rateLimit.NewRateLimiter(redisCache)

	gw := gateway.NewClient(gateway.Config{
		BaseURL:    cfg.GatewayBaseURL,
		APIKey:     cfg.GatewayAPIKey,
		HMACSecret: cfg.GatewayHMACSecret,
	}, logger)

	var paymentGateway booking.Gateway = gw
	if cfg.GatewayBaseURL == "" {
		paymentGateway = gateway.Disabled{}
	}

	qr := booking.NewSignedQR(cfg.GatewayHMACSecret, "https://tickets.quicktix.io")
	svc := booking.NewService(repo, catalog, paymentGateway, audit, qr, clock.Real{}, logger)
	reconciler := webhook.NewReconciler(gw, svc, audit, logger)

	handlers := httphandler.NewHandlers(svc, reconciler, repo, idemp, logger)
	r := httphandler.SetupRouter(handlers, logger, rl)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
