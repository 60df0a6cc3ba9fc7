package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shortage-service/config"
	"shortage-service/internal/api"
	"shortage-service/internal/broker"
	"shortage-service/internal/redisclient"
	"shortage-service/internal/service"
	"shortage-service/internal/source"
	"shortage-service/internal/store"
	"shortage-service/internal/util"
	"shortage-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting shortage service")

	tp, err := util.InitTracer("shortage-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	if err := db.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicRefresh)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	stordClient := source.NewStordClient(cfg.Stord)
	shipbobClient := source.NewShipbobClient(cfg.Shipbob)

	refreshService := service.NewRefreshService(
		db,
		stordClient,
		shipbobClient,
		redisClient,
		eventPublisher,
		cfg.Refresh.LockTTL,
	)
	analyticsService := service.NewAnalyticsService(db)
	inventoryService := service.NewInventoryService(
		stordClient,
		shipbobClient,
		redisClient,
		cfg.Inventory.BatchSize,
		cfg.Inventory.Cooldown,
		cfg.Inventory.CacheTTL,
	)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	refreshConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicRefresh, cfg.Kafka.ConsumerGroup)
	refreshWorker := worker.NewRefreshWorker(refreshConsumer, refreshService)
	go func() {
		if err := refreshWorker.Start(workerCtx); err != nil {
			log.Printf("Refresh worker error: %v", err)
		}
	}()

	scheduler := worker.NewScheduler(eventPublisher, cfg.Refresh.Interval)
	go func() {
		if err := scheduler.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Scheduler error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(
		db,
		analyticsService,
		inventoryService,
		eventPublisher,
		stordClient,
		shipbobClient,
		cfg.Auth,
	)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	refreshWorker.Stop()

	log.Println("Server exited")
}
