package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/marketplace/internal/adapter/handler"
	"github.com/rl1809/marketplace/internal/adapter/messaging"
	"github.com/rl1809/marketplace/internal/adapter/storage"
	"github.com/rl1809/marketplace/internal/config"
	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/host"
	"github.com/rl1809/marketplace/internal/core/service"
	"github.com/rl1809/marketplace/internal/platform/observability"
	"github.com/rl1809/marketplace/internal/port"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Telemetry goes first so the logger can tee into it
	var shutdowns []observability.ShutdownFunc
	opts := []host.Option{}
	if cfg.TelemetryEnabled() {
		shutdownLogs, err := observability.SetupLoggingSDK(ctx, cfg)
		if err != nil {
			log.Fatalf("failed to set up logging sdk: %v", err)
		}
		tp, shutdownTraces, err := observability.SetupTracingSDK(ctx, cfg)
		if err != nil {
			log.Fatalf("failed to set up tracing sdk: %v", err)
		}
		shutdowns = append(shutdowns, shutdownTraces, shutdownLogs)
		opts = append(opts, host.WithTracer(tp.Tracer(config.ServiceName)))
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.TelemetryEnabled())
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to connect mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.Migrate(ctx); err != nil {
		logger.Fatal("failed to migrate mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	redisAdapter := storage.NewRedisAdapter(rdb)
	logger.Info("connected to redis")

	// Kafka when brokers are configured, the Redis stream otherwise
	var publisher port.EventPublisher = redisAdapter
	var kafkaPublisher *messaging.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher = messaging.NewKafkaPublisher(messaging.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		publisher = kafkaPublisher
		logger.Info("publishing events to kafka",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
		)
	}

	// Initialize service
	opts = append(opts, host.WithPayer(mysqlAdapter), host.WithLogger(logger))
	marketService, err := service.NewMarketService(service.Config{
		Admin:        domain.Account(cfg.Admin),
		Fees:         cfg.Fees(),
		CancelWindow: cfg.CancelWindow,
		QueueSize:    cfg.QueueSize,
	}, redisAdapter, logger, opts...)
	if err != nil {
		logger.Fatal("failed to deploy marketplace", zap.Error(err))
	}

	// Start projector workers
	projector := service.NewProjector(mysqlAdapter, redisAdapter, publisher, logger)
	wg := projector.Start(cfg.WorkerCount, marketService.GetEventQueue())

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterMarketServiceServer(grpcServer, handler.NewGRPCHandler(marketService, logger))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	mux := http.NewServeMux()
	handler.NewHTTPHandler(marketService, logger).Register(mux)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Close event queue and wait for workers
	marketService.Close()
	wg.Wait()
	logger.Info("workers stopped", zap.Uint64("dropped_batches", marketService.Dropped()))

	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Warn("kafka close", zap.Error(err))
		}
	}
	rdb.Close()
	db.Close()
	logger.Info("connections closed")

	for _, shutdown := range shutdowns {
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}
}
