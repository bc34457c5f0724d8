package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fekuna/omnipos-benefits-service/config"
	"github.com/fekuna/omnipos-benefits-service/internal/alternative"
	catalogRepoPkg "github.com/fekuna/omnipos-benefits-service/internal/catalog/repository"
	"github.com/fekuna/omnipos-benefits-service/internal/categorizer"
	"github.com/fekuna/omnipos-benefits-service/internal/eligibility"
	ledgerH "github.com/fekuna/omnipos-benefits-service/internal/ledger/handler"
	ledgerListenerPkg "github.com/fekuna/omnipos-benefits-service/internal/ledger/listener"
	ledgerRepoPkg "github.com/fekuna/omnipos-benefits-service/internal/ledger/repository"
	ledgerUCPkg "github.com/fekuna/omnipos-benefits-service/internal/ledger/usecase"
	"github.com/fekuna/omnipos-benefits-service/internal/metrics"
	"github.com/fekuna/omnipos-benefits-service/internal/migrations"
	nutritionClient "github.com/fekuna/omnipos-benefits-service/internal/nutrition/client"
	scanH "github.com/fekuna/omnipos-benefits-service/internal/scan/handler"
	scanUCPkg "github.com/fekuna/omnipos-benefits-service/internal/scan/usecase"
	"github.com/fekuna/omnipos-benefits-service/pkg/broker"
	"github.com/fekuna/omnipos-benefits-service/pkg/cache"
	"github.com/fekuna/omnipos-benefits-service/pkg/database/postgres"
	"github.com/fekuna/omnipos-benefits-service/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}

	if cfg.Server.AppEnv == "development" || cfg.Server.AppEnv == "dev" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
		logConfig.Level = "debug"
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Connect to Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	if cfg.Postgres.RunMigrations {
		if err := migrations.Apply(ctx, db.DB); err != nil {
			appLogger.Fatal("Could not apply migrations", zap.Error(err))
		}
		appLogger.Info("Database schema up to date")
	}

	// 4. Initialize Repositories
	catalogRepo := catalogRepoPkg.NewPGRepository(db)
	ledgerRepo := ledgerRepoPkg.NewPGRepository(db)

	// 5. Metrics
	appMetrics := metrics.New()
	metricsServer := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           appMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Metrics server stopped", zap.Error(err))
		}
	}()
	appLogger.Info("Serving metrics", zap.String("addr", cfg.Metrics.Addr))

	// 6. Initialize UseCases
	offClient := nutritionClient.NewOpenFoodFactsClient(nutritionClient.Config{
		BaseURL:       cfg.Nutrition.BaseURL,
		UserAgent:     cfg.Nutrition.UserAgent,
		Timeout:       cfg.Nutrition.Timeout,
		RatePerSecond: cfg.Nutrition.RatePerSecond,
		Burst:         cfg.Nutrition.Burst,
	})
	rules := eligibility.RuleSetFromConfig(cfg.Eligibility)

	scanUC := scanUCPkg.NewScanUseCase(scanUCPkg.Deps{
		Catalog:         catalogRepo,
		External:        offClient,
		Categorizer:     categorizer.NewDefault(),
		Rules:           eligibility.NewEngine(rules),
		Alternatives:    alternative.NewEngine(catalogRepo, rules),
		Logger:          appLogger,
		ExternalTimeout: cfg.Nutrition.ScanTimeout,
		Recorder:        appMetrics,
	})

	policy, err := ledgerUCPkg.ParsePolicy(cfg.Ledger.NegativePolicy)
	if err != nil {
		appLogger.Fatal("Invalid ledger configuration", zap.Error(err))
	}
	ledgerUC := ledgerUCPkg.NewLedgerUseCase(ledgerRepo, appLogger, ledgerUCPkg.Options{
		Policy:       policy,
		MaxRetries:   cfg.Ledger.MaxRetries,
		RetryBackoff: cfg.Ledger.RetryBackoff,
		Recorder:     appMetrics,
	})

	// 7. Checkout listener
	if cfg.Kafka.Enabled {
		var guard ledgerListenerPkg.Guard
		redisClient, err := cache.NewRedisClient(&cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			appLogger.Warn("Could not connect to Redis, event dedupe disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			guard = redisClient
			appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
		}

		kafkaConsumer := broker.NewConsumer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		})
		defer kafkaConsumer.Close()
		appLogger.Info("Connected to Kafka Consumer", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))

		hostname, _ := os.Hostname()
		checkoutListener := ledgerListenerPkg.NewCheckoutListener(kafkaConsumer, ledgerUC, guard, hostname, appLogger)
		go checkoutListener.Start(ctx)
	}

	// 8. Initialize Handlers
	scanHandler := scanH.NewScanHandler(scanUC, appLogger)
	ledgerHandler := ledgerH.NewLedgerHandler(ledgerUC, appLogger)

	// 9. Start gRPC Server
	port := cfg.Server.GRPCPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	lis, err := net.Listen("tcp", port)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(appMetrics.UnaryServerInterceptor()),
	)

	// Register Services
	scanH.RegisterEligibilityServiceServer(grpcServer, scanHandler)
	ledgerH.RegisterLedgerServiceServer(grpcServer, ledgerHandler)

	// Register Reflection
	reflection.Register(grpcServer)

	appLogger.Info("Starting gRPC server", zap.String("port", port))

	// Graceful Shutdown
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	cancel()
	grpcServer.GracefulStop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("Metrics server shutdown", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
