package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpcadapter "github.com/simaogato/equityflow-backend/internal/adapter/grpc"
	"github.com/simaogato/equityflow-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/equityflow-backend/internal/adapter/repository/sqlite"
	"github.com/simaogato/equityflow-backend/internal/adapter/rest"
	"github.com/simaogato/equityflow-backend/internal/auth"
	"github.com/simaogato/equityflow-backend/internal/config"
	"github.com/simaogato/equityflow-backend/internal/domain"
	"github.com/simaogato/equityflow-backend/internal/scheduler"
	"github.com/simaogato/equityflow-backend/internal/usecase/dashboard"
	"github.com/simaogato/equityflow-backend/internal/usecase/financing"
	"github.com/simaogato/equityflow-backend/internal/usecase/seeder"
)

type repositories struct {
	schedules domain.ScheduleRepository
	ledgers   domain.LedgerRepository
	payments  domain.PaymentRepository
	close     func() error
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	// 1. Setup Logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// 2. Load Configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize Repositories
	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to open %s database: %v", cfg.Database.Driver, err)
	}
	defer repos.close()
	logger.WithField("driver", cfg.Database.Driver).Info("database ready")

	// 4. Initialize Services (Use Cases)
	financingService := financing.NewFinancingService(repos.schedules, repos.ledgers, repos.payments, logger)
	dashboardService := dashboard.NewDashboardService(repos.schedules, repos.ledgers)

	if cfg.SeedDemo {
		if err := seeder.NewDemoSeeder(repos.schedules).Seed(ctx); err != nil {
			logger.Fatalf("Failed to seed demo schedule: %v", err)
		}
		logger.WithField("schedule_id", seeder.DEMO_REFERENCE_SCHEDULE).Info("demo schedule seeded")
	}

	// 5. Start Back-office Jobs
	jobs := scheduler.NewScheduler(ctx, financingService, dashboardService, logger)
	if err := jobs.RegisterAll(cfg.Schedule.ReconcileCron, cfg.Schedule.ReportCron); err != nil {
		logger.Fatalf("Failed to register jobs: %v", err)
	}
	jobs.RunReconcileNow()
	jobs.Start()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret)

	// 6. Start gRPC Server
	grpcServer := grpclib.NewServer(
		grpclib.ChainUnaryInterceptor(
			grpcadapter.LoggingInterceptor(logger),
			grpcadapter.AuthInterceptor(tokens),
		),
	)
	grpcadapter.RegisterFinancingServiceServer(grpcServer, grpcadapter.NewServer(financingService, dashboardService))
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Fatalf("Failed to listen on %s: %v", cfg.Server.GRPCAddr, err)
	}
	go func() {
		logger.Infof("gRPC server listening on %s", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatalf("Failed to serve gRPC server: %v", err)
		}
	}()

	// 7. Start HTTP Server (JSON API and payment webhook)
	handler := rest.NewHandler(financingService, dashboardService, logger)
	httpServer := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      rest.NewRouter(handler, tokens, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("HTTP server listening on %s", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Graceful shutdown
	waitForShutdown(logger, grpcServer, httpServer, jobs)
}

func openRepositories(ctx context.Context, cfg *config.Config) (*repositories, error) {
	if cfg.Database.Driver == config.DriverSQLite {
		db, err := sqlite.Open(cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &repositories{
			schedules: sqlite.NewScheduleRepository(db),
			ledgers:   sqlite.NewLedgerRepository(db),
			payments:  sqlite.NewPaymentRepository(db),
			close:     db.Close,
		}, nil
	}

	db, err := postgres.NewDB(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &repositories{
		schedules: postgres.NewScheduleRepository(db),
		ledgers:   postgres.NewLedgerRepository(db),
		payments:  postgres.NewPaymentRepository(db),
		close:     db.Close,
	}, nil
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the servers
func waitForShutdown(logger *logrus.Logger, grpcServer *grpclib.Server, httpServer *http.Server, jobs *scheduler.Scheduler) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.Infof("Received signal: %v. Shutting down gracefully...", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown incomplete")
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	jobs.Stop()
}
