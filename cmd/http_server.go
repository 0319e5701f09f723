package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Lingeshemvigo/lms-backend/internal"
	"github.com/Lingeshemvigo/lms-backend/internal/auth"
	authpostgres "github.com/Lingeshemvigo/lms-backend/internal/auth/postgres"
	"github.com/Lingeshemvigo/lms-backend/internal/catalog"
	catalogpostgres "github.com/Lingeshemvigo/lms-backend/internal/catalog/postgres"
	"github.com/Lingeshemvigo/lms-backend/internal/core/events"
	"github.com/Lingeshemvigo/lms-backend/internal/enrollment"
	enrollmentpostgres "github.com/Lingeshemvigo/lms-backend/internal/enrollment/postgres"
	"github.com/Lingeshemvigo/lms-backend/internal/ledger"
	ledgerpostgres "github.com/Lingeshemvigo/lms-backend/internal/ledger/postgres"
	"github.com/Lingeshemvigo/lms-backend/internal/paymentgateway"
	"github.com/Lingeshemvigo/lms-backend/internal/reconcile"
	"github.com/Lingeshemvigo/lms-backend/internal/transport/rest"
	"github.com/Lingeshemvigo/lms-backend/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	GormDB *gorm.DB
	Router *chi.Mux
	Logger *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	if err := setupRoutes(deps); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up routes: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) error {
	cfg := deps.Config
	log := deps.Logger

	// Repositories
	userRepo := authpostgres.NewUserRepository(deps.GormDB)
	ledgerRepo := ledgerpostgres.NewLedgerRepository(deps.GormDB)
	enrollmentRepo := enrollmentpostgres.NewEnrollmentRepository(deps.GormDB)
	catalogRepo := catalogpostgres.NewCatalogRepository(deps.GormDB)

	// Services
	tokenGen := auth.NewJWTTokenGenerator(
		cfg.Security.AccessTokenSecret,
		cfg.Security.RefreshTokenSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(userRepo, tokenGen, cfg.Security.BCryptCost)
	ledgerService := ledger.NewService(ledgerRepo, log)
	enrollmentService := enrollment.NewService(enrollmentRepo, log)
	catalogService := catalog.NewService(catalogRepo, log)

	gatewayClient := paymentgateway.NewClient(paymentgateway.Config{
		APIURL:        cfg.Gateway.APIURL,
		APIKey:        cfg.Gateway.APIKey,
		VerifyTimeout: cfg.Gateway.VerifyTimeout,
	}, log)

	// Event bus wiring: enrollment creation bumps the catalog counters
	eventBus := events.NewEventBus(log)
	catalogEvents := catalog.NewEventHandler(catalogService, log)
	catalogEvents.RegisterEventHandlers(eventBus)

	coordinator := reconcile.NewCoordinator(
		ledgerService,
		enrollmentService,
		catalogService,
		gatewayClient,
		eventBus,
		log,
	)

	// Handlers
	authHandler := auth.NewHandler(authService)
	catalogHandler := catalog.NewHandler(catalogService, log)
	ledgerHandler := ledger.NewHandler(ledgerService, log)
	enrollmentHandler := enrollment.NewHandler(enrollmentService, log)
	reconcileHandler := reconcile.NewHandler(coordinator, log)
	webhookHandler := reconcile.NewWebhookHandler(coordinator, cfg.Gateway.WebhookSecret, log)

	rest.RegisterAllRoutes(deps.Router, deps.DB.DB, gatewayClient, authHandler, catalogHandler, ledgerHandler, enrollmentHandler, reconcileHandler, webhookHandler, log)

	return nil
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Level, config.Observability.Logging.Format)

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	router := chi.NewRouter()

	return &Dependencies{
		Config: config,
		Logger: logger.LoggerWrapper(),
		DB:     db,
		GormDB: gormDB,
		Router: router,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm wraps the existing connection pool; TranslateError turns driver
// unique-violation errors into gorm.ErrDuplicatedKey for the repositories.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(gormpostgres.New(gormpostgres.Config{
		Conn: db.DB,
	}), &gorm.Config{
		TranslateError: true,
	})
}
