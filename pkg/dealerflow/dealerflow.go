package dealerflow

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dealerflow/dealerflow/internal/config"
	"github.com/dealerflow/dealerflow/internal/controllers"
	"github.com/dealerflow/dealerflow/internal/engine"
	"github.com/dealerflow/dealerflow/internal/gateways"
	"github.com/dealerflow/dealerflow/internal/migrations"
	"github.com/dealerflow/dealerflow/internal/repository"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/core"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lmittmann/tint"
	"golang.org/x/crypto/bcrypt"

	_ "github.com/go-sql-driver/mysql"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ActionHandlerRegistry lets embedders register extra action handlers (or
// replace the stock "custom" handler) before calling Start.
var ActionHandlerRegistry = map[string]engine.ActionHandler{}

// Start boots the workflow engine and HTTP server.
// This call blocks until the HTTP server stops.
func Start(mux *http.ServeMux) error {

	databaseType := config.GetSystemSettingString(config.DATABASE_TYPE)
	if databaseType == "" || (databaseType != config.DATABASE_TYPE_POSTGRES && databaseType != config.DATABASE_TYPE_MYSQL && databaseType != config.DATABASE_TYPE_SQLLITE) {
		panic("DFLOW_DATABASE_TYPE must be set to one of the following values: POSTGRES, MYSQL, SQLLITE")
	}

	var db *sql.DB
	if databaseType == config.DATABASE_TYPE_POSTGRES {
		db = setupPostgresDatabase()
		defer db.Close()
	}
	if databaseType == config.DATABASE_TYPE_SQLLITE {
		db = setupSqlLiteDatabase()
		defer db.Close()
	}
	if databaseType == config.DATABASE_TYPE_MYSQL {
		db = setupMysqlDatabase()
		defer db.Close()
	}

	clock := core.NewRealClock()
	workflowRepo := repository.NewWorkflowRepository(db, clock)
	executionRepo := repository.NewExecutionRepository(db, clock)
	continuationRepo := repository.NewContinuationRepository(db, clock)
	engineRepo := repository.NewEngineRepository(db, clock)
	recordRepo := repository.NewRecordRepository(db, clock)
	userRepo := repository.NewUserRepository(db, clock)

	bootstrapAdminUser(userRepo)

	gateway := setupMessagingGateway()

	dispatcher := engine.NewActionDispatcher(actionTimeoutSetting())
	evaluator := engine.NewEvaluator()
	ledger := engine.NewExecutionLedger(executionRepo, workflowRepo, clock)
	scheduler := engine.NewExecutionScheduler(ledger, dispatcher, workflowRepo, executionRepo, continuationRepo, evaluator, clock)

	handlers := engine.NewBuiltinHandlers(recordRepo, gateway, scheduler, clock,
		config.GetSystemSettingInteger(config.ENGINE_MAX_CHAIN_DEPTH))
	handlers.RegisterAll(dispatcher)
	for actionType, handler := range ActionHandlerRegistry {
		dispatcher.Register(actionType, handler)
	}

	router := engine.NewTriggerRouter(workflowRepo, scheduler, evaluator)
	manager := engine.NewEngineManager(router, scheduler, continuationRepo, engineRepo, clock)

	go manager.StartEngine(context.Background())

	if mux == nil {
		mux = http.NewServeMux()
	}
	authController := controllers.NewAuthController(userRepo)
	authController.RegisterRoutes(mux)
	eventsController := controllers.NewEventsController(manager, userRepo)
	eventsController.RegisterRoutes(mux)
	workflowsController := controllers.NewWorkflowsController(workflowRepo, userRepo)
	workflowsController.RegisterRoutes(mux)
	executionsController := controllers.NewExecutionsController(executionRepo, userRepo)
	executionsController.RegisterRoutes(mux)
	enginesController := controllers.NewEnginesController(engineRepo, userRepo)
	enginesController.RegisterRoutes(mux)
	usersController := controllers.NewUsersController(userRepo)
	usersController.RegisterRoutes(mux)

	addr := ":" + config.GetSystemSettingString(config.ENGINE_SERVER_WEB_PORT)
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		addr = v
	}
	slog.Info("Starting HTTP server", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("HTTP server failed", "error", err)
		return err
	}
	return nil
}

// bootstrapAdminUser creates the first user on an empty database so the API
// is reachable. The generated password is logged once, change it after the
// first login.
func bootstrapAdminUser(userRepo *repository.UserRepository) {
	count, err := userRepo.CountUsers()
	if err != nil {
		slog.Error("Failed to count users", "error", err)
		return
	}
	if count > 0 {
		return
	}
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		slog.Error("rand.Read failed", "error", err)
		return
	}
	password := hex.EncodeToString(buf)
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("Failed to hash bootstrap password", "error", err)
		return
	}
	keyBuf := make([]byte, 32)
	if _, err := rand.Read(keyBuf); err != nil {
		slog.Error("rand.Read failed", "error", err)
		return
	}
	apiKey := hex.EncodeToString(keyBuf)
	admin := &domain.User{
		Username: "admin",
		Password: string(hashed),
		ApiKey:   sql.NullString{String: apiKey, Valid: true},
		Enabled:  sql.NullBool{Bool: true, Valid: true},
	}
	if _, err := userRepo.Save(admin); err != nil {
		slog.Error("Failed to create bootstrap admin user", "error", err)
		return
	}
	slog.Warn("Created bootstrap admin user", "username", "admin", "password", password, "apiKey", apiKey)
}

// actionTimeoutSetting parses DFLOW_ENGINE_ACTION_TIMEOUT. A zero or broken
// value would time every action out instantly, so fall back to 30s instead.
func actionTimeoutSetting() time.Duration {
	raw := config.GetSystemSettingString(config.ENGINE_ACTION_TIMEOUT)
	timeout, err := time.ParseDuration(raw)
	if err != nil || timeout <= 0 {
		slog.Warn("Invalid action timeout, using default", "value", raw, "default", "30s")
		return 30 * time.Second
	}
	return timeout
}

func setupMessagingGateway() engine.MessagingGateway {
	amqpURL := config.GetSystemSettingString(config.AMQP_URL)
	if amqpURL == "" {
		slog.Info("No AMQP url configured, outbound messages will be logged only")
		return gateways.NewLogGateway()
	}
	exchange := config.GetSystemSettingString(config.AMQP_EXCHANGE)
	gateway, err := gateways.NewAmqpGateway(amqpURL, exchange)
	if err != nil {
		slog.Error("AMQP connection failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Using AMQP messaging gateway", "exchange", exchange)
	return gateway
}

func setupPostgresDatabase() *sql.DB {
	dbURL := config.GetSystemSettingString(config.DATABASE_URL)
	if dbURL == "" {
		panic("DFLOW_DATABASE_URL must be set when using the POSTGRES database type")
	}
	slog.Info("Using Postgres database", "url", dbURL)
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("postgres", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening Postgres database")
	dbPostgres, err := sql.Open("postgres", dbURL)
	if err != nil {
		slog.Error("DB connection failed", "error", err)
		os.Exit(1)
	}
	return dbPostgres
}

func setupSqlLiteDatabase() *sql.DB {
	fileName := config.GetSystemSettingString(config.DATABASE_SQLLITE_FILE_NAME)
	if fileName == "" {
		panic("DFLOW_DATABASE_SQLLITE_FILE_NAME must be set")
	}
	dbURL := "sqlite3://" + fileName
	slog.Info("Using SQLite database", "file", fileName)
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("sqllite3", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening SQLite database")
	dbSqlLite, err := sql.Open("sqlite3", fileName)
	if err != nil {
		log.Fatalf("Failed to open SQLite DB: %v", err)
	}
	if err := dbSqlLite.Ping(); err != nil {
		log.Fatalf("Failed to ping SQLite DB: %v", err)
	}
	return dbSqlLite
}

func setupMysqlDatabase() *sql.DB {
	dbURL := config.GetSystemSettingString(config.DATABASE_URL)
	if dbURL == "" {
		panic("DFLOW_DATABASE_URL must be set when using the MYSQL database type")
	}
	if !strings.Contains(dbURL, "parseTime=true") {
		panic("DFLOW_DATABASE_URL must contain 'parseTime=true' for MySQL")
	}
	if !strings.HasPrefix(dbURL, "mysql://") {
		panic("DFLOW_DATABASE_URL must start with 'mysql://' for MySQL")
	}

	slog.Info("Using MySQL database", "url", dbURL)
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("mysql", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening MySQL database")
	dbMysql, err := sql.Open("mysql", strings.Replace(dbURL, "mysql://", "", 1))
	if err != nil {
		slog.Error("DB connection failed", "error", err)
		os.Exit(1)
	}
	return dbMysql
}

func runMigrationsFromEmbed(migrationsPath string, dbURL string) error {
	sub, err := fs.Sub(migrations.FS, migrationsPath)
	if err != nil {
		return err
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func SetupLogger() {
	w := os.Stderr
	slog.SetDefault(slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.RFC3339Nano,
		}),
	))
}
