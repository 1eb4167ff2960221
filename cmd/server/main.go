package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/vetconnect/vetconnect-server/internal/api"
	"github.com/vetconnect/vetconnect-server/internal/config"
	"github.com/vetconnect/vetconnect-server/internal/connections"
	"github.com/vetconnect/vetconnect-server/internal/database"
	"github.com/vetconnect/vetconnect-server/internal/messaging"
	"github.com/vetconnect/vetconnect-server/internal/notifications"
	"github.com/vetconnect/vetconnect-server/internal/realtime"
	"github.com/vetconnect/vetconnect-server/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

var (
	addr           string
	dsn            string
	signingKey     string
	migrationsDir  string
	allowedOrigins stringSliceFlag
)

func main() {
	// optional; real deployments set the environment directly
	_ = godotenv.Load()

	flag.StringVar(&addr, "addr", envOr("VETCONNECT_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&dsn, "dsn", envOr("VETCONNECT_DSN", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	flag.StringVar(&signingKey, "signing-key", os.Getenv("VETCONNECT_SIGNING_KEY"), "base64 encoded signing key")
	flag.StringVar(&migrationsDir, "migrations-dir", envOr("VETCONNECT_MIGRATIONS_DIR", ""), "directory of schema migrations to apply on startup")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		if origins := os.Getenv("VETCONNECT_ALLOWED_ORIGINS"); origins != "" {
			allowedOrigins = strings.Split(origins, ",")
		}
	}

	logger := log.New(os.Stderr, "[vetconnect] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins, migrationsDir)
	if err != nil {
		logger.Fatal("config: ", err)
	}

	repo, err := database.NewPgRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open: ", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	if cfg.MigrationsDir != "" {
		if err := repo.Migrate(cfg.MigrationsDir); err != nil {
			logger.Fatal("migrate: ", err)
		}
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	hub := realtime.NewHub(logger, statsUpdater)
	notifier := notifications.NewNotifier(logger, repo, hub, statsUpdater)
	connSvc := connections.NewService(logger, repo, notifier, hub, statsUpdater)
	msgSvc := messaging.NewService(logger, repo, notifier, hub, statsUpdater)
	hub.SetAuthorizer(msgSvc)

	srv := api.NewVetConnectApp(mux, logger, hub, repo, connSvc, msgSvc, notifier, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go hub.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down hub...")
	if err := hub.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("hub shutdown:", err)
	}

	logger.Println("shutdown complete")
}
