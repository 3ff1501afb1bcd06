package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/erazemk/manutencao/internal/api"
	"github.com/erazemk/manutencao/internal/auth"
	"github.com/erazemk/manutencao/internal/config"
	"github.com/erazemk/manutencao/internal/db"
	"github.com/erazemk/manutencao/internal/metrics"
	"github.com/erazemk/manutencao/internal/model"
	"github.com/erazemk/manutencao/internal/notify"
	"github.com/erazemk/manutencao/internal/store"
	"github.com/erazemk/manutencao/internal/web"
)

// tokenPurgeInterval is how often expired revocations are dropped.
const tokenPurgeInterval = time.Hour

func main() {
	fs := pflag.NewFlagSet("manutencao", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", "manutencao.yaml", "YAML config file")
	envFile := fs.String("env-file", ".env", "file with MANUTENCAO_* variables")
	config.RegisterFlags(fs)
	fs.Usage = func() {
		fmt.Fprint(os.Stdout, "Usage: manutencao [flags]\n\nFlags:\n")
		fs.SetOutput(os.Stdout)
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := loadConfig(fs, *configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := setupLogger(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// loadConfig resolves defaults, the config file, the environment (with
// .env) and finally the flags the user set.
func loadConfig(fs *pflag.FlagSet, configPath, envFile string) (config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(configPath, fs.Changed("config"))
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.ApplyFlags(fs); err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(cfg config.Config) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Check if DB exists, auto-init if not.
	if _, err := os.Stat(cfg.Database); os.IsNotExist(err) {
		database, password, err := initDatabase(cfg.Database, cfg.Supervisor)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		database.Close()

		printInitResult(cfg.Database, cfg.Supervisor, password)
		fmt.Println()
	}

	database, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	// Ensure schema exists and legacy columns are migrated (idempotent).
	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("ensuring database schema: %w", err)
	}
	slog.Info("database ready", "path", cfg.Database)

	jwtSecret, err := store.GetJWTSecret(context.Background(), database)
	if err != nil {
		return fmt.Errorf("getting JWT secret: %w", err)
	}

	events := openEvents(cfg)
	defer events.Close()

	apiRouter := api.NewRouter(database, jwtSecret, events)
	webRouter, err := web.NewRouter(database, jwtSecret, events, loc)
	if err != nil {
		return fmt.Errorf("setting up web router: %w", err)
	}

	// Combine: API routes take priority, web routes handle the rest.
	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, metrics.Handler())
		slog.Info("metrics enabled", "path", cfg.Metrics.Path)
	}
	mux.Handle("/", webRouter)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go purgeTokens(ctx, database)

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	slog.Info("server stopped, closing database")
	return nil
}

// openEvents connects to the MQTT broker when one is configured. A broker
// that cannot be reached only disables status events.
func openEvents(cfg config.Config) notify.Publisher {
	if cfg.MQTT.Broker == "" {
		return notify.Nop{}
	}

	publisher, err := notify.DialMQTT(notify.MQTTOptions{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		TopicPrefix: cfg.MQTT.Topic,
		QoS:         cfg.MQTT.QoS,
		Timeout:     cfg.MQTT.Timeout,
	})
	if err != nil {
		slog.Warn("status events disabled: cannot reach MQTT broker", "broker", cfg.MQTT.Broker, "error", err)
		return notify.Nop{}
	}
	slog.Info("publishing status events", "broker", cfg.MQTT.Broker, "topic", cfg.MQTT.Topic)
	return publisher
}

func purgeTokens(ctx context.Context, database *sql.DB) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.PurgeExpiredTokens(ctx, database, now)
			if err != nil {
				slog.Error("failed to purge revoked tokens", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purged revoked tokens", "count", n)
			}
		}
	}
}

// initDatabase creates a new database, ensures the schema, and creates the
// first supervisor with a generated password.
func initDatabase(path, login string) (*sql.DB, string, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}

	fail := func(step string, err error) (*sql.DB, string, error) {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("%s: %w", step, err)
	}

	if err := db.EnsureSchema(database); err != nil {
		return fail("ensuring schema", err)
	}

	password, err := generatePassword(16)
	if err != nil {
		return fail("generating password", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fail("hashing password", err)
	}

	_, err = store.CreateUser(context.Background(), database, model.User{
		Login:        login,
		Name:         "Encarregado",
		Role:         model.RoleSupervisor,
		PasswordHash: hash,
	})
	if err != nil {
		return fail("creating supervisor", err)
	}

	return database, password, nil
}

// printInitResult prints the database initialization result to stdout.
func printInitResult(dbPath, login, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println("Schema initialized.")
	fmt.Println()
	fmt.Println("Supervisor account created:")
	fmt.Printf("  Login:    %s\n", login)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("Add operators and other supervisors on the users page after logging in.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
