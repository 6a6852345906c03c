package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/peterbourgon/ff/v4/ffyaml"

	"github.com/zombor/warranty-tracker/internal/identity"
	"github.com/zombor/warranty-tracker/internal/scanning"
	"github.com/zombor/warranty-tracker/internal/server"
	"github.com/zombor/warranty-tracker/internal/warranty"
	"github.com/zombor/warranty-tracker/internal/workflow"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("warranty-tracker")
	var (
		port             = fs.IntLong("port", 8080, "HTTP server port")
		dbBackend        = fs.StringEnumLong("db-backend", "Device store: 'bolt' or 'postgres'", "bolt", "postgres")
		dbPath           = fs.StringLong("db", "warranty-tracker.db", "Bolt database file path")
		postgresDSN      = fs.StringLong("postgres-dsn", "", "PostgreSQL connection string (db-backend=postgres)")
		usersPath        = fs.StringLong("users-db", "warranty-accounts.db", "Account database file path")
		storagePath      = fs.StringLong("storage", "./bills", "Bill image storage directory")
		scannerType      = fs.StringEnumLong("scanner", "Extraction backend: 'gemini' or 'ollama'", "gemini", "ollama")
		geminiKey        = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel      = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL        = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel      = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl, llama3.2-vision)")
		extractTimeout   = fs.DurationLong("extract-timeout", 0, "Extraction timeout (default depends on the backend)")
		saveTimeout      = fs.DurationLong("save-timeout", workflow.DefaultSaveTimeout, "Save timeout")
		cameraURL        = fs.StringLong("camera-url", "", "Snapshot URL of a network camera (optional)")
		sessionSecret    = fs.StringLong("session-key", "", "Session signing key, at least 16 bytes (random per process if empty)")
		sessionTTL       = fs.DurationLong("session-ttl", 24*time.Hour, "Session lifetime")
		federatedSecrets = fs.StringLong("federated-secrets", "", "Federated sign-in secrets as provider=secret,provider=secret")
		workflowTTL      = fs.DurationLong("workflow-ttl", workflow.DefaultIdleTTL, "How long an untouched add-device workflow is kept")
		logFormat        = fs.StringEnumLong("log-format", "Log format: 'json', 'console' or 'text'", "json", "console", "text")
		logLevel         = fs.StringLong("log-level", "info", "Log level")
		_                = fs.StringLong("config", "", "YAML config file (optional)")
		showVersion      = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("WARRANTY_TRACKER"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ffyaml.Parse),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	syncLogs, err := setupLogging(*logFormat, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer syncLogs()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize device store
	slog.Info("Initializing database...", "backend", *dbBackend)
	var db warranty.DB
	switch *dbBackend {
	case "postgres":
		if *postgresDSN == "" {
			slog.Error("PostgreSQL DSN is required. Set --postgres-dsn or WARRANTY_TRACKER_POSTGRES_DSN")
			os.Exit(1)
		}
		if err := warranty.MigratePostgres(ctx, *postgresDSN); err != nil {
			slog.Error("Failed to migrate database", "error", err)
			os.Exit(1)
		}
		db, err = warranty.NewPostgresDB(ctx, *postgresDSN)
	default:
		db, err = warranty.NewBoltDB(*dbPath)
	}
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize extractor based on type
	var extractor scanning.Extractor
	switch *scannerType {
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini extractor...", "model", *geminiModel)
		extractor, err = scanning.NewGemini(apiKey, *geminiModel, *extractTimeout)
	case "ollama":
		slog.Info("Initializing Ollama extractor...", "url", *ollamaURL, "model", *ollamaModel)
		extractor, err = scanning.NewOllama(*ollamaURL, *ollamaModel, *extractTimeout)
	}
	if err != nil {
		slog.Error("Failed to initialize extractor", "type", *scannerType, "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := warranty.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize sign-in
	users, err := identity.NewBoltUserStore(*usersPath)
	if err != nil {
		slog.Error("Failed to initialize account database", "error", err)
		os.Exit(1)
	}
	defer users.Close()

	key, generated, err := sessionKey(*sessionSecret)
	if err != nil {
		slog.Error("Failed to prepare session key", "error", err)
		os.Exit(1)
	}
	if generated {
		slog.Warn("No session key configured; sessions will not survive a restart")
	}
	federated, err := parseFederatedSecrets(*federatedSecrets)
	if err != nil {
		slog.Error("Invalid federated secrets", "error", err)
		os.Exit(1)
	}
	auth, err := identity.NewProvider(users, identity.Config{
		SigningKey:       key,
		SessionTTL:       *sessionTTL,
		FederatedSecrets: federated,
	})
	if err != nil {
		slog.Error("Failed to initialize sign-in", "error", err)
		os.Exit(1)
	}

	// Initialize services
	devices := warranty.NewService(db, store)
	workflows := workflow.NewRegistry(*workflowTTL, func() *workflow.Controller {
		return workflow.NewController(extractor, devices, *saveTimeout)
	})

	srv := server.NewServer(devices, auth, workflows)
	if *cameraURL != "" {
		url := *cameraURL
		srv.WithCamera(func() workflow.ImageSource {
			return workflow.NewSnapshotCamera(url, 0)
		})
		slog.Info("Network camera enabled", "url", url)
	}

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if err := srv.Start(ctx, addr); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	slog.Info("Shutting down...")
}
