package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/zombor/expense-snap/internal/expense"
	"github.com/zombor/expense-snap/internal/extraction"
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

	// A .env file is optional; real environment variables win either way
	_ = godotenv.Load()

	fs := ff.NewFlagSet("expense-snap")
	var (
		port          = fs.IntLong("port", 3001, "HTTP server port")
		dbPath        = fs.StringLong("db", "expense-snap.db", "Expense database file path")
		maxFileSize   = fs.IntLong("max-file-size", expense.DefaultMaxFileSize, "Maximum upload size in bytes")
		corsOrigin    = fs.StringLong("cors-origin", "", "Allowed CORS origin (default: any origin)")
		environment   = fs.StringLong("environment", "development", "Deployment environment; 'production' serves the embedded frontend")
		extractorType = fs.StringLong("extractor", "openai", "Extractor type: 'openai' or 'gemini'")
		openaiKey     = fs.StringLong("openai-api-key", "", "OpenAI API key")
		openaiModel   = fs.StringLong("openai-model", "gpt-4o-mini", "OpenAI vision model name")
		geminiKey     = fs.StringLong("gemini-api-key", "", "Google Gemini API key")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	// WithEnvVars maps each flag to its bare env var name (PORT,
	// MAX_FILE_SIZE, CORS_ORIGIN, OPENAI_API_KEY, ...)
	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVars(),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize expense store
	slog.Info("Initializing expense store...")
	store, err := expense.NewBoltStore(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize expense store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Initialize extractor based on type
	var extractor extraction.Extractor
	switch *extractorType {
	case "openai":
		if *openaiKey == "" {
			slog.Error("OpenAI API key is required. Set --openai-api-key flag or OPENAI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing OpenAI extractor...", "model", *openaiModel)
		extractor, err = extraction.NewOpenAI(*openaiKey, *openaiModel)
		if err != nil {
			slog.Error("Failed to initialize OpenAI", "error", err)
			os.Exit(1)
		}
	case "gemini":
		if *geminiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-api-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini extractor...", "model", *geminiModel)
		extractor, err = extraction.NewGemini(*geminiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid extractor type", "type", *extractorType, "valid", "openai or gemini")
		os.Exit(1)
	}
	defer extractor.Close()

	// Initialize service and server
	service := expense.NewService(store, extractor)
	server := expense.NewServer(service, expense.Config{
		MaxFileSize: int64(*maxFileSize),
		CORSOrigin:  *corsOrigin,
		Environment: *environment,
	})

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started",
		"address", fmt.Sprintf("http://localhost%s", addr),
		"environment", *environment,
		"extractor", *extractorType,
		"max_file_size", *maxFileSize,
	)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
