package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/applyflow/internal/config"
	"github.com/jonathan/applyflow/internal/db"
	"github.com/jonathan/applyflow/internal/entitlement"
	"github.com/jonathan/applyflow/internal/fetch"
	"github.com/jonathan/applyflow/internal/generation"
	"github.com/jonathan/applyflow/internal/ingestion"
	"github.com/jonathan/applyflow/internal/lifecycle"
	"github.com/jonathan/applyflow/internal/llm"
	"github.com/jonathan/applyflow/internal/server"
)

var (
	serveConfigPath string
	serveHost       string
	servePort       int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes REST endpoints for job ingestion, application tracking, and document generation.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to JSON config file")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind address (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

// defaultConfig holds built-in fallbacks applied under any config file.
func defaultConfig() config.Config {
	return config.Config{
		Host:                "0.0.0.0",
		Port:                8080,
		FetchTimeoutSecs:    20,
		IngestTimeoutSecs:   120,
		GenerateTimeoutSecs: 60,
	}
}

// loadConfig resolves the effective configuration from file, flags, and env.
func loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if serveConfigPath != "" {
		loaded, err := config.LoadConfig(serveConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	merged := cfg.MergeWithDefaults(defaultConfig())
	cfg = &merged

	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.DatabaseURL = url
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.APIKey = key
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// buildServices wires the domain services against the database and model client.
func buildServices(cfg *config.Config, database *db.DB, llmClient llm.Client) (server.Services, error) {
	fetchTimeout := time.Duration(cfg.FetchTimeoutSecs) * time.Second

	scraper := fetch.NewScraper(&fetch.Options{
		Timeout:    fetchTimeout,
		UseBrowser: cfg.UseBrowser,
	})

	ingestSvc := ingestion.NewService(database, scraper, ingestion.NewLLMExtractor(llmClient), ingestion.Options{
		ScrapeTimeout: fetchTimeout,
		Verbose:       cfg.Verbose,
	})

	entitlements, err := config.NewEntitlementsConfig()
	if err != nil {
		return server.Services{}, fmt.Errorf("failed to load entitlements config: %w", err)
	}
	evaluator := entitlement.NewEvaluator(entitlements)

	orchestrator := generation.NewOrchestrator(database, generation.NewLLMGenerator(llmClient), evaluator, generation.Options{
		GenerateTimeout: time.Duration(cfg.GenerateTimeoutSecs) * time.Second,
	})

	return server.Services{
		Jobs:         ingestSvc,
		Applications: lifecycle.NewService(database),
		Artifacts:    orchestrator,
	}, nil
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	llmClient, err := llm.NewClient(ctx, nil, cfg.APIKey)
	if err != nil {
		database.Close()
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer llmClient.Close()

	services, err := buildServices(cfg, database, llmClient)
	if err != nil {
		database.Close()
		return err
	}

	srv, err := server.New(server.Config{Host: cfg.Host, Port: cfg.Port}, database, services)
	if err != nil {
		database.Close()
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}
