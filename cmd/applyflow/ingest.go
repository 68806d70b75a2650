package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/applyflow/internal/db"
	"github.com/jonathan/applyflow/internal/llm"
	"github.com/jonathan/applyflow/internal/observability"
)

var (
	ingestUserID   string
	ingestURL      string
	ingestHTMLFile string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a job posting from a URL or HTML file",
	Long:  "Ingest a job posting for a user directly from the command line, bypassing the HTTP API. The posting is scraped, extracted, and persisted exactly as it would be through POST /jobs.",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestUserID, "user", "", "User ID to ingest for (required)")
	ingestCmd.Flags().StringVarP(&ingestURL, "url", "u", "", "Job posting URL")
	ingestCmd.Flags().StringVar(&ingestHTMLFile, "html-file", "", "Path to a saved HTML page (requires --url for the source URL)")
	ingestCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to JSON config file")

	ingestCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(_ *cobra.Command, _ []string) error {
	if ingestURL == "" {
		return fmt.Errorf("--url is required")
	}

	userID, err := uuid.Parse(ingestUserID)
	if err != nil {
		return fmt.Errorf("invalid user ID: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.IngestTimeoutSecs)*time.Second)
	defer cancel()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	llmClient, err := llm.NewClient(ctx, nil, cfg.APIKey)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer llmClient.Close()

	services, err := buildServices(cfg, database, llmClient)
	if err != nil {
		return err
	}

	var posting *db.JobPosting
	if ingestHTMLFile != "" {
		html, err := os.ReadFile(ingestHTMLFile)
		if err != nil {
			return fmt.Errorf("failed to read HTML file: %w", err)
		}
		posting, err = services.Jobs.IngestFromHTML(ctx, userID, string(html), ingestURL)
		if err != nil {
			return fmt.Errorf("failed to ingest from HTML: %w", err)
		}
	} else {
		posting, err = services.Jobs.IngestFromURL(ctx, userID, ingestURL)
		if err != nil {
			return fmt.Errorf("failed to ingest from URL: %w", err)
		}
	}

	printer := observability.NewPrinter(os.Stdout)
	if cfg.Verbose {
		printer.PrintJobPosting(posting)
	} else {
		out, err := json.MarshalIndent(posting, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode posting: %w", err)
		}
		fmt.Fprintln(os.Stdout, string(out))
	}
	printer.PrintIngestSummary(posting)

	return nil
}
