package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/wikidex/internal/api/handlers"
	"github.com/cloo-solutions/wikidex/internal/config"
	"github.com/cloo-solutions/wikidex/internal/index"
	"github.com/cloo-solutions/wikidex/internal/openai"
	"github.com/cloo-solutions/wikidex/internal/server"
	"github.com/cloo-solutions/wikidex/internal/service"
	"github.com/cloo-solutions/wikidex/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the QA API server",
		Long:  "Start the HTTP server exposing question answering over the indexed wiki",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")

	return cmd
}

// applyPortFlag overrides the configured port only when the flag was
// passed explicitly, so -p 8080 still beats a PORT env var while an
// omitted flag leaves the env value alone.
func applyPortFlag(cfg *config.Config, cmd *cobra.Command) {
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetString("port")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	applyPortFlag(cfg, cmd)

	if !cfg.HasOpenAI() {
		return fmt.Errorf("OPENAI_API_KEY env var required")
	}
	inference := openai.NewClient(cfg.OpenAIAPIKey)

	idx, err := index.NewClient(index.Config{
		Addresses: []string{cfg.OpenSearchHost},
		Index:     cfg.IndexName,
	})
	if err != nil {
		return err
	}
	if err := idx.EnsureIndex(ctx); err != nil {
		return err
	}
	log.Printf("connected to search index at %s", cfg.OpenSearchHost)

	querySvc := service.NewQueryService(inference, idx, inference, service.DefaultTopK)

	routerCfg := server.RouterConfig{
		QAHandler: handlers.NewQAHandler(querySvc),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}
