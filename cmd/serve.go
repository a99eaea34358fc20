package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-login/internal/auth"
	"github.com/kozaktomas/face-login/internal/config"
	"github.com/kozaktomas/face-login/internal/database/postgres"
	"github.com/kozaktomas/face-login/internal/facerec"
	"github.com/kozaktomas/face-login/internal/matcher"
	"github.com/kozaktomas/face-login/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the authentication API server",
	Long: `Start the Face Login API server.
The server exposes registration, face authentication, token verification
and administrative user management endpoints under /api/v1.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// initHNSW builds or loads the in-memory HNSW index for probe matching.
func initHNSW(ctx context.Context, embeddingRepo *postgres.EmbeddingRepository, indexPath string) {
	if indexPath != "" {
		fmt.Printf("Loading face HNSW index from %s...\n", indexPath)
	} else {
		fmt.Printf("Building in-memory HNSW index for face matching...\n")
	}
	if err := embeddingRepo.EnableHNSW(ctx, indexPath); err != nil {
		fmt.Printf("Warning: Failed to build HNSW index: %v\n", err)
		fmt.Printf("Face matching will use PostgreSQL queries (slower)\n")
	} else if indexPath != "" {
		fmt.Printf("HNSW index ready with %d embeddings (persisted to %s)\n", embeddingRepo.HNSWCount(), indexPath)
	} else {
		fmt.Printf("HNSW index built with %d embeddings (in-memory only)\n", embeddingRepo.HNSWCount())
	}
}

// saveHNSWIndex saves the HNSW index to disk during shutdown.
func saveHNSWIndex(embeddingRepo *postgres.EmbeddingRepository) {
	if err := embeddingRepo.SaveHNSWIndex(); err != nil {
		fmt.Printf("Warning: failed to save HNSW index: %v\n", err)
	} else {
		fmt.Println("HNSW index saved to disk")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.Auth.Secret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	identityRepo := postgres.NewIdentityRepository(pool)
	embeddingRepo := postgres.NewEmbeddingRepository(pool)

	ctx := context.Background()
	initHNSW(ctx, embeddingRepo, cfg.Database.HNSWIndexPath)

	issuer, err := auth.NewIssuer(cfg.Auth.Secret, time.Duration(cfg.Auth.TokenTTLMins)*time.Minute)
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	extractor := facerec.NewClient(cfg.Embedding.URL, cfg.Recognition.Dim)
	recognizer := matcher.NewService(identityRepo, embeddingRepo, extractor, cfg.Recognition, logger)

	server := web.NewServer(cfg, web.Dependencies{
		Recognizer: recognizer,
		Identities: identityRepo,
		Issuer:     issuer,
	}, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		saveHNSWIndex(embeddingRepo)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Login API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
