package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/kozaktomas/face-login/internal/config"
	"github.com/kozaktomas/face-login/internal/database/postgres"
	"github.com/kozaktomas/face-login/internal/facerec"
	"github.com/kozaktomas/face-login/internal/matcher"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [image files...]",
	Short: "Register a user from face image files",
	Long: `Register a new user directly from the command line.
Takes between 3 and 5 face images, screens them for quality, extracts
embeddings via the embedding service, and stores the user.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("name", "", "Full name of the user (required)")
	enrollCmd.Flags().String("email", "", "Email address of the user (required)")
	enrollCmd.MarkFlagRequired("name")
	enrollCmd.MarkFlagRequired("email")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	name := mustGetString(cmd, "name")
	email := mustGetString(cmd, "email")

	cfg := config.Load()

	pool, err := connectDatabase()
	if err != nil {
		return err
	}
	defer pool.Close()

	images := make([][]byte, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read image %s: %w", path, err)
		}
		images = append(images, data)
	}

	identityRepo := postgres.NewIdentityRepository(pool)
	embeddingRepo := postgres.NewEmbeddingRepository(pool)
	extractor := facerec.NewClient(cfg.Embedding.URL, cfg.Recognition.Dim)
	recognizer := matcher.NewService(identityRepo, embeddingRepo, extractor, cfg.Recognition, zap.NewNop())

	fmt.Printf("Enrolling %s with %d face images...\n", name, len(images))

	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetDescription("Processing images"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	identity, err := recognizer.Register(context.Background(), matcher.RegistrationInput{
		Name:     name,
		Email:    email,
		Images:   images,
		Progress: func() { _ = bar.Add(1) },
	})
	if err != nil {
		return fmt.Errorf("enrollment failed: %w", err)
	}

	_ = bar.Finish()
	fmt.Printf("\nUser registered: id=%d name=%s email=%s\n", identity.ID, identity.Name, identity.Email)
	return nil
}
