package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/face-login/internal/database"
	"github.com/kozaktomas/face-login/internal/database/postgres"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all users and face embeddings to a JSON file",
	Long: `Export the full identity store (users and their embedding vectors)
to a JSON file for backups or migration to another instance.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("output", "face-login-export.json", "Output file path")
	exportCmd.Flags().Bool("pretty", false, "Indent the JSON output")
}

func runExport(cmd *cobra.Command, args []string) error {
	output := mustGetString(cmd, "output")
	pretty := mustGetBool(cmd, "pretty")

	pool, err := connectDatabase()
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx := context.Background()
	identityRepo := postgres.NewIdentityRepository(pool)
	embeddingRepo := postgres.NewEmbeddingRepository(pool)

	identities, err := identityRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	bar := progressbar.NewOptions(len(identities),
		progressbar.OptionSetDescription("Exporting users"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("users"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	export := database.ExportData{
		Version:    database.CurrentExportVersion,
		ExportedAt: time.Now().UTC(),
		Identities: identities,
	}

	for _, identity := range identities {
		embeddings, err := embeddingRepo.GetByIdentity(ctx, identity.ID)
		if err != nil {
			return fmt.Errorf("failed to load embeddings for user %d: %w", identity.ID, err)
		}
		export.Embeddings = append(export.Embeddings, embeddings...)
		bar.Add(1)
	}
	fmt.Println()

	var data []byte
	if pretty {
		data, err = json.MarshalIndent(export, "", "  ")
	} else {
		data, err = json.Marshal(export)
	}
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}

	if err := os.WriteFile(output, data, 0o600); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}

	fmt.Printf("Exported %d users and %d embeddings to %s\n",
		len(export.Identities), len(export.Embeddings), output)
	return nil
}
