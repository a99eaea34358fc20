package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-login",
	Short: "A face recognition login service",
	Long: `Face Login is a backend service that registers users with a set of
face images and authenticates them by matching a probe image against the
stored face embeddings. Matching uses Euclidean distance over
128-dimensional embeddings with a configurable acceptance threshold.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
