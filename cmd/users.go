package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/kozaktomas/face-login/internal/config"
	"github.com/kozaktomas/face-login/internal/database/postgres"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage registered users",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered users",
	RunE:  runUsersList,
}

var usersCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of registered users",
	RunE:  runUsersCount,
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete [user-id]",
	Short: "Delete a user and all their face embeddings",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersDelete,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersCountCmd)
	usersCmd.AddCommand(usersDeleteCmd)

	usersListCmd.Flags().String("search", "", "Filter users by name (diacritics-insensitive)")
}

// connectDatabase initializes the PostgreSQL pool for CLI commands.
func connectDatabase() (*postgres.Pool, error) {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return pool, nil
}

func runUsersList(cmd *cobra.Command, args []string) error {
	pool, err := connectDatabase()
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx := context.Background()
	identityRepo := postgres.NewIdentityRepository(pool)
	embeddingRepo := postgres.NewEmbeddingRepository(pool)

	search := mustGetString(cmd, "search")

	identities, err := identityRepo.SearchByName(ctx, search)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if len(identities) == 0 {
		fmt.Println("No registered users found")
		return nil
	}

	fmt.Printf("%-6s %-30s %-35s %-10s %s\n", "ID", "NAME", "EMAIL", "FACES", "REGISTERED")
	for _, identity := range identities {
		embeddings, err := embeddingRepo.GetByIdentity(ctx, identity.ID)
		if err != nil {
			return fmt.Errorf("failed to load embeddings for user %d: %w", identity.ID, err)
		}
		fmt.Printf("%-6d %-30s %-35s %-10d %s\n",
			identity.ID, identity.Name, identity.Email, len(embeddings),
			identity.CreatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Printf("\nTotal: %d users\n", len(identities))

	return nil
}

func runUsersCount(cmd *cobra.Command, args []string) error {
	pool, err := connectDatabase()
	if err != nil {
		return err
	}
	defer pool.Close()

	identityRepo := postgres.NewIdentityRepository(pool)
	count, err := identityRepo.Count(context.Background())
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}

	fmt.Printf("%d registered users\n", count)
	return nil
}

func runUsersDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q", args[0])
	}

	pool, err := connectDatabase()
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx := context.Background()
	identityRepo := postgres.NewIdentityRepository(pool)

	identity, err := identityRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if identity == nil {
		return fmt.Errorf("user %d not found", id)
	}

	if err := identityRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user %d not found", id)
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	fmt.Printf("Deleted user %s (%s) and all face embeddings\n", identity.Name, identity.Email)
	return nil
}
