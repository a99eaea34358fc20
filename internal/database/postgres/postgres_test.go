//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/face-login/internal/config"
	"github.com/kozaktomas/face-login/internal/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

// fakeEmbedding returns a deterministic 128-dim vector anchored at base.
func fakeEmbedding(base float32) []float32 {
	vec := make([]float32, 128)
	for i := range vec {
		vec[i] = base + float32(i)/10000.0
	}
	return vec
}

func registerTestIdentity(
	t *testing.T, repo *IdentityRepository, name, email string, bases ...float32,
) (*database.Identity, []database.StoredEmbedding) {
	t.Helper()

	embeddings := make([][]float32, 0, len(bases))
	for _, b := range bases {
		embeddings = append(embeddings, fakeEmbedding(b))
	}

	ident := &database.Identity{Name: name, Email: email}
	records, err := repo.CreateWithEmbeddings(context.Background(), ident, embeddings, "dlib")
	if err != nil {
		t.Fatalf("Failed to register %s: %v", name, err)
	}
	return ident, records
}

func TestIdentityRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewIdentityRepository(pool)

	t.Run("CreateWithEmbeddings", func(t *testing.T) {
		ident, records := registerTestIdentity(t, repo, "Alice Example", "alice@example.com", 0.1, 0.11, 0.12)

		if ident.ID == 0 {
			t.Error("Expected identity ID to be assigned")
		}
		if len(records) != 3 {
			t.Fatalf("Expected 3 embedding records, got %d", len(records))
		}
		for _, rec := range records {
			if rec.IdentityID != ident.ID {
				t.Errorf("Expected embedding owner %d, got %d", ident.ID, rec.IdentityID)
			}
			if rec.Dim != 128 {
				t.Errorf("Expected dim 128, got %d", rec.Dim)
			}
		}
	})

	t.Run("DuplicateEmailConflict", func(t *testing.T) {
		ident := &database.Identity{Name: "Alice Clone", Email: "alice@example.com"}
		_, err := repo.CreateWithEmbeddings(ctx, ident, [][]float32{fakeEmbedding(0.5), fakeEmbedding(0.51), fakeEmbedding(0.52)}, "dlib")
		if !errors.Is(err, database.ErrEmailTaken) {
			t.Errorf("Expected ErrEmailTaken, got %v", err)
		}

		// The failed registration must not leave partial embedding rows.
		embRepo := NewEmbeddingRepository(pool)
		count, err := embRepo.CountAll(ctx)
		if err != nil {
			t.Fatalf("Failed to count embeddings: %v", err)
		}
		if count != 3 {
			t.Errorf("Expected 3 embeddings after failed duplicate registration, got %d", count)
		}
	})

	t.Run("DuplicateEmailCaseVariantConflict", func(t *testing.T) {
		ident := &database.Identity{Name: "Alice Shouting", Email: "ALICE@Example.Com"}
		_, err := repo.CreateWithEmbeddings(ctx, ident, [][]float32{fakeEmbedding(0.6), fakeEmbedding(0.61), fakeEmbedding(0.62)}, "dlib")
		if !errors.Is(err, database.ErrEmailTaken) {
			t.Errorf("Expected ErrEmailTaken for case-variant email, got %v", err)
		}
	})

	t.Run("GetByEmailCaseInsensitive", func(t *testing.T) {
		ident, err := repo.GetByEmail(ctx, "ALICE@Example.Com")
		if err != nil {
			t.Fatalf("Failed to get by email: %v", err)
		}
		if ident == nil {
			t.Fatal("Expected identity, got nil")
		}
		if ident.Name != "Alice Example" {
			t.Errorf("Unexpected name: %s", ident.Name)
		}
	})

	t.Run("ListAndCount", func(t *testing.T) {
		registerTestIdentity(t, repo, "Bob Builder", "bob@example.com", 0.9, 0.91, 0.92)

		identities, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("Failed to list identities: %v", err)
		}
		if len(identities) != 2 {
			t.Errorf("Expected 2 identities, got %d", len(identities))
		}

		count, err := repo.Count(ctx)
		if err != nil {
			t.Fatalf("Failed to count identities: %v", err)
		}
		if count != 2 {
			t.Errorf("Expected count 2, got %d", count)
		}
	})

	t.Run("SearchByName", func(t *testing.T) {
		found, err := repo.SearchByName(ctx, "alice")
		if err != nil {
			t.Fatalf("Failed to search: %v", err)
		}
		if len(found) != 1 || found[0].Email != "alice@example.com" {
			t.Errorf("Unexpected search result: %+v", found)
		}
	})

	t.Run("DeleteCascades", func(t *testing.T) {
		ident, err := repo.GetByEmail(ctx, "bob@example.com")
		if err != nil || ident == nil {
			t.Fatalf("Failed to load bob: %v", err)
		}

		if err := repo.Delete(ctx, ident.ID); err != nil {
			t.Fatalf("Failed to delete identity: %v", err)
		}

		embRepo := NewEmbeddingRepository(pool)
		records, err := embRepo.GetByIdentity(ctx, ident.ID)
		if err != nil {
			t.Fatalf("Failed to query embeddings: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("Expected embeddings to cascade on delete, found %d", len(records))
		}
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		err := repo.Delete(ctx, 999999)
		if !errors.Is(err, sql.ErrNoRows) {
			t.Errorf("Expected sql.ErrNoRows for missing identity, got %v", err)
		}
	})
}

func TestEmbeddingRepositoryFindNearest(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	identRepo := NewIdentityRepository(pool)
	embRepo := NewEmbeddingRepository(pool)

	alice, _ := registerTestIdentity(t, identRepo, "Alice", "alice@example.com", 0.0, 0.001, 0.002)
	bob, _ := registerTestIdentity(t, identRepo, "Bob", "bob@example.com", 0.9, 0.901, 0.902)

	probeNearAlice := fakeEmbedding(0.0005)

	t.Run("PostgresFallback", func(t *testing.T) {
		records, distances, err := embRepo.FindNearest(ctx, probeNearAlice, 1, 0.5)
		if err != nil {
			t.Fatalf("FindNearest failed: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("Expected 1 result, got %d", len(records))
		}
		if records[0].IdentityID != alice.ID {
			t.Errorf("Expected nearest embedding to belong to Alice (%d), got %d", alice.ID, records[0].IdentityID)
		}
		if distances[0] >= 0.5 {
			t.Errorf("Expected distance below threshold, got %f", distances[0])
		}
	})

	t.Run("MaxDistanceExcludes", func(t *testing.T) {
		// A probe far from everything returns nothing within the threshold.
		faraway := fakeEmbedding(10.0)
		records, _, err := embRepo.FindNearest(ctx, faraway, 1, 0.5)
		if err != nil {
			t.Fatalf("FindNearest failed: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("Expected no results within threshold, got %d", len(records))
		}
	})

	t.Run("HNSWFastPath", func(t *testing.T) {
		if err := embRepo.EnableHNSW(ctx, ""); err != nil {
			t.Fatalf("EnableHNSW failed: %v", err)
		}
		if embRepo.HNSWCount() != 6 {
			t.Errorf("Expected 6 indexed embeddings, got %d", embRepo.HNSWCount())
		}

		records, _, err := embRepo.FindNearest(ctx, probeNearAlice, 1, 0.5)
		if err != nil {
			t.Fatalf("FindNearest with HNSW failed: %v", err)
		}
		if len(records) != 1 || records[0].IdentityID != alice.ID {
			t.Errorf("Expected Alice via HNSW, got %+v", records)
		}
	})

	t.Run("DeleteEvictsFromIndex", func(t *testing.T) {
		if err := identRepo.Delete(ctx, bob.ID); err != nil {
			t.Fatalf("Failed to delete bob: %v", err)
		}
		embRepo.RemoveIdentityFromIndex(bob.ID)

		probeNearBob := fakeEmbedding(0.9005)
		records, _, err := embRepo.FindNearest(ctx, probeNearBob, 1, 0.5)
		if err != nil {
			t.Fatalf("FindNearest failed: %v", err)
		}
		for _, rec := range records {
			if rec.IdentityID == bob.ID {
				t.Error("Deleted identity still present in probe results")
			}
		}
	})
}
