package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/face-login/internal/database"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// IdentityRepository provides PostgreSQL-backed identity storage.
type IdentityRepository struct {
	pool *Pool
}

var (
	_ database.IdentityReader = (*IdentityRepository)(nil)
	_ database.IdentityWriter = (*IdentityRepository)(nil)
)

// NewIdentityRepository creates a new PostgreSQL identity repository.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// CreateWithEmbeddings inserts an identity and all its embedding records in a
// single transaction. A unique violation on the email column maps to
// database.ErrEmailTaken. No partial registration can be observed: either the
// identity exists with all its embeddings or the transaction rolled back.
func (r *IdentityRepository) CreateWithEmbeddings(
	ctx context.Context, identity *database.Identity, embeddings [][]float32, model string,
) ([]database.StoredEmbedding, error) {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var id int64
	var createdAt time.Time
	err = tx.QueryRowContext(ctx, `
		INSERT INTO identities (name, email)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, identity.Name, identity.Email).Scan(&id, &createdAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, database.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert identity: %w", err)
	}

	records := make([]database.StoredEmbedding, 0, len(embeddings))
	for _, emb := range embeddings {
		var rec database.StoredEmbedding
		err = tx.QueryRowContext(ctx, `
			INSERT INTO face_embeddings (identity_id, embedding, dim, model)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`, id, pgvector.NewVector(emb), len(emb), model).Scan(&rec.ID, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert embedding: %w", err)
		}
		rec.IdentityID = id
		rec.Embedding = emb
		rec.Dim = len(emb)
		rec.Model = model
		records = append(records, rec)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit registration: %w", err)
	}

	identity.ID = id
	identity.CreatedAt = createdAt
	return records, nil
}

// GetByID retrieves an identity by ID, returns nil if not found.
func (r *IdentityRepository) GetByID(ctx context.Context, id int64) (*database.Identity, error) {
	var ident database.Identity
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at
		FROM identities
		WHERE id = $1
	`, id).Scan(&ident.ID, &ident.Name, &ident.Email, &ident.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query identity: %w", err)
	}
	return &ident, nil
}

// GetByEmail retrieves an identity by email, returns nil if not found.
// Emails are compared case-insensitively.
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*database.Identity, error) {
	var ident database.Identity
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at
		FROM identities
		WHERE LOWER(email) = LOWER($1)
	`, strings.TrimSpace(email)).Scan(&ident.ID, &ident.Name, &ident.Email, &ident.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query identity by email: %w", err)
	}
	return &ident, nil
}

// List returns all identities ordered by creation time.
func (r *IdentityRepository) List(ctx context.Context) ([]database.Identity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, created_at
		FROM identities
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	return scanIdentities(rows)
}

// SearchByName returns identities whose normalized name contains the
// normalized query (lowercase, diacritics removed).
func (r *IdentityRepository) SearchByName(ctx context.Context, query string) ([]database.Identity, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	normalized := database.NormalizeName(query)
	if normalized == "" {
		return all, nil
	}

	var matched []database.Identity
	for _, ident := range all {
		if strings.Contains(database.NormalizeName(ident.Name), normalized) {
			matched = append(matched, ident)
		}
	}
	return matched, nil
}

// Count returns the total number of registered identities.
func (r *IdentityRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM identities").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return count, nil
}

// Delete removes an identity. Its embedding rows are removed by the
// ON DELETE CASCADE constraint. Returns sql.ErrNoRows if the identity
// does not exist.
func (r *IdentityRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM identities WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// scanIdentities scans identity rows into a slice.
func scanIdentities(rows *sql.Rows) ([]database.Identity, error) {
	var identities []database.Identity
	for rows.Next() {
		var ident database.Identity
		if err := rows.Scan(&ident.ID, &ident.Name, &ident.Email, &ident.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}
