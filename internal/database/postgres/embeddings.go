package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/kozaktomas/face-login/internal/database"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingRepository provides PostgreSQL-backed embedding storage with an
// optional in-memory HNSW index for fast nearest-neighbor probes.
type EmbeddingRepository struct {
	pool          *Pool
	hnswIndex     *database.HNSWIndex
	hnswEnabled   bool
	hnswIndexPath string // Path to persist HNSW index (optional)
	hnswMu        sync.RWMutex
}

var (
	_ database.EmbeddingSearcher = (*EmbeddingRepository)(nil)
	_ database.EmbeddingReader   = (*EmbeddingRepository)(nil)
)

// NewEmbeddingRepository creates a new PostgreSQL embedding repository.
func NewEmbeddingRepository(pool *Pool) *EmbeddingRepository {
	return &EmbeddingRepository{pool: pool}
}

// GetAll returns every stored embedding. Used to build the HNSW index and
// for exports; the table stays small enough to read in one pass.
func (r *EmbeddingRepository) GetAll(ctx context.Context) ([]database.StoredEmbedding, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, identity_id, embedding, dim, model, created_at
		FROM face_embeddings
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	return scanEmbeddings(rows)
}

// GetByIdentity returns all embeddings owned by an identity.
func (r *EmbeddingRepository) GetByIdentity(ctx context.Context, identityID int64) ([]database.StoredEmbedding, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, identity_id, embedding, dim, model, created_at
		FROM face_embeddings
		WHERE identity_id = $1
		ORDER BY id
	`, identityID)
	if err != nil {
		return nil, fmt.Errorf("query embeddings by identity: %w", err)
	}
	defer rows.Close()

	return scanEmbeddings(rows)
}

// CountAll returns the total number of stored embeddings.
func (r *EmbeddingRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM face_embeddings").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}

// FindNearest returns up to limit embeddings ordered by Euclidean distance to
// the probe, excluding anything at or beyond maxDistance. Uses the in-memory
// HNSW index when enabled, otherwise falls back to a pgvector query.
func (r *EmbeddingRepository) FindNearest(
	ctx context.Context, probe []float32, limit int, maxDistance float64,
) ([]database.StoredEmbedding, []float64, error) {
	r.hnswMu.RLock()
	hnswEnabled := r.hnswEnabled && r.hnswIndex != nil
	r.hnswMu.RUnlock()

	if hnswEnabled {
		return r.findNearestHNSW(probe, limit, maxDistance)
	}

	return r.findNearestPostgres(ctx, probe, limit, maxDistance)
}

// findNearestHNSW uses the in-memory HNSW index for the probe.
func (r *EmbeddingRepository) findNearestHNSW(
	probe []float32, limit int, maxDistance float64,
) ([]database.StoredEmbedding, []float64, error) {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()

	if r.hnswIndex == nil {
		return nil, nil, errors.New("HNSW index not initialized")
	}

	// Request more candidates to ensure we have enough after distance filtering.
	searchK := limit * database.HNSWSearchMultiplier
	searchK = max(searchK, database.HNSWEfSearch)

	ids, distances, err := r.hnswIndex.Search(probe, searchK)
	if err != nil {
		return nil, nil, fmt.Errorf("HNSW search: %w", err)
	}

	results := make([]database.StoredEmbedding, 0, limit)
	distancesOut := make([]float64, 0, limit)

	for i, id := range ids {
		if distances[i] >= maxDistance {
			continue
		}
		rec := r.hnswIndex.GetRecord(id)
		if rec == nil {
			continue
		}
		results = append(results, *rec)
		distancesOut = append(distancesOut, distances[i])
		if len(results) >= limit {
			break
		}
	}

	return results, distancesOut, nil
}

// findNearestPostgres runs the probe against pgvector with ef_search tuned to
// match the in-memory index configuration.
func (r *EmbeddingRepository) findNearestPostgres(
	ctx context.Context, probe []float32, limit int, maxDistance float64,
) ([]database.StoredEmbedding, []float64, error) {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", database.HNSWEfSearch)); err != nil {
		return nil, nil, fmt.Errorf("set ef_search: %w", err)
	}

	query := `
		SELECT id, identity_id, embedding, dim, model, created_at,
		       embedding <-> $1::vector AS distance
		FROM face_embeddings
		WHERE embedding <-> $1::vector < $2
		ORDER BY distance
		LIMIT $3
	`

	vec := pgvector.NewVector(probe)
	rows, err := tx.QueryContext(ctx, query, vec, maxDistance, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query nearest embeddings: %w", err)
	}
	defer rows.Close()

	var records []database.StoredEmbedding
	var distances []float64

	for rows.Next() {
		var rec database.StoredEmbedding
		var vec pgvector.Vector
		var dist float64
		if err := rows.Scan(&rec.ID, &rec.IdentityID, &vec, &rec.Dim, &rec.Model, &rec.CreatedAt, &dist); err != nil {
			return nil, nil, fmt.Errorf("scan embedding: %w", err)
		}
		rec.Embedding = vec.Slice()
		records = append(records, rec)
		distances = append(distances, dist)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate embeddings: %w", err)
	}

	return records, distances, nil
}

// EnableHNSW builds (or loads from indexPath) the in-memory HNSW index and
// switches probes over to it. Falls back to PostgreSQL queries when disabled.
func (r *EmbeddingRepository) EnableHNSW(ctx context.Context, indexPath string) error {
	records, err := r.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("loading embeddings for HNSW: %w", err)
	}

	idx := database.NewHNSWIndex()

	if indexPath != "" {
		if err := idx.Load(indexPath); err != nil {
			return fmt.Errorf("loading HNSW index: %w", err)
		}
	}

	if idx.IsEmpty() {
		if err := idx.BuildFromEmbeddings(records); err != nil {
			return fmt.Errorf("building HNSW index: %w", err)
		}
		idx.SetPath(indexPath)
	} else {
		// Graph came from disk; the record map is rebuilt from the database
		// so deletions since the last save are respected.
		idx.RebuildRecords(records)
	}

	r.hnswMu.Lock()
	r.hnswIndex = idx
	r.hnswEnabled = true
	r.hnswIndexPath = indexPath
	r.hnswMu.Unlock()

	return nil
}

// HNSWCount returns the number of embeddings in the in-memory index.
func (r *EmbeddingRepository) HNSWCount() int {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswIndex == nil {
		return 0
	}
	return r.hnswIndex.Count()
}

// AddToIndex inserts freshly registered embeddings into the in-memory index.
// A no-op when HNSW is not enabled.
func (r *EmbeddingRepository) AddToIndex(records []database.StoredEmbedding) error {
	r.hnswMu.RLock()
	idx := r.hnswIndex
	enabled := r.hnswEnabled
	r.hnswMu.RUnlock()

	if !enabled || idx == nil {
		return nil
	}

	for i := range records {
		if err := idx.Add(&records[i]); err != nil {
			return fmt.Errorf("adding embedding %d to HNSW index: %w", records[i].ID, err)
		}
	}
	return nil
}

// RemoveIdentityFromIndex evicts all of an identity's embeddings from the
// in-memory index after the identity is deleted.
func (r *EmbeddingRepository) RemoveIdentityFromIndex(identityID int64) {
	r.hnswMu.RLock()
	idx := r.hnswIndex
	r.hnswMu.RUnlock()

	if idx != nil {
		idx.DeleteByIdentity(identityID)
	}
}

// SaveHNSWIndex persists the in-memory index to its configured path.
func (r *EmbeddingRepository) SaveHNSWIndex() error {
	r.hnswMu.RLock()
	idx := r.hnswIndex
	r.hnswMu.RUnlock()

	if idx == nil {
		return nil
	}
	return idx.Save()
}

// scanEmbeddings scans embedding rows into a slice.
func scanEmbeddings(rows *sql.Rows) ([]database.StoredEmbedding, error) {
	var records []database.StoredEmbedding
	for rows.Next() {
		var rec database.StoredEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&rec.ID, &rec.IdentityID, &vec, &rec.Dim, &rec.Model, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		rec.Embedding = vec.Slice()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return records, nil
}
