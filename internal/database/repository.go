package database

import "context"

// IdentityReader provides read access to registered identities.
type IdentityReader interface {
	GetByID(ctx context.Context, id int64) (*Identity, error)
	GetByEmail(ctx context.Context, email string) (*Identity, error)
	List(ctx context.Context) ([]Identity, error)
	Count(ctx context.Context) (int, error)
}

// IdentityWriter mutates registered identities.
type IdentityWriter interface {
	// CreateWithEmbeddings inserts the identity and all its embedding
	// records in a single transaction. Either everything is persisted or
	// nothing is.
	CreateWithEmbeddings(ctx context.Context, identity *Identity, embeddings [][]float32, model string) ([]StoredEmbedding, error)
	Delete(ctx context.Context, id int64) error
}

// EmbeddingSearcher finds stored embeddings near a probe vector.
type EmbeddingSearcher interface {
	// FindNearest returns up to limit embeddings ordered by Euclidean
	// distance to the probe, with their distances. Embeddings at or beyond
	// maxDistance are excluded.
	FindNearest(ctx context.Context, probe []float32, limit int, maxDistance float64) ([]StoredEmbedding, []float64, error)
	CountAll(ctx context.Context) (int, error)
}

// EmbeddingReader provides bulk read access to stored embeddings.
type EmbeddingReader interface {
	GetAll(ctx context.Context) ([]StoredEmbedding, error)
	GetByIdentity(ctx context.Context, identityID int64) ([]StoredEmbedding, error)
}
