package matcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-login/internal/config"
	"github.com/kozaktomas/face-login/internal/database"
	"go.uber.org/zap"
)

var (
	// ErrNoIdentities is returned when authentication runs against an empty
	// identity store.
	ErrNoIdentities = errors.New("no registered identities")

	// ErrNoMatch is returned when no stored embedding falls within the match
	// threshold.
	ErrNoMatch = errors.New("face not recognized")
)

// ValidationError describes a rejected registration or authentication input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// EmbeddingExtractor computes a face embedding from raw image bytes.
type EmbeddingExtractor interface {
	ExtractEmbedding(ctx context.Context, imageData []byte) ([]float32, error)
	Model() string
}

// IdentityStore is the identity persistence the matcher needs.
type IdentityStore interface {
	CreateWithEmbeddings(ctx context.Context, identity *database.Identity, embeddings [][]float32, model string) ([]database.StoredEmbedding, error)
	GetByID(ctx context.Context, id int64) (*database.Identity, error)
	Delete(ctx context.Context, id int64) error
}

// EmbeddingStore is the vector search surface the matcher needs.
type EmbeddingStore interface {
	FindNearest(ctx context.Context, probe []float32, limit int, maxDistance float64) ([]database.StoredEmbedding, []float64, error)
	CountAll(ctx context.Context) (int, error)
	AddToIndex(records []database.StoredEmbedding) error
	RemoveIdentityFromIndex(identityID int64)
}

// MatchResult describes an accepted probe.
type MatchResult struct {
	Identity   *database.Identity
	Distance   float64
	Similarity float64
}

// Service implements enrollment and probe matching on top of the embedding
// store. Matching accepts the globally nearest stored embedding when its
// Euclidean distance is at or below the configured threshold.
type Service struct {
	identities IdentityStore
	embeddings EmbeddingStore
	extractor  EmbeddingExtractor
	cfg        config.RecognitionConfig
	logger     *zap.Logger
}

// NewService wires the matching service.
func NewService(
	identities IdentityStore,
	embeddings EmbeddingStore,
	extractor EmbeddingExtractor,
	cfg config.RecognitionConfig,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		identities: identities,
		embeddings: embeddings,
		extractor:  extractor,
		cfg:        cfg,
		logger:     logger,
	}
}

// Match finds the identity owning the stored embedding nearest to the probe.
// Returns ErrNoIdentities for an empty store and ErrNoMatch when nothing
// falls within the threshold.
func (s *Service) Match(ctx context.Context, probe []float32) (*MatchResult, error) {
	if len(probe) != s.cfg.Dim {
		return nil, fmt.Errorf("probe dimension mismatch: expected %d, got %d", s.cfg.Dim, len(probe))
	}

	total, err := s.embeddings.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting stored embeddings: %w", err)
	}
	if total == 0 {
		return nil, ErrNoIdentities
	}

	// The threshold is exclusive in the store query, so nudge it to keep
	// distance == threshold acceptable.
	records, distances, err := s.embeddings.FindNearest(ctx, probe, 1, nextAfter(s.cfg.Threshold))
	if err != nil {
		return nil, fmt.Errorf("searching nearest embedding: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoMatch
	}

	nearest := records[0]
	distance := distances[0]

	identity, err := s.identities.GetByID(ctx, nearest.IdentityID)
	if err != nil {
		return nil, fmt.Errorf("loading matched identity %d: %w", nearest.IdentityID, err)
	}
	if identity == nil {
		// The embedding won the search but its identity is gone; treat the
		// probe as unrecognized rather than failing the request.
		s.logger.Warn("matched embedding refers to missing identity",
			zap.Int64("embedding_id", nearest.ID),
			zap.Int64("identity_id", nearest.IdentityID))
		return nil, ErrNoMatch
	}

	s.logger.Info("probe matched",
		zap.Int64("identity_id", identity.ID),
		zap.Float64("distance", distance))

	return &MatchResult{
		Identity:   identity,
		Distance:   distance,
		Similarity: database.Similarity(distance),
	}, nil
}

// Authenticate extracts an embedding from an image and matches it against the
// store. facerec.ErrNoFace passes through untouched so callers can report it
// distinctly.
func (s *Service) Authenticate(ctx context.Context, imageData []byte) (*MatchResult, error) {
	probe, err := s.extractor.ExtractEmbedding(ctx, imageData)
	if err != nil {
		return nil, err
	}
	return s.Match(ctx, probe)
}

// nextAfter widens an exclusive upper bound just enough to include the bound
// itself.
func nextAfter(threshold float64) float64 {
	return threshold + 1e-9
}
