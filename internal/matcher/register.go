package matcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kozaktomas/face-login/internal/database"
	"github.com/kozaktomas/face-login/internal/facerec"
	"go.uber.org/zap"
)

// RegistrationInput carries a decoded enrollment request.
type RegistrationInput struct {
	Name   string
	Email  string
	Images [][]byte

	// Progress, when set, is called after each image has been screened and
	// embedded. CLI enrollment uses it to drive a progress bar.
	Progress func()
}

// Register validates the input, screens and embeds every image, and persists
// the identity with all its embeddings in one transaction. Any per-image
// failure aborts the whole registration so no partial identity is ever
// stored.
func (s *Service) Register(ctx context.Context, input RegistrationInput) (*database.Identity, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)

	if name == "" {
		return nil, &ValidationError{Message: "Name must not be empty"}
	}
	if email == "" {
		return nil, &ValidationError{Message: "Email must not be empty"}
	}
	if !strings.Contains(email, "@") {
		return nil, &ValidationError{Message: "Email address is not valid"}
	}

	if len(input.Images) < s.cfg.MinImages || len(input.Images) > s.cfg.MaxImages {
		return nil, &ValidationError{
			Message: fmt.Sprintf("Registration requires between %d and %d face images, got %d",
				s.cfg.MinImages, s.cfg.MaxImages, len(input.Images)),
		}
	}

	thresholds := facerec.QualityThresholds{
		MinBlurVariance: s.cfg.Quality.MinBlurVariance,
		MinContrast:     s.cfg.Quality.MinContrast,
	}

	embeddings := make([][]float32, 0, len(input.Images))
	for i, img := range input.Images {
		if err := facerec.CheckQuality(img, thresholds); err != nil {
			var qerr *facerec.QualityError
			if errors.As(err, &qerr) {
				return nil, &ValidationError{Message: fmt.Sprintf("Image %d: %s", i+1, qerr.Reason)}
			}
			return nil, &ValidationError{Message: fmt.Sprintf("Image %d could not be decoded", i+1)}
		}

		embedding, err := s.extractor.ExtractEmbedding(ctx, img)
		if err != nil {
			if errors.Is(err, facerec.ErrNoFace) {
				return nil, &ValidationError{Message: fmt.Sprintf("Image %d: no face detected", i+1)}
			}
			return nil, fmt.Errorf("extracting embedding from image %d: %w", i+1, err)
		}
		embeddings = append(embeddings, embedding)

		if input.Progress != nil {
			input.Progress()
		}
	}

	identity := &database.Identity{Name: name, Email: email}
	records, err := s.identities.CreateWithEmbeddings(ctx, identity, embeddings, s.extractor.Model())
	if err != nil {
		return nil, err
	}

	if err := s.embeddings.AddToIndex(records); err != nil {
		// The database is the source of truth. Index drift is repaired on the
		// next rebuild, so log and continue.
		s.logger.Warn("failed to index new embeddings", zap.Int64("identity_id", identity.ID), zap.Error(err))
	}

	s.logger.Info("identity registered",
		zap.Int64("identity_id", identity.ID),
		zap.Int("embeddings", len(records)))

	return identity, nil
}

// DeleteIdentity removes an identity, its embeddings (by cascade), and its
// vectors from the search index.
func (s *Service) DeleteIdentity(ctx context.Context, id int64) error {
	if err := s.identities.Delete(ctx, id); err != nil {
		return err
	}
	s.embeddings.RemoveIdentityFromIndex(id)

	s.logger.Info("identity deleted", zap.Int64("identity_id", id))
	return nil
}
