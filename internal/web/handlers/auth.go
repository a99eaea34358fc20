package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kozaktomas/face-login/internal/auth"
	"github.com/kozaktomas/face-login/internal/database"
	"github.com/kozaktomas/face-login/internal/facerec"
	"github.com/kozaktomas/face-login/internal/matcher"
	"go.uber.org/zap"
)

// Recognizer is the enrollment and matching surface the handlers need.
type Recognizer interface {
	Register(ctx context.Context, input matcher.RegistrationInput) (*database.Identity, error)
	Authenticate(ctx context.Context, imageData []byte) (*matcher.MatchResult, error)
	DeleteIdentity(ctx context.Context, id int64) error
}

// TokenIssuer creates and verifies session tokens.
type TokenIssuer interface {
	Issue(identity *database.Identity) (string, error)
	Verify(token string) (int64, *auth.Claims, error)
}

// IdentityReader loads registered identities.
type IdentityReader interface {
	GetByID(ctx context.Context, id int64) (*database.Identity, error)
	List(ctx context.Context) ([]database.Identity, error)
	Count(ctx context.Context) (int, error)
}

// AuthHandler handles registration, face authentication and token verification.
type AuthHandler struct {
	recognizer Recognizer
	issuer     TokenIssuer
	identities IdentityReader
	logger     *zap.Logger
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(recognizer Recognizer, issuer TokenIssuer, identities IdentityReader, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		recognizer: recognizer,
		issuer:     issuer,
		identities: identities,
		logger:     logger,
	}
}

// RegisterRequest is the enrollment payload.
type RegisterRequest struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	FaceImages []string `json:"face_images"`
}

// AuthenticateRequest carries a single probe image.
type AuthenticateRequest struct {
	FaceImage string `json:"face_image"`
}

// AuthResponse is the response for registration and authentication.
type AuthResponse struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message"`
	User        *IdentityResponse `json:"user,omitempty"`
	AccessToken string            `json:"access_token,omitempty"`
	TokenType   string            `json:"token_type"`
}

// Register handles POST /register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	images := make([][]byte, 0, len(req.FaceImages))
	for i, payload := range req.FaceImages {
		data, err := facerec.DecodeImagePayload(payload)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Image %d: invalid image data", i+1))
			return
		}
		images = append(images, data)
	}

	identity, err := h.recognizer.Register(r.Context(), matcher.RegistrationInput{
		Name:   req.Name,
		Email:  req.Email,
		Images: images,
	})
	if err != nil {
		var verr *matcher.ValidationError
		switch {
		case errors.As(err, &verr):
			respondError(w, http.StatusBadRequest, verr.Message)
		case errors.Is(err, database.ErrEmailTaken):
			respondError(w, http.StatusConflict, "Email address already registered")
		default:
			h.logger.Error("registration failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "Registration failed")
		}
		return
	}

	token, err := h.issuer.Issue(identity)
	if err != nil {
		h.logger.Error("failed to issue token after registration", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	respondJSON(w, http.StatusCreated, AuthResponse{
		Success:     true,
		Message:     fmt.Sprintf("User registered successfully with %d face images", len(images)),
		User:        identityResponse(identity),
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// Authenticate handles POST /authenticate.
func (h *AuthHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req AuthenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	imageData, err := facerec.DecodeImagePayload(req.FaceImage)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid image data")
		return
	}

	result, err := h.recognizer.Authenticate(r.Context(), imageData)
	if err != nil {
		switch {
		case errors.Is(err, facerec.ErrNoFace):
			h.rejectAuthentication(w, "No face detected in the image")
		case errors.Is(err, matcher.ErrNoIdentities):
			h.rejectAuthentication(w, "No registered users found")
		case errors.Is(err, matcher.ErrNoMatch):
			h.rejectAuthentication(w, "Face not recognized. Please register first.")
		default:
			h.logger.Error("authentication failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "Authentication failed")
		}
		return
	}

	token, err := h.issuer.Issue(result.Identity)
	if err != nil {
		h.logger.Error("failed to issue token after authentication", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Authentication failed")
		return
	}

	respondJSON(w, http.StatusOK, AuthResponse{
		Success:     true,
		Message:     fmt.Sprintf("Authentication successful (confidence: %.2f%%)", result.Similarity*100),
		User:        identityResponse(result.Identity),
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// rejectAuthentication reports a failed probe without leaking which identity
// (if any) was the nearest candidate.
func (h *AuthHandler) rejectAuthentication(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusUnauthorized, AuthResponse{
		Success:   false,
		Message:   message,
		TokenType: "bearer",
	})
}

// VerifyResponse is the response for token verification.
type VerifyResponse struct {
	Valid bool              `json:"valid"`
	User  *IdentityResponse `json:"user,omitempty"`
}

// Verify handles GET /verify?token=...
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, http.StatusBadRequest, "Missing token parameter")
		return
	}

	identityID, _, err := h.issuer.Verify(token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	identity, err := h.identities.GetByID(r.Context(), identityID)
	if err != nil {
		h.logger.Error("failed to load identity during verification", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Verification failed")
		return
	}
	if identity == nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}

	respondJSON(w, http.StatusOK, VerifyResponse{
		Valid: true,
		User:  identityResponse(identity),
	})
}
