package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-login/internal/auth"
	"github.com/kozaktomas/face-login/internal/database"
	"github.com/kozaktomas/face-login/internal/matcher"
)

// fakeRecognizer implements Recognizer with canned results.
type fakeRecognizer struct {
	registerIdentity *database.Identity
	registerErr      error
	authResult       *matcher.MatchResult
	authErr          error
	deleteErr        error
	deletedIDs       []int64
	lastInput        matcher.RegistrationInput
}

func (f *fakeRecognizer) Register(ctx context.Context, input matcher.RegistrationInput) (*database.Identity, error) {
	f.lastInput = input
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return f.registerIdentity, nil
}

func (f *fakeRecognizer) Authenticate(ctx context.Context, imageData []byte) (*matcher.MatchResult, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return f.authResult, nil
}

func (f *fakeRecognizer) DeleteIdentity(ctx context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

// fakeIdentityReader implements IdentityReader from a fixed identity list.
type fakeIdentityReader struct {
	identities []database.Identity
	err        error
}

func (f *fakeIdentityReader) GetByID(ctx context.Context, id int64) (*database.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.identities {
		if f.identities[i].ID == id {
			return &f.identities[i], nil
		}
	}
	return nil, nil
}

func (f *fakeIdentityReader) List(ctx context.Context) ([]database.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identities, nil
}

func (f *fakeIdentityReader) Count(ctx context.Context) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return len(f.identities), nil
}

var errStubIssuer = errors.New("stub issuer failure")

// fakeIssuer implements TokenIssuer without real signing.
type fakeIssuer struct {
	token      string
	issueErr   error
	verifyID   int64
	verifyErr  error
	lastIssued *database.Identity
}

func (f *fakeIssuer) Issue(identity *database.Identity) (string, error) {
	f.lastIssued = identity
	if f.issueErr != nil {
		return "", f.issueErr
	}
	if f.token == "" {
		return "test-token", nil
	}
	return f.token, nil
}

func (f *fakeIssuer) Verify(token string) (int64, *auth.Claims, error) {
	if f.verifyErr != nil {
		return 0, nil, f.verifyErr
	}
	return f.verifyID, &auth.Claims{}, nil
}

func testIdentity(id int64) *database.Identity {
	return &database.Identity{
		ID:        id,
		Name:      "Alice Example",
		Email:     "alice@example.com",
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// testImagePayload returns a base64 payload that decodes successfully.
func testImagePayload() string {
	return base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01})
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
