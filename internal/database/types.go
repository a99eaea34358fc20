package database

import (
	"time"
)

// Identity represents a registered user account.
type Identity struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// StoredEmbedding represents a face embedding stored in the database.
// One identity owns several embeddings, one per enrollment image.
type StoredEmbedding struct {
	ID         int64     `json:"id"`
	IdentityID int64     `json:"identity_id"`
	Embedding  []float32 `json:"embedding"`
	Dim        int       `json:"dim"`
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"created_at"`
}

// ExportData contains all identities and embeddings for backup/export.
type ExportData struct {
	Version    int               `json:"version"`
	ExportedAt time.Time         `json:"exported_at"`
	Identities []Identity        `json:"identities"`
	Embeddings []StoredEmbedding `json:"embeddings"`
}

// CurrentExportVersion is bumped whenever the export format changes.
const CurrentExportVersion = 1
