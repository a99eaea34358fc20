package database

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWIndex wraps the HNSW graph for fast nearest-neighbor search over
// stored face embeddings. The graph mirrors the face_embeddings table and is
// rebuilt from it on startup (or loaded from disk when a path is configured).
type HNSWIndex struct {
	graph      *hnsw.Graph[int64]
	savedGraph *hnsw.SavedGraph[int64]
	idToRecord map[int64]*StoredEmbedding
	mu         sync.RWMutex
	path       string
}

// NewHNSWIndex creates a new empty HNSW index.
func NewHNSWIndex() *HNSWIndex {
	return &HNSWIndex{
		idToRecord: make(map[int64]*StoredEmbedding),
	}
}

// newGraph creates an HNSW graph configured for Euclidean face matching.
func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.EuclideanDistance
	return g
}

// BuildFromEmbeddings builds the index from a slice of stored embeddings.
func (h *HNSWIndex) BuildFromEmbeddings(records []StoredEmbedding) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(records) == 0 {
		h.graph = nil
		h.savedGraph = nil
		h.idToRecord = make(map[int64]*StoredEmbedding)
		return nil
	}

	g := newGraph()
	h.idToRecord = make(map[int64]*StoredEmbedding, len(records))

	for i := range records {
		rec := &records[i]
		if len(rec.Embedding) == 0 {
			continue
		}

		g.Add(hnsw.MakeNode(rec.ID, rec.Embedding))
		h.idToRecord[rec.ID] = rec
	}

	h.graph = g
	h.savedGraph = nil
	return nil
}

// Search finds the k nearest neighbors to the query embedding.
// Returns embedding record IDs and their Euclidean distances.
func (h *HNSWIndex) Search(query []float32, k int) ([]int64, []float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		return nil, nil, errors.New("index not initialized")
	}

	var neighbors []hnsw.Node[int64]
	if h.savedGraph != nil {
		neighbors = h.savedGraph.Search(query, k)
	} else {
		neighbors = h.graph.Search(query, k)
	}

	ids := make([]int64, 0, len(neighbors))
	distances := make([]float64, 0, len(neighbors))

	for _, n := range neighbors {
		// Records deleted since the graph was built no longer appear in the
		// lookup map; skip them instead of resurrecting stale matches.
		if _, ok := h.idToRecord[n.Key]; !ok {
			continue
		}
		ids = append(ids, n.Key)
		distances = append(distances, EuclideanDistance(query, n.Value))
	}

	return ids, distances, nil
}

// GetRecord returns the stored embedding for a given record ID.
func (h *HNSWIndex) GetRecord(id int64) *StoredEmbedding {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.idToRecord[id]
}

// Add adds a single embedding record to the index.
func (h *HNSWIndex) Add(rec *StoredEmbedding) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(rec.Embedding) == 0 {
		return nil
	}

	// SavedGraph embeds *Graph, so new nodes land in the loaded graph.
	if h.savedGraph != nil {
		h.savedGraph.Add(hnsw.MakeNode(rec.ID, rec.Embedding))
	} else {
		if h.graph == nil {
			h.graph = newGraph()
		}
		h.graph.Add(hnsw.MakeNode(rec.ID, rec.Embedding))
	}
	h.idToRecord[rec.ID] = rec

	return nil
}

// DeleteByIdentity removes all embeddings owned by an identity from the index.
// The HNSW graph doesn't support true deletion; removing entries from the
// lookup map filters them out of search results.
func (h *HNSWIndex) DeleteByIdentity(identityID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for id, rec := range h.idToRecord {
		if rec.IdentityID == identityID {
			delete(h.idToRecord, id)
			removed++
		}
	}
	return removed
}

// SetPath sets the path for saving/loading the index.
func (h *HNSWIndex) SetPath(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.path = path
}

// Save persists the index to disk. A no-op when no path is configured.
func (h *HNSWIndex) Save() error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.path == "" {
		return nil
	}

	if h.graph == nil && h.savedGraph == nil {
		// Remove existing file if index is empty (best-effort cleanup).
		_ = os.Remove(h.path)
		return nil
	}

	f, err := os.Create(h.path)
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	defer f.Close()

	if h.savedGraph != nil {
		if err := h.savedGraph.Export(f); err != nil {
			return fmt.Errorf("exporting HNSW graph: %w", err)
		}
		return nil
	}

	if err := h.graph.Export(f); err != nil {
		return fmt.Errorf("exporting HNSW graph: %w", err)
	}
	return nil
}

// Load loads the index from disk. Missing files are not an error; the index
// is then rebuilt from the database instead.
func (h *HNSWIndex) Load(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.path = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	h.savedGraph = saved
	return nil
}

// RebuildRecords rebuilds the id lookup map from embeddings.
// Called after loading a graph from disk.
func (h *HNSWIndex) RebuildRecords(records []StoredEmbedding) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.idToRecord = make(map[int64]*StoredEmbedding, len(records))
	for i := range records {
		h.idToRecord[records[i].ID] = &records[i]
	}
}

// Count returns the number of indexed embeddings.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idToRecord)
}

// IsEmpty returns true if the index has no graph data loaded.
func (h *HNSWIndex) IsEmpty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph == nil && h.savedGraph == nil
}
