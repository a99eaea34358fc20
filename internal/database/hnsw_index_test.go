package database

import (
	"testing"
)

func testEmbedding(id, identityID int64, vec []float32) StoredEmbedding {
	return StoredEmbedding{
		ID:         id,
		IdentityID: identityID,
		Embedding:  vec,
		Dim:        len(vec),
	}
}

func TestHNSWIndexBuildAndSearch(t *testing.T) {
	records := []StoredEmbedding{
		testEmbedding(1, 10, []float32{0.0, 0.0, 0.0}),
		testEmbedding(2, 10, []float32{0.1, 0.0, 0.0}),
		testEmbedding(3, 20, []float32{1.0, 1.0, 1.0}),
	}

	idx := NewHNSWIndex()
	if err := idx.BuildFromEmbeddings(records); err != nil {
		t.Fatalf("failed to build index: %v", err)
	}

	if idx.Count() != 3 {
		t.Errorf("expected 3 indexed embeddings, got %d", idx.Count())
	}

	ids, distances, err := idx.Search([]float32{0.05, 0.0, 0.0}, 2)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 results, got %d", len(ids))
	}

	// The two embeddings of identity 10 are closest.
	for _, id := range ids {
		rec := idx.GetRecord(id)
		if rec == nil {
			t.Fatalf("record %d missing from index", id)
		}
		if rec.IdentityID != 10 {
			t.Errorf("expected identity 10 in nearest results, got %d", rec.IdentityID)
		}
	}

	if distances[0] > distances[1] {
		t.Errorf("expected distances in ascending order, got %v", distances)
	}
}

func TestHNSWIndexEmptyBuild(t *testing.T) {
	idx := NewHNSWIndex()
	if err := idx.BuildFromEmbeddings(nil); err != nil {
		t.Fatalf("failed to build empty index: %v", err)
	}

	if !idx.IsEmpty() {
		t.Error("expected index to be empty")
	}

	if _, _, err := idx.Search([]float32{1, 2, 3}, 1); err == nil {
		t.Error("expected error searching uninitialized index")
	}
}

func TestHNSWIndexAdd(t *testing.T) {
	idx := NewHNSWIndex()

	rec := testEmbedding(7, 42, []float32{0.5, 0.5})
	if err := idx.Add(&rec); err != nil {
		t.Fatalf("failed to add record: %v", err)
	}

	if idx.Count() != 1 {
		t.Errorf("expected 1 indexed embedding, got %d", idx.Count())
	}

	ids, _, err := idx.Search([]float32{0.5, 0.5}, 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != 7 {
		t.Errorf("expected to find record 7, got %v", ids)
	}
}

func TestHNSWIndexDeleteByIdentity(t *testing.T) {
	records := []StoredEmbedding{
		testEmbedding(1, 10, []float32{0.0, 0.0}),
		testEmbedding(2, 10, []float32{0.1, 0.0}),
		testEmbedding(3, 20, []float32{1.0, 1.0}),
	}

	idx := NewHNSWIndex()
	if err := idx.BuildFromEmbeddings(records); err != nil {
		t.Fatalf("failed to build index: %v", err)
	}

	removed := idx.DeleteByIdentity(10)
	if removed != 2 {
		t.Errorf("expected 2 removed embeddings, got %d", removed)
	}
	if idx.Count() != 1 {
		t.Errorf("expected 1 remaining embedding, got %d", idx.Count())
	}

	// Searching near the deleted identity must not resurrect its records.
	ids, _, err := idx.Search([]float32{0.05, 0.0}, 3)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	for _, id := range ids {
		if id == 1 || id == 2 {
			t.Errorf("deleted record %d returned from search", id)
		}
	}
}

func TestHNSWIndexSaveAndLoad(t *testing.T) {
	records := []StoredEmbedding{
		testEmbedding(1, 10, []float32{0.0, 0.0, 1.0}),
		testEmbedding(2, 20, []float32{1.0, 0.0, 0.0}),
	}

	idx := NewHNSWIndex()
	if err := idx.BuildFromEmbeddings(records); err != nil {
		t.Fatalf("failed to build index: %v", err)
	}

	path := t.TempDir() + "/index.hnsw"
	idx.SetPath(path)
	if err := idx.Save(); err != nil {
		t.Fatalf("failed to save index: %v", err)
	}

	loaded := NewHNSWIndex()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("failed to load index: %v", err)
	}
	loaded.RebuildRecords(records)

	ids, _, err := loaded.Search([]float32{0.9, 0.0, 0.0}, 1)
	if err != nil {
		t.Fatalf("search on loaded index failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != 2 {
		t.Errorf("expected record 2 as nearest, got %v", ids)
	}
}

func TestHNSWIndexLoadMissingFile(t *testing.T) {
	idx := NewHNSWIndex()
	if err := idx.Load(t.TempDir() + "/missing.hnsw"); err != nil {
		t.Errorf("expected missing index file to be tolerated, got %v", err)
	}
	if !idx.IsEmpty() {
		t.Error("expected empty index after loading missing file")
	}
}
