package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestQueryMapsDistanceToScoreAndFloors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(queryResponse{
			IDs:       [][]string{{"near", "far"}},
			Documents: [][]string{{"doc-near", "doc-far"}},
			Distances: [][]float64{{0.05, 10.0}}, // scores: ~0.95, ~0.09
			Metadatas: [][]map[string]string{{{}, {}}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "memories")
	results, err := c.Query(context.Background(), []float64{0.1}, 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].ID != "near" {
		t.Fatalf("expected only 'near' above similarity floor, got %+v", results)
	}
}

func TestQueryWhereSendsFilterAndToleratesSparseResponse(t *testing.T) {
	var captured queryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		// No documents/distances/metadatas arrays at all.
		json.NewEncoder(w).Encode(queryResponse{IDs: [][]string{{"m1"}}})
	}))
	defer srv.Close()

	c := New(srv.URL, "memories")
	results, err := c.QueryWhere(context.Background(), []float64{0.1}, 1, map[string]string{"type": "note"})
	if err != nil {
		t.Fatalf("QueryWhere: %v", err)
	}
	if captured.Where["type"] != "note" {
		t.Fatalf("expected where filter sent, got %+v", captured.Where)
	}
	if len(results) != 1 || results[0].ID != "m1" || results[0].Score != 1 {
		t.Fatalf("expected m1 at score 1 with missing distances, got %+v", results)
	}
}

func TestUpsertStripsEmptyMetadata(t *testing.T) {
	var captured upsertRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "memories")
	err := c.Upsert(context.Background(), "m1", []float64{0.1}, "doc", map[string]string{"project": "", "type": "note"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, ok := captured.Metadatas[0]["project"]; ok {
		t.Fatalf("expected empty metadata value stripped, got %+v", captured.Metadatas[0])
	}
	if captured.Metadatas[0]["type"] != "note" {
		t.Fatalf("expected type metadata preserved, got %+v", captured.Metadatas[0])
	}
}
