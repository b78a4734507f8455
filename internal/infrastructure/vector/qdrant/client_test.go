package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/docintel/docintel/internal/core/domain"
)

func TestUpsertEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs/points":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	doc := &domain.Document{ID: "doc-1", Filename: "a.txt"}
	chunks := []string{"a", "b"}
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}

	if err := client.Upsert(context.Background(), doc, chunks, vectors); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}
	if err := client.Upsert(context.Background(), doc, chunks, vectors); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
}

func TestUpsertUsesDeterministicPointIDs(t *testing.T) {
	var captured struct {
		Points []struct {
			ID      string         `json:"id"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/docs/points" {
			_ = json.NewDecoder(r.Body).Decode(&captured)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	doc := &domain.Document{ID: "doc-1", Filename: "a.txt"}
	if err := client.Upsert(context.Background(), doc, []string{"a"}, [][]float32{{0.1}}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if len(captured.Points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(captured.Points))
	}
	if got, want := captured.Points[0].ID, pointID("doc-1", 0); got != want {
		t.Fatalf("point ID = %s, want deterministic %s", got, want)
	}
	if got := captured.Points[0].Payload["chunk_index"]; got != float64(0) {
		t.Fatalf("chunk_index payload = %v, want 0", got)
	}
}

func TestSearchConvertsDistanceAndFiltersByThreshold(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/docs/points/search":
			// Euclidean distances: 0.0 -> 1.0, 1.0 -> 0.5, 9.0 -> 0.1.
			_, _ = w.Write([]byte(`{"result":[
				{"score":9.0,"payload":{"doc_id":"d3","filename":"c.txt","chunk_index":0,"text":"far"}},
				{"score":0.0,"payload":{"doc_id":"d1","filename":"a.txt","chunk_index":2,"text":"exact"}},
				{"score":1.0,"payload":{"doc_id":"d2","filename":"b.txt","chunk_index":1,"text":"near"}}
			]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	got, err := client.Search(context.Background(), []float32{0.1}, 5, 0.2, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 results above threshold, got %d", len(got))
	}
	if got[0].DocumentID != "d1" || got[0].Score != 1.0 {
		t.Errorf("first result = %+v, want d1 with score 1.0", got[0])
	}
	if got[1].DocumentID != "d2" || got[1].Score != 0.5 {
		t.Errorf("second result = %+v, want d2 with score 0.5", got[1])
	}
	if got[0].ChunkIndex != 2 {
		t.Errorf("ChunkIndex = %d, want 2", got[0].ChunkIndex)
	}
}

func TestSearchAppliesDocumentFilter(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{"result":[]}`))
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	_, err := client.Search(context.Background(), []float32{0.1}, 5, 0, domain.SearchFilter{DocumentIDs: []string{"d1", "d2"}})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if captured["filter"] == nil {
		t.Fatalf("expected filter in request body, got %v", captured)
	}
}

func TestSearchMissingCollection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	got, err := client.Search(context.Background(), []float32{0.1}, 5, 0.2, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("results = %v, want none for missing collection", got)
	}
}

func TestDeleteByDocumentReturnsCount(t *testing.T) {
	var deleted bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/docs/points/count":
			_, _ = w.Write([]byte(`{"result":{"count":4}}`))
		case "/collections/docs/points/delete":
			deleted = true
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	count, err := client.DeleteByDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("DeleteByDocument() error = %v", err)
	}
	if count != 4 {
		t.Fatalf("count = %d, want 4", count)
	}
	if !deleted {
		t.Fatalf("expected delete request to be issued")
	}
}

func TestDeleteByDocumentMissingCollection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	count, err := client.DeleteByDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("DeleteByDocument() error = %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0 for missing collection", count)
	}
}

func TestStatsCountsUniqueDocuments(t *testing.T) {
	page := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/docs/points/count":
			_, _ = w.Write([]byte(`{"result":{"count":3}}`))
		case "/collections/docs/points/scroll":
			page++
			if page == 1 {
				fmt.Fprint(w, `{"result":{"points":[
					{"payload":{"doc_id":"d1"}},
					{"payload":{"doc_id":"d2"}}
				],"next_page_offset":"cursor-1"}}`)
				return
			}
			fmt.Fprint(w, `{"result":{"points":[{"payload":{"doc_id":"d1"}}],"next_page_offset":null}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	stats, err := client.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalChunks != 3 {
		t.Errorf("TotalChunks = %d, want 3", stats.TotalChunks)
	}
	if stats.UniqueDocuments != 2 {
		t.Errorf("UniqueDocuments = %d, want 2", stats.UniqueDocuments)
	}
}

func TestStatsMissingCollection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	stats, err := client.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalChunks != 0 || stats.UniqueDocuments != 0 {
		t.Fatalf("stats = %+v, want zero values", stats)
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/docs" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	doc := &domain.Document{ID: "doc-1", Filename: "a.txt"}
	err := client.Upsert(context.Background(), doc, []string{"a"}, [][]float32{{0.1, 0.2}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}
