// Package qdrant talks to Qdrant's REST API and implements the chunk
// store: deterministic per-chunk points, distance-based search with a
// similarity conversion, per-document deletion and corpus statistics.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docintel/docintel/internal/core/domain"
)

// pointNamespace seeds deterministic point IDs so re-indexing a
// document overwrites its previous points instead of duplicating them.
var pointNamespace = uuid.MustParse("8f4e9c52-1b6a-4f6e-9d3a-2c7b5e80f1a4")

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func pointID(documentID string, chunkIndex int) string {
	return uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("%s:%d", documentID, chunkIndex))).String()
}

func (c *Client) Upsert(ctx context.Context, doc *domain.Document, chunks []string, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d vs %d", len(chunks), len(vectors))
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i := range chunks {
		points = append(points, point{
			ID:     pointID(doc.ID, i),
			Vector: vectors[i],
			Payload: map[string]any{
				"doc_id":      doc.ID,
				"filename":    doc.Filename,
				"chunk_index": i,
				"text":        chunks[i],
			},
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	var resp struct{}
	return c.do(ctx, http.MethodPut, url, map[string]any{"points": points}, &resp)
}

// Search converts Qdrant's Euclidean distance d into a similarity
// s = 1/(1+d), drops results below the threshold and returns the rest
// ordered by similarity descending.
func (c *Client) Search(
	ctx context.Context,
	queryVector []float32,
	limit int,
	scoreThreshold float64,
	filter domain.SearchFilter,
) ([]domain.RetrievalResult, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	if len(filter.DocumentIDs) > 0 {
		ids := make([]any, 0, len(filter.DocumentIDs))
		for _, id := range filter.DocumentIDs {
			ids = append(ids, id)
		}
		reqBody["filter"] = map[string]any{
			"must": []map[string]any{
				{
					"key": "doc_id",
					"match": map[string]any{
						"any": ids,
					},
				},
			},
		}
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, url, reqBody, &searchResp); err != nil {
		// No collection yet means nothing has been indexed.
		if isNotFound(err) {
			return []domain.RetrievalResult{}, nil
		}
		return nil, err
	}

	out := make([]domain.RetrievalResult, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		similarity := 1.0 / (1.0 + r.Score)
		if similarity < scoreThreshold {
			continue
		}
		out = append(out, domain.RetrievalResult{
			DocumentID: getStringPayload(r.Payload, "doc_id"),
			Filename:   getStringPayload(r.Payload, "filename"),
			ChunkIndex: getIntPayload(r.Payload, "chunk_index"),
			Text:       getStringPayload(r.Payload, "text"),
			Score:      similarity,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// DeleteByDocument removes all points belonging to a document and
// reports how many there were. A missing collection counts as zero.
func (c *Client) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	filter := map[string]any{
		"must": []map[string]any{
			{
				"key": "doc_id",
				"match": map[string]any{
					"value": documentID,
				},
			},
		},
	}

	countURL := fmt.Sprintf("%s/collections/%s/points/count", c.baseURL, c.collection)
	var countResp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := c.do(ctx, http.MethodPost, countURL, map[string]any{"filter": filter, "exact": true}, &countResp)
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	if countResp.Result.Count == 0 {
		return 0, nil
	}

	deleteURL := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, c.collection)
	var deleteResp struct{}
	if err := c.do(ctx, http.MethodPost, deleteURL, map[string]any{"filter": filter}, &deleteResp); err != nil {
		return 0, err
	}
	return countResp.Result.Count, nil
}

// Stats scrolls payloads to count distinct documents alongside the
// exact point total.
func (c *Client) Stats(ctx context.Context) (domain.IndexStats, error) {
	countURL := fmt.Sprintf("%s/collections/%s/points/count", c.baseURL, c.collection)
	var countResp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, countURL, map[string]any{"exact": true}, &countResp); err != nil {
		if isNotFound(err) {
			return domain.IndexStats{}, nil
		}
		return domain.IndexStats{}, err
	}

	scrollURL := fmt.Sprintf("%s/collections/%s/points/scroll", c.baseURL, c.collection)
	seen := make(map[string]struct{})
	var offset any
	for {
		reqBody := map[string]any{
			"limit":        256,
			"with_payload": []string{"doc_id"},
			"with_vector":  false,
		}
		if offset != nil {
			reqBody["offset"] = offset
		}

		var scrollResp struct {
			Result struct {
				Points []struct {
					Payload map[string]any `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := c.do(ctx, http.MethodPost, scrollURL, reqBody, &scrollResp); err != nil {
			return domain.IndexStats{}, err
		}

		for _, p := range scrollResp.Result.Points {
			if id := getStringPayload(p.Payload, "doc_id"); id != "" {
				seen[id] = struct{}{}
			}
		}
		if scrollResp.Result.NextPageOffset == nil || len(scrollResp.Result.Points) == 0 {
			break
		}
		offset = scrollResp.Result.NextPageOffset
	}

	return domain.IndexStats{
		TotalChunks:     countResp.Result.Count,
		UniqueDocuments: len(seen),
	}, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Euclid",
		},
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := newJSONRequest(ctx, http.MethodPut, url, reqBody)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// 200/201 for create, 409 if it already exists.
	if resp.StatusCode == http.StatusConflict {
		c.markCollectionEnsured(vectorSize)
		return nil
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return fmt.Errorf("qdrant ensure collection status: %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("qdrant ensure collection status: %s", resp.Status)
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func (c *Client) do(ctx context.Context, method, url string, reqBody any, out any) error {
	req, err := newJSONRequest(ctx, method, url, reqBody)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return &statusError{status: resp.StatusCode, message: fmt.Sprintf("qdrant status %s: %s", resp.Status, msg)}
		}
		return &statusError{status: resp.StatusCode, message: fmt.Sprintf("qdrant status %s", resp.Status)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return fmt.Errorf("decode qdrant response: %w", err)
		}
	}
	return nil
}

type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string { return e.message }

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.status == http.StatusNotFound
}

func newJSONRequest(ctx context.Context, method, url string, reqBody any) (*http.Request, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
