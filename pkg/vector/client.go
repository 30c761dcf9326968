// Package vector implements the VectorStore collaborator: upsert, query,
// and delete against a Chroma-shaped collection HTTP API.
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jmylchreest/eva-memory/pkg/httputil"
)

// Timeout is the per-call budget for upsert/query/delete.
const Timeout = 10 * time.Second

// SimilarityFloor drops query results below this mapped score.
const SimilarityFloor = 0.15

// Client talks to one collection of a Chroma-shaped vector service.
type Client struct {
	baseURL    string
	collection string
	http       *httputil.Client
}

// New returns a Client bound to baseURL/collection.
func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    baseURL,
		collection: collection,
		http:       httputil.NewClient(httputil.WithHTTPTimeout(Timeout)),
	}
}

func (c *Client) endpoint(suffix string) string {
	return fmt.Sprintf("%s/collections/%s/%s", c.baseURL, c.collection, suffix)
}

// sanitizeMetadata drops null/empty values, which vector stores frequently
// reject.
func sanitizeMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

type upsertRequest struct {
	IDs        []string            `json:"ids"`
	Embeddings [][]float64         `json:"embeddings"`
	Documents  []string            `json:"documents"`
	Metadatas  []map[string]string `json:"metadatas"`
}

// Upsert writes one embedding/document/metadata triple keyed by id.
func (c *Client) Upsert(ctx context.Context, id string, embedding []float64, document string, metadata map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	body, err := json.Marshal(upsertRequest{
		IDs:        []string{id},
		Embeddings: [][]float64{embedding},
		Documents:  []string{document},
		Metadatas:  []map[string]string{sanitizeMetadata(metadata)},
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("upsert"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("vector upsert failed: HTTP %d", resp.StatusCode)
	}
	return nil
}

type queryRequest struct {
	QueryEmbeddings [][]float64       `json:"query_embeddings"`
	NResults        int               `json:"n_results"`
	Include         []string          `json:"include"`
	Where           map[string]string `json:"where,omitempty"`
}

type queryResponse struct {
	IDs       [][]string            `json:"ids"`
	Documents [][]string            `json:"documents"`
	Distances [][]float64           `json:"distances"`
	Metadatas [][]map[string]string `json:"metadatas"`
}

// QueryResult is a single scored hit, already mapped from L2 distance to
// similarity and floored.
type QueryResult struct {
	ID       string
	Document string
	Score    float64
	Metadata map[string]string
}

// Query returns the n nearest neighbours of embedding, mapping L2 distance
// d to score 1/(1+d) and dropping results below SimilarityFloor.
func (c *Client) Query(ctx context.Context, embedding []float64, n int) ([]QueryResult, error) {
	return c.QueryWhere(ctx, embedding, n, nil)
}

// QueryWhere is Query with a metadata filter, used by the dedup check to
// restrict candidates to memories of the same type.
func (c *Client) QueryWhere(ctx context.Context, embedding []float64, n int, where map[string]string) ([]QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	body, err := json.Marshal(queryRequest{
		QueryEmbeddings: [][]float64{embedding},
		NResults:        n,
		Include:         []string{"documents", "distances", "metadatas"},
		Where:           sanitizeMetadata(where),
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("query"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("vector query failed: HTTP %d", resp.StatusCode)
	}

	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding vector query response: %w", err)
	}
	if len(out.IDs) == 0 {
		return nil, nil
	}

	var distances []float64
	if len(out.Distances) > 0 {
		distances = out.Distances[0]
	}
	var documents []string
	if len(out.Documents) > 0 {
		documents = out.Documents[0]
	}
	var metadatas []map[string]string
	if len(out.Metadatas) > 0 {
		metadatas = out.Metadatas[0]
	}

	var results []QueryResult
	for i, id := range out.IDs[0] {
		d := 0.0
		if i < len(distances) {
			d = distances[i]
		}
		score := 1 / (1 + d)
		if score < SimilarityFloor {
			continue
		}
		doc := ""
		if i < len(documents) {
			doc = documents[i]
		}
		var meta map[string]string
		if i < len(metadatas) {
			meta = metadatas[i]
		}
		results = append(results, QueryResult{ID: id, Document: doc, Score: score, Metadata: meta})
	}
	return results, nil
}

// Delete removes an id from the collection. The graph remains the
// authority on activeness; this is best-effort housekeeping.
func (c *Client) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	body, err := json.Marshal(map[string][]string{"ids": {id}})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("delete"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("vector delete failed: HTTP %d", resp.StatusCode)
	}
	return nil
}

// HealthCheck is a cheap liveness probe used by the queue drain loop,
// expected to be called with a short-deadline context by the caller.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/heartbeat", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("vector health check failed: HTTP %d", resp.StatusCode)
	}
	return nil
}
