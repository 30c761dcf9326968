// Package embed implements the Embedder collaborator: a thin HTTP client
// over an external embedding service.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jmylchreest/eva-memory/pkg/httputil"
)

// Timeout is the per-call budget for an embedding request.
const Timeout = 10 * time.Second

// Client embeds text via POST {model, input} -> {embeddings: [[float,...]]}.
type Client struct {
	baseURL string
	model   string
	http    *httputil.Client
}

// New returns a Client bound to baseURL, requesting embeddings for model.
func New(baseURL, model string) *Client {
	return &Client{
		baseURL: baseURL,
		model:   model,
		http:    httputil.NewClient(httputil.WithHTTPTimeout(Timeout)),
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Embed returns a single text's embedding, or (nil, nil) on timeout or a
// non-200 response. Callers treat a nil vector as "no embedding
// available" and degrade (skip dedup, keep the record queued), not as an
// error to propagate.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Model: c.model, Input: []string{text}})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil // transient network failure: treated as null embedding
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding embedder response: %w", err)
	}
	if len(out.Embeddings) == 0 {
		return nil, nil
	}
	return out.Embeddings[0], nil
}
