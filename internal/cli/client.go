package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/scout/internal/models"
)

const ownerHeader = "X-Owner-ID"

// Client talks to a running scout server on behalf of one owner.
type Client struct {
	baseURL string
	ownerID string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL, ownerID string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		ownerID: ownerID,
		http:    &http.Client{Timeout: timeout},
	}
}

// Ask posts a question and returns the answer.
func (c *Client) Ask(ctx context.Context, query string, topK int) (*models.Answer, error) {
	body, err := json.Marshal(models.QueryRequest{Query: query, TopK: topK})
	if err != nil {
		return nil, err
	}
	var ans models.Answer
	if err := c.do(ctx, http.MethodPost, "/api/v1/query", "application/json", bytes.NewReader(body), http.StatusOK, &ans); err != nil {
		return nil, err
	}
	return &ans, nil
}

// Upload sends a file as multipart form data.
func (c *Client) Upload(ctx context.Context, fileName string, content io.Reader) (*models.Document, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(fileName))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	var doc models.Document
	if err := c.do(ctx, http.MethodPost, "/api/v1/documents", mw.FormDataContentType(), &buf, http.StatusCreated, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Rebuild asks the server to re-ingest every document of the owner.
func (c *Client) Rebuild(ctx context.Context) (int, error) {
	var resp struct {
		DocumentsQueued int `json:"documentsQueued"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/index/rebuild", "", nil, http.StatusAccepted, &resp); err != nil {
		return 0, err
	}
	return resp.DocumentsQueued, nil
}

// Stats returns the owner's index statistics.
func (c *Client) Stats(ctx context.Context) (*models.IndexStats, error) {
	var stats models.IndexStats
	if err := c.do(ctx, http.MethodGet, "/api/v1/index/stats", "", nil, http.StatusOK, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set(ownerHeader, c.ownerID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		var e struct {
			Error string `json:"error"`
		}
		b, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
