package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/comigor/duckling-go/internal/config"
)

// Document is what the agent asks the document service to create.
type Document struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content,omitempty"`
	Labels      []string `json:"labels"`
}

// CreatedDocument is the part of the service's answer the relay reads back.
type CreatedDocument struct {
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
}

type createDocumentRequest struct {
	Document
	DocumentType string `json:"document_type"`
	CreatorID    int    `json:"creator_id"`
}

// DocumentClient is a client for the document web app API
type DocumentClient struct {
	cfg    config.DocumentsConfig
	client *http.Client
}

// NewDocumentClient creates a new DocumentClient
func NewDocumentClient(cfg config.DocumentsConfig) *DocumentClient {
	return &DocumentClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// Create posts a new text document.
func (c *DocumentClient) Create(ctx context.Context, doc Document) (*CreatedDocument, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/documents/"

	if doc.Labels == nil {
		doc.Labels = []string{}
	}
	body, err := json.Marshal(createDocumentRequest{
		Document:     doc,
		DocumentType: "text",
		CreatorID:    c.cfg.CreatorID,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var result struct {
		Document *struct {
			Title  string          `json:"title"`
			Labels json.RawMessage `json:"labels"`
		} `json:"document"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if result.Document == nil {
		return nil, fmt.Errorf("response has no document")
	}

	labels, err := labelNames(result.Document.Labels)
	if err != nil {
		return nil, err
	}
	return &CreatedDocument{Title: result.Document.Title, Labels: labels}, nil
}

// labelNames accepts either ["a","b"] or [{"name":"a"},...].
func labelNames(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []string{}, nil
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err == nil {
		return names, nil
	}
	var objs []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &objs); err != nil {
		return nil, fmt.Errorf("decode labels: %w", err)
	}
	names = make([]string, len(objs))
	for i, o := range objs {
		names[i] = o.Name
	}
	return names, nil
}
