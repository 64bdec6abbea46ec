package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/comigor/duckling-go/internal/config"
	"github.com/comigor/duckling-go/internal/logger"
)

// DocumentToolName is the name the model uses to create documents.
const DocumentToolName = "create_document"

// DocumentCreator creates documents in the document service.
type DocumentCreator interface {
	Create(ctx context.Context, doc Document) (*CreatedDocument, error)
}

// DocumentTool creates a document in the document web app.
type DocumentTool struct {
	creator DocumentCreator
}

// NewDocumentTool creates a DocumentTool backed by the configured document service.
func NewDocumentTool(cfg config.DocumentsConfig) *DocumentTool {
	return &DocumentTool{creator: NewDocumentClient(cfg)}
}

// NewDocumentToolWith creates a DocumentTool backed by creator.
func NewDocumentToolWith(creator DocumentCreator) *DocumentTool {
	return &DocumentTool{creator: creator}
}

func (t *DocumentTool) Name() string { return DocumentToolName }

func (t *DocumentTool) Description() string {
	return "Create a new document with title, description, content, and labels"
}

func (t *DocumentTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "title": {"type": "string", "description": "The title of the document"},
    "description": {"type": "string", "description": "Brief description of the document"},
    "content": {"type": "string", "description": "Text content of the document"},
    "labels": {"type": "array", "items": {"type": "string", "description": "Tag for the document"}, "description": "Tags for the document"}
  },
  "required": ["title", "description", "labels"]
}`)
}

// Run creates the document and reports the outcome as text.
func (t *DocumentTool) Run(ctx context.Context, args string) string {
	var doc Document
	if err := json.Unmarshal([]byte(args), &doc); err != nil {
		return failure(fmt.Errorf("invalid arguments: %w", err))
	}
	if strings.TrimSpace(doc.Title) == "" {
		return failure(fmt.Errorf("title is required"))
	}

	created, err := t.creator.Create(ctx, doc)
	if err != nil {
		logger.L.Warn("document creation failed", "title", doc.Title, "error", err)
		return failure(err)
	}

	summary, err := json.Marshal(created)
	if err != nil {
		return failure(err)
	}
	logger.L.Info("document created", "title", created.Title, "labels", created.Labels)
	return fmt.Sprintf("Document created: %s", summary)
}

func failure(err error) string {
	return fmt.Sprintf("Failed to create document: %s", err.Error())
}
