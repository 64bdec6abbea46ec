package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/duckling-go/internal/config"
)

func TestDocumentTool_Success(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/documents/", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"document":{"id":7,"title":"T","labels":[{"id":1,"name":"a","color":"#fff"}]}}`))
	}))
	defer srv.Close()

	tool := NewDocumentTool(config.DocumentsConfig{BaseURL: srv.URL, CreatorID: 3})
	out := tool.Run(context.Background(), `{"title":"T","description":"D","labels":["a"]}`)

	require.Contains(t, out, "T")
	require.Contains(t, out, `["a"]`)
	require.Equal(t, `Document created: {"title":"T","labels":["a"]}`, out)

	require.Equal(t, "T", got["title"])
	require.Equal(t, "D", got["description"])
	require.Equal(t, "text", got["document_type"])
	require.EqualValues(t, 3, got["creator_id"])
	require.Equal(t, []any{"a"}, got["labels"])
	require.NotContains(t, got, "content")
}

func TestDocumentTool_StringLabels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"document":{"title":"Notes","labels":["x","y"]}}`))
	}))
	defer srv.Close()

	tool := NewDocumentTool(config.DocumentsConfig{BaseURL: srv.URL + "/"})
	out := tool.Run(context.Background(), `{"title":"Notes","description":"d","content":"body","labels":["x","y"]}`)
	require.Equal(t, `Document created: {"title":"Notes","labels":["x","y"]}`, out)
}

func TestDocumentTool_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewDocumentClient(config.DocumentsConfig{BaseURL: url})
	_, createErr := client.Create(context.Background(), Document{Title: "T"})
	require.Error(t, createErr)

	tool := NewDocumentTool(config.DocumentsConfig{BaseURL: url})
	var out string
	require.NotPanics(t, func() {
		out = tool.Run(context.Background(), `{"title":"T","description":"D","labels":["a"]}`)
	})
	require.Contains(t, out, "Failed to create document")
	require.Contains(t, out, "connection refused")
}

func TestDocumentTool_ServiceRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "labels must not be empty", http.StatusBadRequest)
	}))
	defer srv.Close()

	tool := NewDocumentTool(config.DocumentsConfig{BaseURL: srv.URL})
	out := tool.Run(context.Background(), `{"title":"T","description":"D","labels":[]}`)
	require.Contains(t, out, "Failed to create document")
	require.Contains(t, out, "400")
	require.Contains(t, out, "labels must not be empty")
}

func TestDocumentTool_BadArguments(t *testing.T) {
	tool := NewDocumentToolWith(nil)
	require.Contains(t, tool.Run(context.Background(), `not json`), "invalid arguments")
	require.Contains(t, tool.Run(context.Background(), `{"description":"D"}`), "title is required")
}

func TestDocumentTool_Schema(t *testing.T) {
	tool := NewDocumentToolWith(nil)
	require.Equal(t, DocumentToolName, tool.Name())

	var schema map[string]any
	require.NoError(t, json.Unmarshal(tool.Parameters(), &schema))
	props := schema["properties"].(map[string]any)
	require.Contains(t, props, "title")
	require.Contains(t, props, "description")
	require.Contains(t, props, "content")
	require.Contains(t, props, "labels")
}
