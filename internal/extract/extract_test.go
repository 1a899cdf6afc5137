package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	t.Setenv("TEST_EXTRACT_KEY", "test-key")
	c, err := NewClient(Config{
		BaseURL:    url,
		APIKeyEnv:  "TEST_EXTRACT_KEY",
		Model:      "test-model",
		Timeout:    5 * time.Second,
		MaxRetries: 2,
	})
	require.NoError(t, err)
	return c
}

func TestExtract_SendsDocumentAsFilePart(t *testing.T) {
	docBytes := []byte("%PDF-1.7 fake content")
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
				File *struct {
					Filename string `json:"filename"`
					FileData string `json:"file_data"`
				} `json:"file"`
			} `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "Extracted document text."}},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	text, err := c.Extract(context.Background(), "notice.pdf", docBytes, "Extract everything.")
	require.NoError(t, err)
	assert.Equal(t, "Extracted document text.", text)

	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 1)
	require.Len(t, got.Messages[0].Content, 2)

	filePart := got.Messages[0].Content[0]
	assert.Equal(t, "file", filePart.Type)
	require.NotNil(t, filePart.File)
	assert.Equal(t, "notice.pdf", filePart.File.Filename)
	require.True(t, strings.HasPrefix(filePart.File.FileData, "data:application/pdf;base64,"))
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(filePart.File.FileData, "data:application/pdf;base64,"))
	require.NoError(t, err)
	assert.Equal(t, docBytes, decoded)

	textPart := got.Messages[0].Content[1]
	assert.Equal(t, "text", textPart.Type)
	assert.Equal(t, "Extract everything.", textPart.Text)
}

func TestExtract_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "text"}}},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	text, err := c.Extract(context.Background(), "doc.pdf", []byte("data"), "instructions")
	require.NoError(t, err)
	assert.Equal(t, "text", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestExtract_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Extract(context.Background(), "doc.pdf", []byte("data"), "instructions")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExtract_EmptyContentIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": ""}}},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Extract(context.Background(), "doc.pdf", []byte("data"), "instructions")
	assert.Error(t, err)
}
