// Package server exposes the pipeline over HTTP: a multipart ingestion
// endpoint answering with a newline-delimited JSON progress stream.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/pipeline"
)

// Server handles ingestion requests and streams progress events.
type Server struct {
	orch        *pipeline.Orchestrator
	maxUpload   int64
	maxFileSize int64
}

func New(orch *pipeline.Orchestrator, maxUploadBytes, maxFileBytes int64) *Server {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 64 << 20
	}
	if maxFileBytes <= 0 {
		maxFileBytes = 16 << 20
	}
	return &Server{orch: orch, maxUpload: maxUploadBytes, maxFileSize: maxFileBytes}
}

// Routes returns the HTTP handler for all endpoints.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/process", s.handleProcess)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "malformed multipart request", http.StatusBadRequest)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	queries := r.MultipartForm.Value["queries"]
	var trimmed []string
	for _, q := range queries {
		if q = strings.TrimSpace(q); q != "" {
			trimmed = append(trimmed, q)
		}
	}
	if len(trimmed) == 0 {
		http.Error(w, "at least one query is required", http.StatusBadRequest)
		return
	}

	files, err := s.readFiles(r.MultipartForm.File["files"])
	if err != nil {
		var tooLarge fileTooLargeError
		if errors.As(err, &tooLarge) {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(files) == 0 {
		http.Error(w, "at least one PDF file is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	pub := &ndjsonPublisher{w: w, flusher: flusher}
	// Terminal events are the pipeline's job; a cancelled request context
	// is a clean early exit (the client is gone, nobody is listening).
	_ = s.orch.Run(r.Context(), files, trimmed, pub)
}

type fileTooLargeError struct{ name string }

func (e fileTooLargeError) Error() string {
	return fmt.Sprintf("file %s exceeds the size limit", e.name)
}

// readFiles validates and loads the uploaded parts. Both the extension and
// the declared MIME type must identify a PDF; anything else is rejected
// before any processing starts.
func (s *Server) readFiles(headers []*multipart.FileHeader) ([]pipeline.Input, error) {
	var inputs []pipeline.Input
	for _, hdr := range headers {
		name := filepath.Base(hdr.Filename)
		if name == "" || name == "." {
			return nil, fmt.Errorf("file with empty name rejected")
		}
		if !strings.EqualFold(filepath.Ext(name), ".pdf") {
			return nil, fmt.Errorf("file %s rejected: only PDF files are accepted", name)
		}
		ct := hdr.Header.Get("Content-Type")
		if mediaType := strings.TrimSpace(strings.Split(ct, ";")[0]); mediaType != "application/pdf" {
			return nil, fmt.Errorf("file %s rejected: content type %q is not application/pdf", name, ct)
		}
		if hdr.Size > s.maxFileSize {
			return nil, fileTooLargeError{name: name}
		}

		f, err := hdr.Open()
		if err != nil {
			return nil, fmt.Errorf("file %s could not be read", name)
		}
		data, err := io.ReadAll(io.LimitReader(f, s.maxFileSize+1))
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("file %s could not be read", name)
		}
		if int64(len(data)) > s.maxFileSize {
			return nil, fileTooLargeError{name: name}
		}
		inputs = append(inputs, pipeline.Input{Filename: name, Data: data})
	}
	return inputs, nil
}

// ndjsonPublisher writes one JSON object per line and flushes after each,
// so consumers can parse the stream line-by-line as it arrives.
type ndjsonPublisher struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
}

func (p *ndjsonPublisher) Publish(ev domain.ProgressEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.w.Write(append(data, '\n')); err != nil {
		return err
	}
	p.flusher.Flush()
	return nil
}
