// Package qdrant is a minimal REST client to qdrant, mapping each index
// session onto its own collection. It assumes cosine distance and creates
// collections lazily on first upsert.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"docqa/internal/domain"
	"docqa/internal/vectorindex"
)

type Store struct {
	url    string
	apiKey string
	client *http.Client

	mu      sync.Mutex
	created map[string]bool
}

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Store{
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		created: make(map[string]bool),
	}
}

// pointID derives a deterministic qdrant-legal uuid from a segment id, so
// re-upserting the same segment overwrites rather than duplicates.
func pointID(segmentID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(segmentID)).String()
}

func (s *Store) ensureCollection(ctx context.Context, session string, dimension int) error {
	s.mu.Lock()
	done := s.created[session]
	s.mu.Unlock()
	if done {
		return nil
	}
	if dimension <= 0 {
		return errors.New("qdrant: invalid vector dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	// 200 OK also when the collection already exists with the same schema.
	if err := s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, session), body, nil); err != nil {
		return err
	}
	s.mu.Lock()
	s.created[session] = true
	s.mu.Unlock()
	return nil
}

func (s *Store) Upsert(ctx context.Context, session string, items []vectorindex.Item) error {
	if len(items) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, session, len(items[0].Vector)); err != nil {
		return err
	}
	points := make([]map[string]any, len(items))
	for i, it := range items {
		points[i] = map[string]any{
			"id":     pointID(it.ID),
			"vector": it.Vector,
			"payload": map[string]any{
				"segment_id":  it.ID,
				"text":        it.Text,
				"filename":    it.Metadata.Filename,
				"slice_index": it.Metadata.SliceIndex,
				"slice_total": it.Metadata.SliceTotal,
				"position":    it.Metadata.Position,
				"categories":  it.Metadata.Categories,
			},
		}
	}
	body := map[string]any{"points": points}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, session), body, nil)
}

func (s *Store) Search(ctx context.Context, session string, vector []float64, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", s.url, session), req, &resp); err != nil {
		return nil, err
	}
	matches := make([]domain.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		m := domain.Match{Score: r.Score}
		m.ID, m.Text, m.Metadata = decodePayload(r.Payload)
		matches = append(matches, m)
	}
	return matches, nil
}

func (s *Store) Fetch(ctx context.Context, session string, ids []string) ([]vectorindex.Item, error) {
	pids := make([]string, len(ids))
	for i, id := range ids {
		pids[i] = pointID(id)
	}
	req := map[string]any{
		"ids":          pids,
		"with_payload": true,
		"with_vector":  true,
	}
	var resp struct {
		Result []struct {
			Vector  []float64      `json:"vector"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points", s.url, session), req, &resp); err != nil {
		return nil, err
	}
	items := make([]vectorindex.Item, 0, len(resp.Result))
	for _, r := range resp.Result {
		it := vectorindex.Item{Vector: r.Vector}
		it.ID, it.Text, it.Metadata = decodePayload(r.Payload)
		items = append(items, it)
	}
	return items, nil
}

// Reset drops the session's collection, erasing all points.
func (s *Store) Reset(ctx context.Context, session string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/collections/%s", s.url, session), nil)
	if err != nil {
		return err
	}
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("qdrant DELETE collection %s failed: %s", session, resp.Status)
	}
	s.mu.Lock()
	delete(s.created, session)
	s.mu.Unlock()
	return nil
}

func decodePayload(payload map[string]any) (id, text string, md domain.SegmentMetadata) {
	if v, ok := payload["segment_id"].(string); ok {
		id = v
	}
	if v, ok := payload["text"].(string); ok {
		text = v
	}
	if v, ok := payload["filename"].(string); ok {
		md.Filename = v
	}
	if v, ok := payload["slice_index"].(float64); ok {
		md.SliceIndex = int(v)
	}
	if v, ok := payload["slice_total"].(float64); ok {
		md.SliceTotal = int(v)
	}
	if v, ok := payload["position"].(float64); ok {
		md.Position = int(v)
	}
	if vs, ok := payload["categories"].([]any); ok {
		for _, v := range vs {
			if c, ok := v.(string); ok {
				md.Categories = append(md.Categories, c)
			}
		}
	}
	return id, text, md
}

func (s *Store) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
}

func (s *Store) putJSON(ctx context.Context, url string, body, out any) error {
	return s.doJSON(ctx, http.MethodPut, url, body, out)
}

func (s *Store) postJSON(ctx context.Context, url string, body, out any) error {
	return s.doJSON(ctx, http.MethodPost, url, body, out)
}

func (s *Store) doJSON(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
