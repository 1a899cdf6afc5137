package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/vectorindex"
)

// Store is an in-memory vector index using brute-force cosine similarity.
// Suitable for tests and local runs without a remote index.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]map[string]vectorindex.Item
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]map[string]vectorindex.Item)}
}

// Upsert writes items to the session, overwriting existing ids.
func (s *Store) Upsert(_ context.Context, session string, items []vectorindex.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[session]
	if !ok {
		sess = make(map[string]vectorindex.Item, len(items))
		s.sessions[session] = sess
	}
	for _, it := range items {
		sess[it.ID] = it
	}
	return nil
}

// Search returns up to topK matches ordered by cosine similarity.
func (s *Store) Search(_ context.Context, session string, vector []float64, topK int) ([]domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	sess := s.sessions[session]
	matches := make([]domain.Match, 0, len(sess))
	for _, it := range sess {
		matches = append(matches, domain.Match{
			ID:       it.ID,
			Score:    cosine(it.Vector, vector),
			Text:     it.Text,
			Metadata: it.Metadata,
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

// Fetch returns the stored items for the given ids, skipping unknown ones.
func (s *Store) Fetch(_ context.Context, session string, ids []string) ([]vectorindex.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess := s.sessions[session]
	var out []vectorindex.Item
	for _, id := range ids {
		if it, ok := sess[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

// Reset erases the whole session.
func (s *Store) Reset(_ context.Context, session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, session)
	return nil
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
