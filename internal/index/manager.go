// Package index owns the lifecycle of isolated vector-index sessions:
// populate, query, destroy.
package index

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"docqa/internal/domain"
	"docqa/internal/vectorindex"
)

// Manager composes the vector index and the embedding collaborator into
// per-session populate/query/destroy operations.
type Manager struct {
	idx         vectorindex.Index
	embedder    domain.Embedder
	batchSize   int
	settleDelay time.Duration
	topK        int
}

func NewManager(idx vectorindex.Index, embedder domain.Embedder, batchSize int, settleDelay time.Duration, topK int) *Manager {
	if batchSize <= 0 {
		batchSize = 100
	}
	if topK <= 0 {
		topK = 5
	}
	return &Manager{idx: idx, embedder: embedder, batchSize: batchSize, settleDelay: settleDelay, topK: topK}
}

var sessionCharRe = regexp.MustCompile(`[^a-z0-9]+`)

// SessionID derives an exclusive session name from a run id and a filename.
func SessionID(runID, filename string) string {
	prefix := runID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	name := sessionCharRe.ReplaceAllString(strings.ToLower(filename), "-")
	name = strings.Trim(name, "-")
	if name == "" {
		name = "doc"
	}
	return prefix + "-" + name
}

// Populate writes segments to the session in fixed-size batches, waits a
// short settling delay, then self-checks that one of the written segments
// is retrievable.
func (m *Manager) Populate(ctx context.Context, session string, segments []domain.Segment) error {
	if len(segments) == 0 {
		return fmt.Errorf("populate %s: no segments", session)
	}
	for start := 0; start < len(segments); start += m.batchSize {
		end := start + m.batchSize
		if end > len(segments) {
			end = len(segments)
		}
		items := make([]vectorindex.Item, 0, end-start)
		for _, seg := range segments[start:end] {
			items = append(items, vectorindex.Item{
				ID:       seg.ID,
				Vector:   seg.Vector,
				Text:     seg.Text,
				Metadata: seg.Metadata,
			})
		}
		if err := m.idx.Upsert(ctx, session, items); err != nil {
			return fmt.Errorf("populate %s: %w", session, err)
		}
	}
	if err := sleepCtx(ctx, m.settleDelay); err != nil {
		return err
	}
	got, err := m.idx.Fetch(ctx, session, []string{segments[0].ID})
	if err != nil {
		return fmt.Errorf("populate %s: self-check: %w", session, err)
	}
	if len(got) == 0 {
		return fmt.Errorf("populate %s: self-check: segment %s not retrievable", session, segments[0].ID)
	}
	return nil
}

// Query embeds the query text and returns up to topK ranked matches from
// the session, highest score first. topK <= 0 uses the configured default.
func (m *Manager) Query(ctx context.Context, session, queryText string, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		topK = m.topK
	}
	vector, err := m.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("query %s: embed: %w", session, err)
	}
	matches, err := m.idx.Search(ctx, session, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("query %s: search: %w", session, err)
	}
	return matches, nil
}

// Destroy erases all segments in the session. Callers attempt it on every
// exit path; a failure here is logged by them, never escalated.
func (m *Manager) Destroy(ctx context.Context, session string) error {
	return m.idx.Reset(ctx, session)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
