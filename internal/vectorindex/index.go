package vectorindex

import (
	"context"

	"docqa/internal/domain"
)

// Item is one stored point: id, vector and payload.
type Item struct {
	ID       string
	Vector   []float64
	Text     string
	Metadata domain.SegmentMetadata
}

// Index persists vectors in isolated named sessions and supports
// similarity search. Sessions are created implicitly on first upsert and
// erased by Reset; queries against one session never see another's items.
type Index interface {
	Upsert(ctx context.Context, session string, items []Item) error
	Search(ctx context.Context, session string, vector []float64, topK int) ([]domain.Match, error)
	Fetch(ctx context.Context, session string, ids []string) ([]Item, error)
	Reset(ctx context.Context, session string) error
}
