package index

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/vectorindex"
	"docqa/internal/vectorindex/memory"
)

// hashEmbedder derives a deterministic vector from the text, so identical
// texts embed identically and self-consistency can be asserted.
type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	sum := h.Sum32()
	vector := make([]float64, 8)
	for i := range vector {
		vector[i] = float64((sum>>(i*4))&0xF) + 1
	}
	return vector, nil
}

func (e hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (hashEmbedder) Dimension() int { return 8 }

// recordingIndex wraps another index and records upsert batch sizes and
// reset calls.
type recordingIndex struct {
	vectorindex.Index
	mu         sync.Mutex
	batches    []int
	resets     int
	emptyFetch bool
}

func (r *recordingIndex) Upsert(ctx context.Context, session string, items []vectorindex.Item) error {
	r.mu.Lock()
	r.batches = append(r.batches, len(items))
	r.mu.Unlock()
	return r.Index.Upsert(ctx, session, items)
}

func (r *recordingIndex) Fetch(ctx context.Context, session string, ids []string) ([]vectorindex.Item, error) {
	if r.emptyFetch {
		return nil, nil
	}
	return r.Index.Fetch(ctx, session, ids)
}

func (r *recordingIndex) Reset(ctx context.Context, session string) error {
	r.mu.Lock()
	r.resets++
	r.mu.Unlock()
	return r.Index.Reset(ctx, session)
}

func segmentsFor(texts ...string) []domain.Segment {
	var emb hashEmbedder
	segs := make([]domain.Segment, len(texts))
	for i, text := range texts {
		v, _ := emb.Embed(context.Background(), text)
		segs[i] = domain.Segment{
			ID:     SessionID("run", "doc.pdf") + "-c" + string(rune('a'+i)),
			Text:   text,
			Vector: v,
			Metadata: domain.SegmentMetadata{
				Filename: "doc.pdf",
				Position: i,
			},
		}
	}
	return segs
}

func TestSessionID(t *testing.T) {
	assert.Equal(t, "abcd1234-my-file-pdf", SessionID("abcd1234efgh", "My File.PDF"))
	assert.Equal(t, "run-doc", SessionID("run", "!!!"))
	assert.NotEqual(t, SessionID("run1", "a.pdf"), SessionID("run2", "a.pdf"))
}

func TestManager_PopulateThenQuerySelfConsistency(t *testing.T) {
	m := NewManager(memory.NewStore(), hashEmbedder{}, 100, 0, 5)
	ctx := context.Background()

	segs := segmentsFor(
		"Die Abgabefrist endet am Jahresende.",
		"Der Zuschlag erfolgt nach Pruefung aller Angebote.",
		"Die Vergabestelle ist werktags erreichbar.",
	)
	require.NoError(t, m.Populate(ctx, "sess", segs))

	matches, err := m.Query(ctx, "sess", segs[1].Text, 3)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, segs[1].ID, matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
}

func TestManager_QueryAfterDestroyReturnsNothing(t *testing.T) {
	m := NewManager(memory.NewStore(), hashEmbedder{}, 100, 0, 5)
	ctx := context.Background()

	segs := segmentsFor("Ein Dokument mit genau einem Segment.")
	require.NoError(t, m.Populate(ctx, "sess", segs))
	require.NoError(t, m.Destroy(ctx, "sess"))

	matches, err := m.Query(ctx, "sess", segs[0].Text, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestManager_PopulateWritesInBatches(t *testing.T) {
	rec := &recordingIndex{Index: memory.NewStore()}
	m := NewManager(rec, hashEmbedder{}, 3, 0, 5)

	segs := segmentsFor("one", "two", "three", "four", "five", "six", "seven")
	require.NoError(t, m.Populate(context.Background(), "sess", segs))
	assert.Equal(t, []int{3, 3, 1}, rec.batches)
}

func TestManager_PopulateSelfCheckFailure(t *testing.T) {
	rec := &recordingIndex{Index: memory.NewStore(), emptyFetch: true}
	m := NewManager(rec, hashEmbedder{}, 100, 0, 5)

	err := m.Populate(context.Background(), "sess", segmentsFor("some segment text"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "self-check")
}

func TestManager_PopulateEmpty(t *testing.T) {
	m := NewManager(memory.NewStore(), hashEmbedder{}, 100, 0, 5)
	assert.Error(t, m.Populate(context.Background(), "sess", nil))
}

func TestManager_QueryDefaultTopK(t *testing.T) {
	m := NewManager(memory.NewStore(), hashEmbedder{}, 100, 0, 2)
	ctx := context.Background()

	segs := segmentsFor("alpha text body", "bravo text body", "candy text body")
	require.NoError(t, m.Populate(ctx, "sess", segs))

	matches, err := m.Query(ctx, "sess", "alpha text body", 0)
	require.NoError(t, err)
	assert.Len(t, matches, 2, "topK <= 0 falls back to the configured default")
}

func TestManager_PopulateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewManager(memory.NewStore(), hashEmbedder{}, 100, 50_000_000, 5)
	err := m.Populate(ctx, "sess", segmentsFor("segment text here"))
	assert.True(t, errors.Is(err, context.Canceled))
}
