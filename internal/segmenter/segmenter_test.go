package segmenter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/config"
)

func plainConfig() config.SegmenterConfig {
	return config.SegmenterConfig{
		MaxParagraphLen: 100,
		MaxChunkLen:     70,
		MinChunkLen:     10,
	}
}

func TestSegment_ShortSectionKeptWhole(t *testing.T) {
	s := New(plainConfig())
	chunks := s.Segment("This is a single short paragraph that stays whole.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "This is a single short paragraph that stays whole.", chunks[0].Text)
}

func TestSegment_DropsChunksBelowMinimum(t *testing.T) {
	s := New(plainConfig())
	chunks := s.Segment("Tiny.\n\nThis paragraph is long enough to survive the filter.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "This paragraph is long enough to survive the filter.", chunks[0].Text)
	for _, c := range chunks {
		assert.GreaterOrEqual(t, len(c.Text), 10)
	}
}

func TestSegment_SentencePackingWithTwoSentenceOverlap(t *testing.T) {
	sentences := []string{
		"Alpha one two three A.",
		"Bravo one two three B.",
		"Candy one two three C.",
		"Delta one two three D.",
		"Echos one two three E.",
		"Fever one two three F.",
	}
	section := strings.Join(sentences, " ")
	s := New(plainConfig())

	chunks := s.Segment(section)
	require.Len(t, chunks, 4)
	assert.Equal(t, strings.Join(sentences[0:3], " "), chunks[0].Text)
	assert.Equal(t, strings.Join(sentences[1:4], " "), chunks[1].Text)
	assert.Equal(t, strings.Join(sentences[2:5], " "), chunks[2].Text)
	assert.Equal(t, strings.Join(sentences[3:6], " "), chunks[3].Text)

	// overlap is exactly the trailing two sentences of the prior chunk
	for i := 1; i < len(chunks); i++ {
		prev := strings.SplitAfter(chunks[i-1].Text, ".")
		// SplitAfter leaves a trailing empty element after the final period
		tail := strings.TrimSpace(strings.Join(prev[len(prev)-3:], ""))
		assert.True(t, strings.HasPrefix(chunks[i].Text, tail),
			"chunk %d does not start with the prior chunk's last two sentences", i)
	}
}

func TestSegment_PreservesSectionOrder(t *testing.T) {
	s := New(plainConfig())
	chunks := s.Segment("First paragraph with enough text here.\n\nSecond paragraph with enough text here.\n\nThird paragraph with enough text here.")
	require.Len(t, chunks, 3)
	assert.Contains(t, chunks[0].Text, "First")
	assert.Contains(t, chunks[1].Text, "Second")
	assert.Contains(t, chunks[2].Text, "Third")
}

func TestSegment_NormalizesWhitespace(t *testing.T) {
	s := New(plainConfig())
	chunks := s.Segment("Broken  over\r\nlines   with\ttabs and enough length to keep.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Broken over lines with tabs and enough length to keep.", chunks[0].Text)
}

func TestSegment_EmptyInput(t *testing.T) {
	s := New(plainConfig())
	assert.Empty(t, s.Segment(""))
	assert.Empty(t, s.Segment("   \n\n  \n"))
}

func TestSegment_CategoryTagging(t *testing.T) {
	s := New(config.Default().Segmenter)

	chunks := s.Segment("Die Abgabefrist für alle Angebote endet am 31.12.2025 um 12:00 Uhr.")
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"TERMIN"}, chunks[0].Categories)
	assert.True(t, strings.HasPrefix(chunks[0].Text, "[TERMIN] "))

	chunks = s.Segment("Bei Fragen wenden Sie sich an unseren Ansprechpartner unter info@example.com.")
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"KONTAKT"}, chunks[0].Categories)

	chunks = s.Segment("Spätestens am 01.02.2026 sind alle Unterlagen elektronisch einzureichen, Rückfragen an vergabe@stadt.example.")
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"TERMIN", "KONTAKT", "FORMALIA"}, chunks[0].Categories)
	assert.True(t, strings.HasPrefix(chunks[0].Text, "[TERMIN] [KONTAKT] [FORMALIA] "))
}

func TestSegment_UntaggedTextKeptPlain(t *testing.T) {
	s := New(config.Default().Segmenter)
	chunks := s.Segment("Der Auftragnehmer stellt die benoetigten Geraete und das Personal bereit.")
	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0].Categories)
	assert.False(t, strings.HasPrefix(chunks[0].Text, "["))
}
