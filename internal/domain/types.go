package domain

import "time"

// DocumentSlice is one page-range unit of a source document. Pages are
// zero-based, sorted ascending and deduplicated. Data holds the page range
// as a standalone document ready for the extraction service.
type DocumentSlice struct {
	Filename string
	Index    int
	Total    int
	Pages    []int
	Data     []byte
}

// ExtractedText is the extraction service's output for one slice. It is
// retained only as debug output after segmentation.
type ExtractedText struct {
	Filename string `json:"filename"`
	Index    int    `json:"index"`
	Total    int    `json:"total"`
	Text     string `json:"text"`
}

// SegmentMetadata is the single metadata record carried by every segment,
// in index payloads and in retrieval matches.
type SegmentMetadata struct {
	Filename   string   `json:"filename"`
	SliceIndex int      `json:"slice_index"`
	SliceTotal int      `json:"slice_total"`
	Position   int      `json:"position"`
	Categories []string `json:"categories,omitempty"`
}

// Segment is a bounded unit of text plus its embedding. Written once to an
// index session, never mutated.
type Segment struct {
	ID       string
	Text     string
	Vector   []float64
	Metadata SegmentMetadata
}

// QueryType labels a query as an open question or a true/false condition.
type QueryType string

const (
	QueryTypeQuestion  QueryType = "question"
	QueryTypeCondition QueryType = "condition"
)

// Query is one user-supplied question or condition string.
type Query struct {
	Text string
	Type QueryType
}

// Match is one ranked retrieval hit, highest score first.
type Match struct {
	ID       string          `json:"id"`
	Score    float64         `json:"score"`
	Text     string          `json:"text"`
	Metadata SegmentMetadata `json:"metadata"`
}

// RetrievalDebug records the ranked matches and the context text that was
// sent to answer synthesis.
type RetrievalDebug struct {
	Matches []Match `json:"matches"`
	Context string  `json:"context"`
}

// Answer is the result of answering one query against one document.
// Confidence is the top retrieval score clamped to [0,1], 0 if no matches.
type Answer struct {
	Query      string          `json:"query"`
	QueryType  QueryType       `json:"query_type"`
	Answer     string          `json:"answer"`
	Confidence float64         `json:"confidence"`
	Sources    []string        `json:"sources"`
	Debug      *RetrievalDebug `json:"debug,omitempty"`
}

// FileResult bundles one document's answers and its raw extraction dumps.
type FileResult struct {
	Filename    string          `json:"filename"`
	Answers     []Answer        `json:"answers"`
	Extractions []ExtractedText `json:"extractions,omitempty"`
}

// EventType is the kind of a progress event.
type EventType string

const (
	EventProgress   EventType = "progress"
	EventCompletion EventType = "completion"
	EventError      EventType = "error"
)

// ProgressEvent is a timestamped notification of pipeline advancement.
// Exactly one completion or error event terminates a run's stream.
type ProgressEvent struct {
	Type    EventType    `json:"type"`
	Step    string       `json:"step"`
	Message string       `json:"message,omitempty"`
	File    string       `json:"file,omitempty"`
	ChunkID string       `json:"chunk_id,omitempty"`
	Current int          `json:"current,omitempty"`
	Total   int          `json:"total,omitempty"`
	Results []FileResult `json:"results,omitempty"`
	Error   string       `json:"error,omitempty"`
	Time    time.Time    `json:"ts"`
}
