package domain

import "context"

// Extractor turns raw document bytes into free text, guided by
// natural-language instructions. The service behind it is a black box.
type Extractor interface {
	Extract(ctx context.Context, filename string, data []byte, instructions string) (string, error)
}

// Embedder converts free text into fixed-length numeric vectors.
// Dimension is 0 until the first successful call.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
	Dimension() int
}

// Synthesizer produces an answer for a query from retrieved context text.
// For condition queries the answer starts with a YES/NO/UNKNOWN token.
type Synthesizer interface {
	Synthesize(ctx context.Context, query Query, contextText string) (string, error)
}

// PageExtractor reads the page structure of a document and extracts
// page ranges as standalone documents.
type PageExtractor interface {
	PageCount(data []byte) (int, error)
	ExtractPages(data []byte, pages []int) ([]byte, error)
}

// Publisher delivers progress events to a consumer. Delivery is
// best-effort: the pipeline ignores the returned error by contract.
type Publisher interface {
	Publish(ev ProgressEvent) error
}
