// Package pipeline drives the end-to-end flow per document: split →
// extract → segment → embed → index → answer queries → clean up, emitting
// progress events throughout.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"docqa/internal/classifier"
	"docqa/internal/domain"
	"docqa/internal/index"
	"docqa/internal/segmenter"
	"docqa/internal/splitter"
)

// Config configures orchestration behaviour.
type Config struct {
	SliceBatchSize int
	TopK           int
	Instructions   string
	Debug          bool
}

// Input is one uploaded document.
type Input struct {
	Filename string
	Data     []byte
}

// Orchestrator runs the ingestion-and-retrieval pipeline for one request.
// All collaborators are injected; there is no package-level state.
type Orchestrator struct {
	split    *splitter.Splitter
	segment  *segmenter.Segmenter
	classify *classifier.Classifier
	extract  domain.Extractor
	embed    domain.Embedder
	synth    domain.Synthesizer
	sessions *index.Manager
	cfg      Config
}

func New(
	split *splitter.Splitter,
	segment *segmenter.Segmenter,
	classify *classifier.Classifier,
	extract domain.Extractor,
	embed domain.Embedder,
	synth domain.Synthesizer,
	sessions *index.Manager,
	cfg Config,
) *Orchestrator {
	if cfg.SliceBatchSize <= 0 {
		cfg.SliceBatchSize = 3
	}
	return &Orchestrator{
		split:    split,
		segment:  segment,
		classify: classify,
		extract:  extract,
		embed:    embed,
		synth:    synth,
		sessions: sessions,
		cfg:      cfg,
	}
}

// baseSteps covers starting, chunks_created and completed in the step total.
const baseSteps = 3

// Run processes all files against all queries and publishes progress to
// pub. Context cancellation is a clean early exit: no further events are
// emitted. Any other returned error has already been published as the
// terminal error event.
func (o *Orchestrator) Run(ctx context.Context, files []Input, queries []string, pub domain.Publisher) error {
	runID := uuid.New().String()
	p := &progress{pub: pub, total: len(files)*2 + len(queries)*len(files) + baseSteps}
	p.count(domain.ProgressEvent{Step: "starting",
		Message: fmt.Sprintf("Starting processing of %d file(s) with %d query(ies)", len(files), len(queries))})

	// Split every document up front; documents are independent here, so the
	// fan-out is bounded only by the batch size.
	slices := make([][]domain.DocumentSlice, len(files))
	splitErrs := make([]error, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.SliceBatchSize)
	for i, f := range files {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			slices[i], splitErrs[i] = o.split.Split(f.Filename, f.Data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	// The initial total was an estimate; correct it now that the true slice
	// counts are known.
	totalSlices := 0
	okFiles := 0
	for i := range files {
		if splitErrs[i] == nil {
			totalSlices += len(slices[i])
			okFiles++
		}
	}
	p.setTotal(totalSlices*2 + len(queries)*len(files) + baseSteps)
	p.count(domain.ProgressEvent{Step: "chunks_created",
		Message: fmt.Sprintf("Created %d slice(s) across %d file(s)", totalSlices, okFiles)})

	if okFiles == 0 {
		err := fmt.Errorf("no document could be prepared for processing")
		p.fatal(err)
		return err
	}

	var results []domain.FileResult
	for i, f := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if splitErrs[i] != nil {
			log.Printf("pipeline: splitting %s failed: %v", f.Filename, splitErrs[i])
			p.docError(f.Filename, splitErrs[i])
			continue
		}
		res, err := o.processFile(ctx, runID, f.Filename, slices[i], queries, p)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("pipeline: processing %s failed: %v", f.Filename, err)
			p.docError(f.Filename, err)
			continue
		}
		results = append(results, res)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	p.complete(results)
	return nil
}

type sliceOutput struct {
	segments  []domain.Segment
	extracted domain.ExtractedText
	ok        bool
}

func (o *Orchestrator) processFile(ctx context.Context, runID, filename string, slices []domain.DocumentSlice, queries []string, p *progress) (domain.FileResult, error) {
	var zero domain.FileResult
	p.info(domain.ProgressEvent{Step: "processing_file", File: filename,
		Message: "Processing " + filename})

	// Slices are processed in fixed-size concurrent batches; completion
	// order within a batch is unconstrained, so outputs are reassembled by
	// slice index.
	outs := make([]sliceOutput, len(slices))
	batch := o.cfg.SliceBatchSize
	for start := 0; start < len(slices); start += batch {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		end := start + batch
		if end > len(slices) {
			end = len(slices)
		}
		g, gctx := errgroup.WithContext(ctx)
		for _, sl := range slices[start:end] {
			g.Go(func() error {
				segs, ext, err := o.processSlice(gctx, sl, p)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					// Slice-level failure: drop the slice, keep the document.
					log.Printf("pipeline: slice %d/%d of %s failed: %v", sl.Index+1, sl.Total, filename, err)
					return nil
				}
				outs[sl.Index] = sliceOutput{segments: segs, extracted: ext, ok: true}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return zero, err
		}
	}

	var segments []domain.Segment
	var extractions []domain.ExtractedText
	for _, out := range outs {
		if !out.ok {
			continue
		}
		segments = append(segments, out.segments...)
		extractions = append(extractions, out.extracted)
	}
	if len(segments) == 0 {
		return zero, fmt.Errorf("no slice of %s produced any segments", filename)
	}

	p.info(domain.ProgressEvent{Step: "embeddings_ready", File: filename,
		Message: fmt.Sprintf("Prepared %d segment(s) for %s", len(segments), filename)})

	session := index.SessionID(runID, filename)
	p.info(domain.ProgressEvent{Step: "storing_embeddings", File: filename,
		Message: "Storing segments for " + filename})

	// The session must be destroyed on every exit path from here on, even
	// when the run context is already cancelled.
	defer func() {
		if err := o.sessions.Destroy(context.WithoutCancel(ctx), session); err != nil {
			log.Printf("pipeline: destroying session %s failed: %v", session, err)
		}
	}()
	if err := o.sessions.Populate(ctx, session, segments); err != nil {
		return zero, err
	}
	p.info(domain.ProgressEvent{Step: "embeddings_stored", File: filename,
		Message: "Segments stored for " + filename})

	// Queries run strictly in input order so per-query progress stays
	// meaningful.
	answers := make([]domain.Answer, 0, len(queries))
	for _, q := range queries {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		p.count(domain.ProgressEvent{Step: "answering", File: filename,
			Message: "Answering: " + q})
		ans := o.answerQuery(ctx, session, filename, q)
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		answers = append(answers, ans)
		p.info(domain.ProgressEvent{Step: "question_answered", File: filename,
			Message: fmt.Sprintf("Answered with confidence %.2f", ans.Confidence)})
	}

	return domain.FileResult{Filename: filename, Answers: answers, Extractions: extractions}, nil
}

func (o *Orchestrator) processSlice(ctx context.Context, sl domain.DocumentSlice, p *progress) ([]domain.Segment, domain.ExtractedText, error) {
	var zero domain.ExtractedText
	chunkID := fmt.Sprintf("%s-s%d", slug(sl.Filename), sl.Index)
	p.count(domain.ProgressEvent{Step: "processing", File: sl.Filename, ChunkID: chunkID,
		Message: fmt.Sprintf("Extracting slice %d/%d of %s", sl.Index+1, sl.Total, sl.Filename)})

	text, err := o.extract.Extract(ctx, sl.Filename, sl.Data, o.cfg.Instructions)
	if err != nil {
		return nil, zero, fmt.Errorf("extract: %w", err)
	}
	extracted := domain.ExtractedText{
		Filename: sl.Filename,
		Index:    sl.Index,
		Total:    sl.Total,
		Text:     text,
	}

	p.info(domain.ProgressEvent{Step: "embedding_prep", File: sl.Filename, ChunkID: chunkID,
		Message: fmt.Sprintf("Segmenting slice %d/%d of %s", sl.Index+1, sl.Total, sl.Filename)})
	chunks := o.segment.Segment(text)
	if len(chunks) == 0 {
		p.count(domain.ProgressEvent{Step: "chunk_processed", File: sl.Filename, ChunkID: chunkID,
			Message: fmt.Sprintf("Slice %d/%d of %s held no usable text", sl.Index+1, sl.Total, sl.Filename)})
		return nil, extracted, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := o.embed.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, zero, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, zero, fmt.Errorf("embed: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	segments := make([]domain.Segment, len(chunks))
	for i, c := range chunks {
		segments[i] = domain.Segment{
			ID:     fmt.Sprintf("%s-c%d", chunkID, i),
			Text:   c.Text,
			Vector: vectors[i],
			Metadata: domain.SegmentMetadata{
				Filename:   sl.Filename,
				SliceIndex: sl.Index,
				SliceTotal: sl.Total,
				Position:   i,
				Categories: c.Categories,
			},
		}
	}

	p.count(domain.ProgressEvent{Step: "chunk_processed", File: sl.Filename, ChunkID: chunkID,
		Message: fmt.Sprintf("Slice %d/%d of %s produced %d segment(s)", sl.Index+1, sl.Total, sl.Filename, len(segments))})
	return segments, extracted, nil
}

// answerQuery never fails: retrieval or synthesis errors yield a
// placeholder answer with confidence 0.
func (o *Orchestrator) answerQuery(ctx context.Context, session, filename, text string) domain.Answer {
	query := domain.Query{Text: text, Type: o.classify.Classify(text)}
	answer := domain.Answer{Query: text, QueryType: query.Type, Sources: []string{}}

	matches, err := o.sessions.Query(ctx, session, text, o.cfg.TopK)
	if err != nil {
		log.Printf("pipeline: retrieval for %q on %s failed: %v", text, filename, err)
		answer.Answer = "The query could not be answered because retrieval failed."
		return answer
	}
	if len(matches) == 0 {
		answer.Answer = "No relevant passages were found in the document."
		return answer
	}

	contextText := buildContext(matches)
	synthesized, err := o.synth.Synthesize(ctx, query, contextText)
	if err != nil {
		log.Printf("pipeline: synthesis for %q on %s failed: %v", text, filename, err)
		answer.Answer = "The query could not be answered because answer synthesis failed."
		return answer
	}

	answer.Answer = synthesized
	answer.Confidence = clamp01(matches[0].Score)
	answer.Sources = []string{filename}
	if o.cfg.Debug {
		answer.Debug = &domain.RetrievalDebug{Matches: matches, Context: contextText}
	}
	return answer
}

func buildContext(matches []domain.Match) string {
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.Text
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	s = slugRe.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}
