package pipeline

import (
	"sync"
	"time"

	"docqa/internal/domain"
)

// progress tracks the step counter and publishes events. Publishing is
// best-effort by contract: a consumer that disconnected mid-run must not
// fail the pipeline, so publish errors are dropped.
type progress struct {
	mu      sync.Mutex
	pub     domain.Publisher
	current int
	total   int
}

// count publishes a progress event that advances the step counter.
func (p *progress) count(ev domain.ProgressEvent) {
	p.mu.Lock()
	p.current++
	ev.Current = p.current
	ev.Total = p.total
	p.mu.Unlock()
	p.publish(ev)
}

// info publishes a progress event without advancing the counter.
func (p *progress) info(ev domain.ProgressEvent) {
	p.mu.Lock()
	ev.Current = p.current
	ev.Total = p.total
	p.mu.Unlock()
	p.publish(ev)
}

// docError surfaces a document-level failure without terminating the
// stream; siblings continue.
func (p *progress) docError(filename string, err error) {
	p.mu.Lock()
	current, total := p.current, p.total
	p.mu.Unlock()
	p.publish(domain.ProgressEvent{
		Step:    "error",
		File:    filename,
		Message: "Processing failed for " + filename,
		Error:   err.Error(),
		Current: current,
		Total:   total,
	})
}

// complete publishes the single terminal completion event.
func (p *progress) complete(results []domain.FileResult) {
	p.mu.Lock()
	p.current = p.total
	current, total := p.current, p.total
	p.mu.Unlock()
	p.publish(domain.ProgressEvent{
		Type:    domain.EventCompletion,
		Step:    "completed",
		Message: "Processing complete",
		Results: results,
		Current: current,
		Total:   total,
	})
}

// fatal publishes the single terminal error event.
func (p *progress) fatal(err error) {
	p.mu.Lock()
	current, total := p.current, p.total
	p.mu.Unlock()
	p.publish(domain.ProgressEvent{
		Type:    domain.EventError,
		Step:    "error",
		Message: "Processing aborted",
		Error:   err.Error(),
		Current: current,
		Total:   total,
	})
}

func (p *progress) setTotal(total int) {
	p.mu.Lock()
	p.total = total
	p.mu.Unlock()
}

func (p *progress) publish(ev domain.ProgressEvent) {
	if ev.Type == "" {
		ev.Type = domain.EventProgress
	}
	ev.Time = time.Now()
	_ = p.pub.Publish(ev)
}
