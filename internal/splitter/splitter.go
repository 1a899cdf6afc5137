// Package splitter partitions a document's pages into overlapping
// page-range slices sized for the extraction service's limits.
package splitter

import (
	"fmt"
	"sort"

	"docqa/internal/domain"
)

// Splitter produces page-range slices of source documents.
type Splitter struct {
	chunkPages int
	overlap    int
	threshold  int
	pages      domain.PageExtractor
}

// New creates a splitter. A document is split only when its page count
// exceeds threshold; otherwise it is emitted as a single slice.
func New(pages domain.PageExtractor, chunkPages, overlap, threshold int) *Splitter {
	if chunkPages <= 0 {
		chunkPages = 4
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Splitter{chunkPages: chunkPages, overlap: overlap, threshold: threshold, pages: pages}
}

// PageRanges computes the zero-based page sets of all slices for a document
// with n pages. Each slice's primary range is [start, start+chunkPages),
// extended by up to overlap pages on both sides, deduplicated and sorted.
// The primary ranges partition [0,n) exactly.
func PageRanges(n, chunkPages, overlap int) [][]int {
	if n <= 0 || chunkPages <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	var ranges [][]int
	for start := 0; start < n; start += chunkPages {
		end := start + chunkPages
		if end > n {
			end = n
		}
		set := make(map[int]struct{})
		for p := start; p < end; p++ {
			set[p] = struct{}{}
		}
		for p := start - overlap; p < start; p++ {
			if p >= 0 {
				set[p] = struct{}{}
			}
		}
		for p := end; p < end+overlap; p++ {
			if p < n {
				set[p] = struct{}{}
			}
		}
		pages := make([]int, 0, len(set))
		for p := range set {
			pages = append(pages, p)
		}
		sort.Ints(pages)
		ranges = append(ranges, pages)
	}
	return ranges
}

// Split cuts one document into slices. Documents at or under the threshold
// come back as a single slice carrying the original bytes.
func (s *Splitter) Split(filename string, data []byte) ([]domain.DocumentSlice, error) {
	count, err := s.pages.PageCount(data)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", filename, err)
	}
	if count <= 0 {
		return nil, fmt.Errorf("split %s: document has no pages", filename)
	}
	if count <= s.threshold {
		pages := make([]int, count)
		for i := range pages {
			pages[i] = i
		}
		return []domain.DocumentSlice{{
			Filename: filename,
			Index:    0,
			Total:    1,
			Pages:    pages,
			Data:     data,
		}}, nil
	}
	ranges := PageRanges(count, s.chunkPages, s.overlap)
	slices := make([]domain.DocumentSlice, 0, len(ranges))
	for i, pages := range ranges {
		part, err := s.pages.ExtractPages(data, pages)
		if err != nil {
			return nil, fmt.Errorf("split %s slice %d: %w", filename, i, err)
		}
		slices = append(slices, domain.DocumentSlice{
			Filename: filename,
			Index:    i,
			Total:    len(ranges),
			Pages:    pages,
			Data:     part,
		})
	}
	return slices, nil
}
