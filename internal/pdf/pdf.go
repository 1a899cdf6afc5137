// Package pdf reads PDF page structure and extracts page ranges using pdfcpu.
package pdf

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Reader implements domain.PageExtractor for PDF bytes.
type Reader struct {
	conf *model.Configuration
}

func NewReader() *Reader {
	conf := model.NewDefaultConfiguration()
	// Inputs come from untrusted uploads; tolerate mildly broken files.
	conf.ValidationMode = model.ValidationRelaxed
	return &Reader{conf: conf}
}

// PageCount returns the number of pages in the document.
func (r *Reader) PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), r.conf)
	if err != nil {
		return 0, fmt.Errorf("pdf page count: %w", err)
	}
	return n, nil
}

// ExtractPages writes the given zero-based pages into a standalone PDF.
func (r *Reader) ExtractPages(data []byte, pages []int) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdf extract: empty page set")
	}
	selected := make([]string, len(pages))
	for i, p := range pages {
		// pdfcpu page selection is 1-based.
		selected[i] = strconv.Itoa(p + 1)
	}
	var out bytes.Buffer
	if err := api.Trim(bytes.NewReader(data), &out, selected, r.conf); err != nil {
		return nil, fmt.Errorf("pdf extract pages: %w", err)
	}
	return out.Bytes(), nil
}
