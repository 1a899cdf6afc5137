// Package segmenter turns raw extracted text into a sequence of bounded,
// semantically tagged chunks suitable for embedding.
package segmenter

import (
	"regexp"
	"strings"

	"docqa/internal/config"
)

// Chunk is one bounded unit of output text in reading order. Text carries
// the category markers already prepended.
type Chunk struct {
	Text       string
	Categories []string
}

type categoryRule struct {
	name     string
	keywords []string
	pattern  *regexp.Regexp
}

// Segmenter splits extracted text on blank-line boundaries, re-splits
// over-length sections on sentence boundaries with a two-sentence sliding
// overlap, drops undersized chunks and tags the survivors.
type Segmenter struct {
	maxParagraphLen int
	maxChunkLen     int
	minChunkLen     int
	rules           []categoryRule
	sentenceRe      *regexp.Regexp
}

func New(cfg config.SegmenterConfig) *Segmenter {
	s := &Segmenter{
		maxParagraphLen: cfg.MaxParagraphLen,
		maxChunkLen:     cfg.MaxChunkLen,
		minChunkLen:     cfg.MinChunkLen,
		sentenceRe:      regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
	}
	if s.maxParagraphLen <= 0 {
		s.maxParagraphLen = 1200
	}
	if s.maxChunkLen <= 0 {
		s.maxChunkLen = 1000
	}
	if s.minChunkLen < 0 {
		s.minChunkLen = 0
	}
	for _, r := range cfg.Categories {
		rule := categoryRule{name: r.Name}
		for _, kw := range r.Keywords {
			rule.keywords = append(rule.keywords, strings.ToLower(kw))
		}
		if r.Pattern != "" {
			if re, err := regexp.Compile(r.Pattern); err == nil {
				rule.pattern = re
			}
		}
		s.rules = append(s.rules, rule)
	}
	return s
}

// Segment produces the ordered chunk sequence for one block of text.
func (s *Segmenter) Segment(text string) []Chunk {
	sections := splitSections(normalize(text))
	var raw []string
	for _, sec := range sections {
		if len(sec) <= s.maxParagraphLen {
			raw = append(raw, sec)
			continue
		}
		raw = append(raw, s.packSentences(sec)...)
	}
	var chunks []Chunk
	for _, part := range raw {
		if len(part) < s.minChunkLen {
			continue
		}
		cats := s.detectCategories(part)
		chunks = append(chunks, Chunk{Text: tagText(part, cats), Categories: cats})
	}
	return chunks
}

// packSentences greedily packs sentences into sub-chunks not exceeding
// maxChunkLen. Each new sub-chunk is seeded with the last two sentences of
// the previous one to preserve cross-boundary context.
func (s *Segmenter) packSentences(section string) []string {
	sentences := s.sentences(section)
	if len(sentences) == 0 {
		return nil
	}
	var out []string
	var cur []string
	curLen := 0
	flush := func() {
		if len(cur) == 0 {
			return
		}
		out = append(out, strings.Join(cur, " "))
		// seed the next sub-chunk with the trailing two sentences
		seed := cur
		if len(seed) > 2 {
			seed = seed[len(seed)-2:]
		}
		cur = append([]string(nil), seed...)
		curLen = 0
		for _, sent := range cur {
			curLen += len(sent) + 1
		}
	}
	for _, sent := range sentences {
		if curLen > 0 && curLen+len(sent) > s.maxChunkLen {
			flush()
		}
		cur = append(cur, sent)
		curLen += len(sent) + 1
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, " "))
	}
	return out
}

// sentences splits a section into trimmed sentences, keeping any trailing
// text that lacks terminal punctuation.
func (s *Segmenter) sentences(text string) []string {
	matches := s.sentenceRe.FindAllStringIndex(text, -1)
	var out []string
	last := 0
	for _, m := range matches {
		sent := strings.TrimSpace(text[m[0]:m[1]])
		if sent != "" {
			out = append(out, sent)
		}
		last = m[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

func (s *Segmenter) detectCategories(text string) []string {
	lower := strings.ToLower(text)
	var cats []string
	for _, rule := range s.rules {
		if rule.matches(lower, text) {
			cats = append(cats, rule.name)
		}
	}
	return cats
}

func (r categoryRule) matches(lower, original string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return r.pattern != nil && r.pattern.MatchString(original)
}

func tagText(text string, cats []string) string {
	if len(cats) == 0 {
		return text
	}
	var b strings.Builder
	for _, c := range cats {
		b.WriteString("[")
		b.WriteString(c)
		b.WriteString("] ")
	}
	b.WriteString(text)
	return b.String()
}

var (
	crlfRe      = regexp.MustCompile(`\r\n?`)
	spaceRunRe  = regexp.MustCompile(`[ \t]+`)
	blankLineRe = regexp.MustCompile(`\n[ \t]*\n+`)
)

func normalize(text string) string {
	text = crlfRe.ReplaceAllString(text, "\n")
	text = spaceRunRe.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func splitSections(text string) []string {
	if text == "" {
		return nil
	}
	parts := blankLineRe.Split(text, -1)
	var sections []string
	for _, p := range parts {
		p = strings.TrimSpace(strings.ReplaceAll(p, "\n", " "))
		if p != "" {
			sections = append(sections, p)
		}
	}
	return sections
}
