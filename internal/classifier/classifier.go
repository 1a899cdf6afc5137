// Package classifier labels free-text queries as open questions or
// true/false conditions using keyword heuristics.
package classifier

import (
	"strings"

	"docqa/internal/config"
	"docqa/internal/domain"
)

// Classifier is a pure function of its input string and the configured
// keyword lists. Matching is case-insensitive.
type Classifier struct {
	conditionKeywords []string
	interrogatives    map[string]struct{}
}

func New(cfg config.ClassifierConfig) *Classifier {
	c := &Classifier{
		interrogatives: make(map[string]struct{}, len(cfg.Interrogatives)),
	}
	for _, kw := range cfg.ConditionKeywords {
		c.conditionKeywords = append(c.conditionKeywords, strings.ToLower(kw))
	}
	for _, w := range cfg.Interrogatives {
		c.interrogatives[strings.ToLower(w)] = struct{}{}
	}
	return c
}

// Classify maps the input to QueryTypeCondition only when it contains a
// condition keyword, does not start with an interrogative word and does not
// end with a question mark. The question-mark rule dominates.
func (c *Classifier) Classify(text string) domain.QueryType {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return domain.QueryTypeQuestion
	}
	if strings.HasSuffix(trimmed, "?") {
		return domain.QueryTypeQuestion
	}
	if _, ok := c.interrogatives[firstWord(trimmed)]; ok {
		return domain.QueryTypeQuestion
	}
	lower := strings.ToLower(trimmed)
	for _, kw := range c.conditionKeywords {
		if strings.Contains(lower, kw) {
			return domain.QueryTypeCondition
		}
	}
	return domain.QueryTypeQuestion
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(strings.Trim(fields[0], ",.;:!?\"'"))
}
