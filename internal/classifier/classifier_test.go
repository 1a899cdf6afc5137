package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docqa/internal/config"
	"docqa/internal/domain"
)

func TestClassify(t *testing.T) {
	c := New(config.Default().Classifier)

	cases := []struct {
		input string
		want  domain.QueryType
	}{
		// question mark dominates even with condition keywords present
		{"Ist die Abgabefrist vor dem 31.12.2025?", domain.QueryTypeQuestion},
		{"Sind elektronische Einreichungen erlaubt?", domain.QueryTypeQuestion},
		// condition keyword, no question mark, no interrogative lead word
		{"Die Frist endet am 1.1.", domain.QueryTypeCondition},
		{"Die Unterlagen müssen schriftlich eingereicht werden", domain.QueryTypeCondition},
		{"Angebote sind bis zum 15.03.2026 einzureichen", domain.QueryTypeCondition},
		{"The proposal must be submitted in writing", domain.QueryTypeCondition},
		// interrogative lead word forces question even without a question mark
		{"Wann endet die Frist", domain.QueryTypeQuestion},
		{"Welche Unterlagen müssen eingereicht werden", domain.QueryTypeQuestion},
		{"When must the documents be submitted", domain.QueryTypeQuestion},
		// no condition keyword at all
		{"Beschreibung des Projektumfangs", domain.QueryTypeQuestion},
		{"", domain.QueryTypeQuestion},
		{"   ", domain.QueryTypeQuestion},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.Classify(tc.input), "input: %q", tc.input)
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	c := New(config.ClassifierConfig{
		ConditionKeywords: []string{"endet"},
		Interrogatives:    []string{"wann"},
	})
	assert.Equal(t, domain.QueryTypeCondition, c.Classify("Die Frist ENDET morgen"))
	assert.Equal(t, domain.QueryTypeQuestion, c.Classify("WANN endet die Frist"))
}

func TestClassify_PureFunction(t *testing.T) {
	c := New(config.Default().Classifier)
	first := c.Classify("Die Frist endet am 1.1.")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify("Die Frist endet am 1.1."))
	}
}
