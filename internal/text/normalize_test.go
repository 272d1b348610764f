// Package text_test tests input normalization.
package text_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/book-expert/kokoro-studio/internal/text"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	normalizer := text.NewNormalizer()

	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty input stays empty",
			input: "   ",
			want:  "",
		},
		{
			name:  "plain sentence gains terminator",
			input: "Hello world",
			want:  "Hello world.",
		},
		{
			name:  "existing terminator preserved",
			input: "Hello world!",
			want:  "Hello world!",
		},
		{
			name:  "abbreviations expanded",
			input: "Dr. Smith met Mr. Jones",
			want:  "Doctor Smith met Mister Jones.",
		},
		{
			name:  "integers spelled out",
			input: "I have 21 apples",
			want:  "I have twenty one apples.",
		},
		{
			name:  "hundreds and thousands spelled out",
			input: "Population 1200",
			want:  "Population one thousand two hundred.",
		},
		{
			name:  "smart typography flattened",
			input: "“Wait” — she said…",
			want:  `"Wait" - she said...`,
		},
		{
			name:  "whitespace collapsed",
			input: "too\t many\n\n spaces",
			want:  "too many spaces.",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.want, normalizer.Normalize(testCase.input))
		})
	}
}
