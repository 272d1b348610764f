// Package text normalizes user input before it reaches the synthesis engine.
//
// The model's tokenizer only understands a fixed symbol table, so anything a
// user is likely to paste in (digits, smart quotes, stray whitespace, common
// abbreviations) is rewritten into plain speakable form first.
package text

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxNumberForWords = 999999

// Normalizer rewrites raw input into plain speakable text. Create once and
// reuse; the patterns and replacers are compiled up front.
type Normalizer struct {
	numberPattern     *regexp.Regexp
	whitespacePattern *regexp.Regexp
	abbreviations     *strings.Replacer
	typography        *strings.Replacer
}

// NewNormalizer creates a normalizer with compiled patterns and replacers.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		numberPattern:     regexp.MustCompile(`\d+`),
		whitespacePattern: regexp.MustCompile(`\s+`),
		abbreviations: strings.NewReplacer(
			"Mr.", "Mister",
			"Mrs.", "Misses",
			"Ms.", "Miss",
			"Dr.", "Doctor",
			"St.", "Saint",
			"Co.", "Company",
			"Ltd.", "Limited",
			"Corp.", "Corporation",
			"Inc.", "Incorporated",
		),
		typography: strings.NewReplacer(
			"—", "-", // em dash
			"–", "-", // en dash
			"‒", "-", // figure dash
			"…", "...",
			"“", `"`,
			"”", `"`,
			"‘", "'",
			"’", "'",
		),
	}
}

// Normalize applies the full pipeline: abbreviation expansion, integer
// spelling, typography normalization, whitespace collapsing, and a final
// sentence terminator when the input ends without one.
func (n *Normalizer) Normalize(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}

	out := n.abbreviations.Replace(input)
	out = n.spellNumbers(out)
	out = n.typography.Replace(out)
	out = strings.TrimSpace(n.whitespacePattern.ReplaceAllString(out, " "))

	return ensureSentenceEnding(out)
}

// spellNumbers replaces every integer run with its English words. Values too
// large to spell sensibly are left as digits for the tokenizer to skip.
func (n *Normalizer) spellNumbers(input string) string {
	return n.numberPattern.ReplaceAllStringFunc(input, func(match string) string {
		value, err := strconv.Atoi(match)
		if err != nil || value > maxNumberForWords {
			return match
		}

		return integerToWords(value)
	})
}

func ensureSentenceEnding(input string) string {
	lastRune, _ := utf8.DecodeLastRuneInString(input)

	switch lastRune {
	case '.', '!', '?':
		return input
	}

	if unicode.IsPunct(lastRune) {
		return input
	}

	return input + "."
}

var (
	onesWords = []string{
		"zero", "one", "two", "three", "four", "five",
		"six", "seven", "eight", "nine", "ten", "eleven",
		"twelve", "thirteen", "fourteen", "fifteen", "sixteen",
		"seventeen", "eighteen", "nineteen",
	}
	tensWords = []string{
		"", "", "twenty", "thirty", "forty", "fifty",
		"sixty", "seventy", "eighty", "ninety",
	}
)

// integerToWords converts a non-negative integer up to 999999 into its
// English word representation.
func integerToWords(value int) string {
	if value < 0 || value > maxNumberForWords {
		return strconv.Itoa(value)
	}

	switch {
	case value < 20:
		return onesWords[value]
	case value < 100:
		words := tensWords[value/10]
		if value%10 > 0 {
			words += " " + onesWords[value%10]
		}

		return words
	case value < 1000:
		words := onesWords[value/100] + " hundred"
		if value%100 > 0 {
			words += " " + integerToWords(value%100)
		}

		return words
	default:
		words := integerToWords(value/1000) + " thousand"
		if value%1000 > 0 {
			words += " " + integerToWords(value%1000)
		}

		return words
	}
}
