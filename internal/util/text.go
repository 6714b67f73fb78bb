package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	reQuotes     = regexp.MustCompile("[\"'`‘’“”]")
	reNonAllowed = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	reSpaces     = regexp.MustCompile(`\s+`)
)

// Fold applies compatibility normalization so OCR ligatures, full-width
// letters and similar glyphs compare like their plain forms.
func Fold(input string) string {
	return norm.NFKC.String(input)
}

func CollapseSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// NormalizeName reduces a strain name to a lowercase, punctuation-free key.
func NormalizeName(input string) string {
	s := strings.ToLower(Fold(input))
	s = strings.NewReplacer("&", " and ", "#", " ").Replace(s)
	s = reQuotes.ReplaceAllString(s, "")
	s = reNonAllowed.ReplaceAllString(s, " ")
	return CollapseSpaces(s)
}

func Tokenize(input string) []string {
	parts := strings.Split(NormalizeName(input), " ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if len([]rune(p)) >= 2 {
			out = append(out, p)
		}
	}
	return out
}

// TitleCase upper-cases the first letter of every whitespace-delimited word
// and lower-cases the rest.
func TitleCase(input string) string {
	words := strings.Fields(input)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func IsAllUpper(input string) bool {
	return input == strings.ToUpper(input)
}

func DiceCoefficient(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	pairs := func(s string) []string {
		r := []rune(s)
		if len(r) < 2 {
			return nil
		}
		out := make([]string, 0, len(r)-1)
		for i := 0; i < len(r)-1; i++ {
			out = append(out, string(r[i:i+2]))
		}
		return out
	}

	aPairs := pairs(a)
	bPairs := pairs(b)
	if len(aPairs) == 0 || len(bPairs) == 0 {
		return 0
	}

	bCount := map[string]int{}
	for _, p := range bPairs {
		bCount[p]++
	}
	inter := 0
	for _, p := range aPairs {
		if bCount[p] > 0 {
			inter++
			bCount[p]--
		}
	}

	return float64(2*inter) / float64(len(aPairs)+len(bPairs))
}

func StringPtr(v string) *string { return &v }

func FloatPtr(v float64) *float64 { return &v }

func BoolPtr(v bool) *bool { return &v }

func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
