package resolver

import (
	"regexp"
	"strings"

	"strainscan/internal/util"
)

var (
	reLineBreak    = regexp.MustCompile(`\r\n|\r|\n`)
	reNumericToken = regexp.MustCompile(`^\d+(?:[.,]\d+)?$`)
	lineStripper   = strings.NewReplacer("%", "", "(", "", ")", "")
)

const (
	minNameWords     = 2
	maxNameWords     = 5
	keywordScore     = 2.0
	typicalLenBonus  = 1.0
	mixedCaseBonus   = 1.0
	lengthTieBreaker = 0.01
)

// lineCandidate is one OCR line that survived every filter.
type lineCandidate struct {
	rawLine     string
	cleanedLine string
	wordCount   int
	score       float64
}

// ExtractName mines the most name-like line from raw label OCR text and
// returns it title-cased. Lines carrying noise fragments, lines outside
// 2..5 words and lines without a strain keyword never qualify.
func (r *Resolver) ExtractName(rawText string) (string, bool) {
	lines := splitLines(util.Fold(rawText))
	if len(lines) == 0 {
		return "", false
	}

	var best *lineCandidate
	for _, line := range lines {
		cand, ok := r.qualifyLine(line)
		if !ok {
			continue
		}
		if best == nil || cand.score > best.score {
			c := cand
			best = &c
		}
	}
	if best == nil {
		return "", false
	}
	return util.TitleCase(best.cleanedLine), true
}

func (r *Resolver) qualifyLine(line string) (lineCandidate, bool) {
	lower := strings.ToLower(line)
	if containsAny(lower, r.lists.LineNoise) {
		return lineCandidate{}, false
	}
	if tokens := wordTokens(lower); containsWord(tokens, r.lists.NoiseWords) || hasQuantity(tokens, r.lists.Units) {
		return lineCandidate{}, false
	}

	cleaned := cleanLabelLine(line)
	if cleaned == "" {
		return lineCandidate{}, false
	}

	words := strings.Fields(cleaned)
	if len(words) < minNameWords || len(words) > maxNameWords {
		return lineCandidate{}, false
	}
	if !containsAny(strings.ToLower(cleaned), r.lists.StrainKeywords) {
		return lineCandidate{}, false
	}

	return lineCandidate{
		rawLine:     line,
		cleanedLine: cleaned,
		wordCount:   len(words),
		score:       ScoreLine(cleaned, len(words)),
	}, true
}

// ScoreLine scores a cleaned line that already contains a strain keyword.
// Keyword presence dominates; typical name length and mixed casing add one
// point each; the length term only breaks ties.
func ScoreLine(cleaned string, wordCount int) float64 {
	score := keywordScore
	if wordCount >= 2 && wordCount <= 4 {
		score += typicalLenBonus
	}
	if !util.IsAllUpper(cleaned) {
		score += mixedCaseBonus
	}
	score += float64(len([]rune(cleaned))) * lengthTieBreaker
	return score
}

func cleanLabelLine(line string) string {
	fields := strings.Fields(lineStripper.Replace(line))
	kept := fields[:0]
	for _, f := range fields {
		if reNumericToken.MatchString(f) {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

func splitLines(text string) []string {
	parts := reLineBreak.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
