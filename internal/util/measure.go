package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	weightPattern = regexp.MustCompile(`(?i)(?:^|[^0-9.,])(\d+(?:[.,]\d+)?)\s*(mg|milligrams?|g|grams?|gr|oz|ounces?)\b`)
	percentBefore = regexp.MustCompile(`(?i)\b(total\s+thc|thca|thc|total\s+cbd|cbda|cbd)\b[^0-9\n%]{0,12}(\d+(?:[.,]\d+)?)\s*%`)
	percentAfter  = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*%\s*(total\s+thc|thca|thc|total\s+cbd|cbda|cbd)\b`)
)

const gramsPerOunce = 28.3495

type ParsedWeight struct {
	Grams *float64
	Raw   *string
}

// ParseNetWeight returns the first weight found in the text, converted to
// grams.
func ParseNetWeight(input string) ParsedWeight {
	line := strings.ReplaceAll(input, " ", " ")
	m := weightPattern.FindStringSubmatch(line)
	if len(m) < 3 {
		return ParsedWeight{}
	}
	value, err := strconv.ParseFloat(normalizeNumericToken(m[1]), 64)
	if err != nil {
		return ParsedWeight{}
	}
	grams := value
	switch normalizeWeightUnit(m[2]) {
	case "mg":
		grams = value / 1000
	case "oz":
		grams = value * gramsPerOunce
	}
	raw := strings.TrimSpace(m[1] + " " + m[2])
	return ParsedWeight{Grams: FloatPtr(grams), Raw: &raw}
}

// ParsePercent finds the percentage attached to a cannabinoid marker, e.g.
// "THC 24.5%" or "24.5% THC". The marker is matched case-insensitively and
// "thc" also matches "thca" and "total thc".
func ParsePercent(input, marker string) *float64 {
	marker = strings.ToLower(strings.TrimSpace(marker))
	line := strings.ReplaceAll(input, " ", " ")

	pick := func(label, number string) *float64 {
		label = strings.ToLower(CollapseSpaces(label))
		if !strings.Contains(label, marker) {
			return nil
		}
		parsed, err := strconv.ParseFloat(normalizeNumericToken(number), 64)
		if err != nil {
			return nil
		}
		return FloatPtr(parsed)
	}

	for _, m := range percentBefore.FindAllStringSubmatch(line, -1) {
		if v := pick(m[1], m[2]); v != nil {
			return v
		}
	}
	for _, m := range percentAfter.FindAllStringSubmatch(line, -1) {
		if v := pick(m[2], m[1]); v != nil {
			return v
		}
	}
	return nil
}

func normalizeWeightUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	switch u {
	case "mg", "milligram", "milligrams":
		return "mg"
	case "oz", "ounce", "ounces":
		return "oz"
	default:
		return "g"
	}
}

func normalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(token, " ", "")
	if strings.Contains(compact, ",") && !strings.Contains(compact, ".") {
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}
