package resolver

import (
	"strings"

	"strainscan/internal/util"
)

// LabelFacts are the measurable values printed on a product label.
type LabelFacts struct {
	THCPercent     *float64 `json:"thcPercent,omitempty"`
	CBDPercent     *float64 `json:"cbdPercent,omitempty"`
	NetWeightGrams *float64 `json:"netWeightGrams,omitempty"`
}

// ExtractLabelFacts scans label text line by line; the first value found
// for each fact wins.
func ExtractLabelFacts(rawText string) LabelFacts {
	var facts LabelFacts
	for _, line := range splitLines(util.Fold(rawText)) {
		if facts.THCPercent == nil {
			facts.THCPercent = util.ParsePercent(line, "thc")
		}
		if facts.CBDPercent == nil {
			facts.CBDPercent = util.ParsePercent(line, "cbd")
		}
		lower := strings.ToLower(line)
		if facts.NetWeightGrams == nil && !strings.Contains(lower, "thc") && !strings.Contains(lower, "cbd") {
			facts.NetWeightGrams = util.ParseNetWeight(line).Grams
		}
	}
	return facts
}
