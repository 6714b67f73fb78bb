package resolver

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed blocklists.yaml
var defaultBlocklistsYAML []byte

// Blocklists holds the immutable fragment and keyword sets the resolver
// filters with. All entries are lowercase.
type Blocklists struct {
	Version        int
	NameFragments  []string
	LineNoise      []string
	NoiseWords     []string
	Units          []string
	StrainKeywords []string
}

type blocklistsDoc struct {
	Version        int      `yaml:"version"`
	NameFragments  []string `yaml:"name_fragments"`
	LineNoise      []string `yaml:"line_noise"`
	NoiseWords     []string `yaml:"line_noise_words"`
	Units          []string `yaml:"line_units"`
	StrainKeywords []string `yaml:"strain_keywords"`
}

var defaultBlocklists = mustParseBlocklists(defaultBlocklistsYAML)

// DefaultBlocklists returns a copy of the embedded blocklists.
func DefaultBlocklists() Blocklists {
	return Blocklists{
		Version:        defaultBlocklists.Version,
		NameFragments:  append([]string(nil), defaultBlocklists.NameFragments...),
		LineNoise:      append([]string(nil), defaultBlocklists.LineNoise...),
		NoiseWords:     append([]string(nil), defaultBlocklists.NoiseWords...),
		Units:          append([]string(nil), defaultBlocklists.Units...),
		StrainKeywords: append([]string(nil), defaultBlocklists.StrainKeywords...),
	}
}

// LoadBlocklists parses a YAML blocklist document. Sections missing from
// the document keep their embedded defaults.
func LoadBlocklists(r io.Reader) (Blocklists, error) {
	blob, err := io.ReadAll(r)
	if err != nil {
		return Blocklists{}, err
	}
	parsed, err := parseBlocklists(blob)
	if err != nil {
		return Blocklists{}, err
	}

	out := DefaultBlocklists()
	if parsed.Version != 0 {
		out.Version = parsed.Version
	}
	if len(parsed.NameFragments) > 0 {
		out.NameFragments = parsed.NameFragments
	}
	if len(parsed.LineNoise) > 0 {
		out.LineNoise = parsed.LineNoise
	}
	if len(parsed.NoiseWords) > 0 {
		out.NoiseWords = parsed.NoiseWords
	}
	if len(parsed.Units) > 0 {
		out.Units = parsed.Units
	}
	if len(parsed.StrainKeywords) > 0 {
		out.StrainKeywords = parsed.StrainKeywords
	}
	return out, nil
}

func LoadBlocklistsFile(path string) (Blocklists, error) {
	f, err := os.Open(path)
	if err != nil {
		return Blocklists{}, err
	}
	defer f.Close()

	lists, err := LoadBlocklists(f)
	if err != nil {
		return Blocklists{}, fmt.Errorf("blocklists %s: %w", path, err)
	}
	return lists, nil
}

func parseBlocklists(blob []byte) (Blocklists, error) {
	var doc blocklistsDoc
	if err := yaml.Unmarshal(blob, &doc); err != nil {
		return Blocklists{}, err
	}
	out := Blocklists{
		Version:        doc.Version,
		NameFragments:  lowerAll(doc.NameFragments),
		LineNoise:      lowerAll(doc.LineNoise),
		NoiseWords:     lowerAll(doc.NoiseWords),
		Units:          lowerAll(doc.Units),
		StrainKeywords: lowerAll(doc.StrainKeywords),
	}
	if out.Version < 0 {
		return Blocklists{}, errors.New("negative blocklist version")
	}
	return out, nil
}

func mustParseBlocklists(blob []byte) Blocklists {
	lists, err := parseBlocklists(blob)
	if err != nil {
		panic(fmt.Sprintf("embedded blocklists: %v", err))
	}
	return lists
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func wordTokens(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsWord(tokens, words []string) bool {
	for _, tok := range tokens {
		if slices.Contains(words, tok) {
			return true
		}
	}
	return false
}

// hasQuantity reports a unit written right after a number, glued ("3.5g")
// or as the next word ("100 mg").
func hasQuantity(tokens, units []string) bool {
	for i, tok := range tokens {
		unit := strings.TrimLeftFunc(tok, unicode.IsDigit)
		if unit == "" || !slices.Contains(units, unit) {
			continue
		}
		if unit != tok || (i > 0 && isDigits(tokens[i-1])) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	return s != "" && strings.TrimLeftFunc(s, unicode.IsDigit) == ""
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
