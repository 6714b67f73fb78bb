package catalog

import (
	"sort"
	"strings"

	"strainscan/internal"
	"strainscan/internal/util"
)

const DefaultFuzzyThreshold = 0.82

type LookupReason string

const (
	LookupSlug  LookupReason = "slug"
	LookupName  LookupReason = "name"
	LookupFuzzy LookupReason = "fuzzy"
)

type Index struct {
	BySlug           map[string]internal.StrainRecord
	ByName           map[string][]internal.StrainRecord
	TokenToSlugs     map[string]map[string]struct{}
	NormalizedBySlug map[string]string

	threshold float64
}

// Hit is a successful catalog lookup.
type Hit struct {
	Strain internal.StrainRecord
	Reason LookupReason
	Score  float64
}

func BuildIndex(strains []internal.StrainRecord, threshold float64) *Index {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultFuzzyThreshold
	}
	idx := &Index{
		BySlug:           map[string]internal.StrainRecord{},
		ByName:           map[string][]internal.StrainRecord{},
		TokenToSlugs:     map[string]map[string]struct{}{},
		NormalizedBySlug: map[string]string{},
		threshold:        threshold,
	}

	for _, s := range strains {
		slug := normalizeSlug(s.Slug)
		if slug == "" {
			continue
		}
		idx.BySlug[slug] = s
		normName := util.NormalizeName(s.Name)
		idx.NormalizedBySlug[slug] = normName
		idx.ByName[normName] = append(idx.ByName[normName], s)

		for _, token := range util.Tokenize(s.Name) {
			if _, ok := idx.TokenToSlugs[token]; !ok {
				idx.TokenToSlugs[token] = map[string]struct{}{}
			}
			idx.TokenToSlugs[token][slug] = struct{}{}
		}
	}

	return idx
}

func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.BySlug)
}

// Lookup resolves a strain by slug, then by exact normalized name, then by
// the best Dice score over strains sharing a name token.
func (i *Index) Lookup(slug, name string) (internal.StrainRecord, bool) {
	hit, ok := i.Find(slug, name)
	return hit.Strain, ok
}

func (i *Index) Find(slug, name string) (Hit, bool) {
	if i == nil {
		return Hit{}, false
	}
	if s, ok := i.BySlug[normalizeSlug(slug)]; ok {
		return Hit{Strain: s, Reason: LookupSlug, Score: 1}, true
	}

	normName := util.NormalizeName(name)
	if normName == "" {
		return Hit{}, false
	}
	if list := i.ByName[normName]; len(list) == 1 {
		return Hit{Strain: list[0], Reason: LookupName, Score: 1}, true
	}

	candidates := map[string]struct{}{}
	for _, token := range util.Tokenize(name) {
		for s := range i.TokenToSlugs[token] {
			candidates[s] = struct{}{}
		}
	}
	slugs := make([]string, 0, len(candidates))
	for s := range candidates {
		slugs = append(slugs, s)
	}
	sort.Strings(slugs)

	var best Hit
	found := false
	for _, s := range slugs {
		score := util.DiceCoefficient(normName, i.NormalizedBySlug[s])
		if score >= i.threshold && score > best.Score {
			best = Hit{Strain: i.BySlug[s], Reason: LookupFuzzy, Score: score}
			found = true
		}
	}
	return best, found
}

// Meta is the dbMeta object attached to a match that the catalog resolved.
func (h Hit) Meta() map[string]any {
	meta := map[string]any{
		"catalogSlug": h.Strain.Slug,
		"catalogName": h.Strain.Name,
		"lookup":      string(h.Reason),
		"lookupScore": h.Score,
	}
	if h.Strain.CatalogID != nil {
		meta["catalogId"] = *h.Strain.CatalogID
	}
	if h.Strain.Type != nil {
		meta["catalogType"] = *h.Strain.Type
	}
	if h.Strain.Description != nil {
		meta["catalogDescription"] = *h.Strain.Description
	}
	return meta
}

func normalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}
