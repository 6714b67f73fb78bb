package resolver

import (
	"strainscan/internal"
)

const (
	unknownMatchName = "Unknown strain"
	defaultMatchType = "Hybrid"
	unknownMatchID   = "unknown"
)

// MatchSource is the shape the backend used to report candidate matches.
// Exactly one variant is selected per scan, in the order NestedVisual,
// Flat, Single.
type MatchSource interface {
	candidates() []*internal.MatchCandidate
}

// NestedVisual is result.visualMatches: a primary match plus candidates.
type NestedVisual struct {
	Match      *internal.MatchCandidate
	Candidates []*internal.MatchCandidate
}

// Flat is result.matches.
type Flat struct {
	Matches []*internal.MatchCandidate
}

// Single is result.match.
type Single struct {
	Match *internal.MatchCandidate
}

// NoMatches is selected when no shape yields a candidate.
type NoMatches struct{}

func (v NestedVisual) candidates() []*internal.MatchCandidate {
	out := make([]*internal.MatchCandidate, 0, len(v.Candidates)+1)
	if v.Match != nil {
		out = append(out, v.Match)
	}
	return appendPresent(out, v.Candidates)
}

func (f Flat) candidates() []*internal.MatchCandidate {
	return appendPresent(nil, f.Matches)
}

func (s Single) candidates() []*internal.MatchCandidate {
	if s.Match == nil {
		return nil
	}
	return []*internal.MatchCandidate{s.Match}
}

func (NoMatches) candidates() []*internal.MatchCandidate { return nil }

// SelectMatchSource picks the match shape. The nested visual shape wins
// whenever it yields at least one candidate; the flat list is consulted
// only otherwise.
func SelectMatchSource(result *internal.ScanResult) MatchSource {
	if result == nil {
		return NoMatches{}
	}
	if vm := result.VisualMatches; vm != nil {
		nested := NestedVisual{Match: vm.Match, Candidates: vm.Candidates}
		if len(nested.candidates()) > 0 {
			return nested
		}
	}
	if len(result.Matches) > 0 {
		flat := Flat{Matches: result.Matches}
		if len(flat.candidates()) > 0 {
			return flat
		}
	}
	if result.Match != nil {
		return Single{Match: result.Match}
	}
	return NoMatches{}
}

// NormalizeMatch maps one raw candidate to its typed form. The candidate
// may wrap the strain under "strain" or be the strain itself.
func NormalizeMatch(c *internal.MatchCandidate) internal.NormalizedMatch {
	strain := unwrapStrain(c)

	slug := FirstDefined(strain.StrainSlug, strain.Slug, idString(strain.ID))
	name := ValueOr(strain.Name, unknownMatchName)

	confidence := 0.0
	if v := FirstDefined(c.Confidence, c.Score, c.Probability); v != nil {
		confidence = float64(*v)
	}

	meta := c.DBMeta
	if meta == nil && c.Wrapped != nil {
		meta = c.Wrapped.DBMeta
	}

	id := unknownMatchID
	switch {
	case slug != nil && *slug != "":
		id = *slug
	case name != "":
		id = name
	}

	return internal.NormalizedMatch{
		ID:          id,
		Slug:        slug,
		Name:        name,
		Type:        ValueOr(FirstDefined(strain.Type, strain.Category), defaultMatchType),
		Description: ValueOr(FirstDefined(strain.Description, strain.Summary), ""),
		Confidence:  confidence,
		DBMeta:      copyMeta(meta),
	}
}

func unwrapStrain(c *internal.MatchCandidate) internal.Strain {
	if c.Wrapped != nil {
		return *c.Wrapped
	}
	return c.Strain
}

// rawSlug walks the slug fields of the unmapped top candidate: the wrapped
// strain first, then the candidate itself.
func rawSlug(c *internal.MatchCandidate) *string {
	if c == nil {
		return nil
	}
	var wrappedStrainSlug, wrappedSlug *string
	if c.Wrapped != nil {
		wrappedStrainSlug = c.Wrapped.StrainSlug
		wrappedSlug = c.Wrapped.Slug
	}
	return FirstDefined(wrappedStrainSlug, wrappedSlug, c.StrainSlug, c.Slug)
}

func idString(id *internal.FlexString) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}

func copyMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func appendPresent(dst, src []*internal.MatchCandidate) []*internal.MatchCandidate {
	for _, c := range src {
		if c != nil {
			dst = append(dst, c)
		}
	}
	return dst
}
