package resolver

import (
	"strainscan/internal"
)

// Normalize assembles the UI read-model for a scan. It returns nil when the
// scan carries no result payload yet; callers treat that as "recognition
// not available", not as an error.
func (r *Resolver) Normalize(scan *internal.RawScanRecord) *internal.NormalizedScanResult {
	if scan == nil || scan.Result == nil {
		return nil
	}
	result := scan.Result
	res := r.Resolve(scan)

	raw := SelectMatchSource(result).candidates()
	matches := make([]internal.NormalizedMatch, 0, len(raw))
	for _, c := range raw {
		matches = append(matches, NormalizeMatch(c))
	}

	var topMatch *internal.NormalizedMatch
	otherMatches := []internal.NormalizedMatch{}
	var topRaw *internal.MatchCandidate
	if len(matches) > 0 {
		topMatch = &matches[0]
		otherMatches = matches[1:]
		topRaw = raw[0]
	}

	labelInsights := resolveLabelInsights(result, res)

	out := &internal.NormalizedScanResult{
		ID:        scan.ID,
		CreatedAt: scan.CreatedAt,
		ImageURL:  scan.ImageURL,
		Status:    scan.Status,
		Result:    result,

		MatchedStrainSlug: FirstDefined(
			result.MatchedStrainSlug,
			scan.MatchedStrainSlug,
			rawSlug(topRaw),
			res.MatchedStrainSlug,
		),
		MatchedStrainName: res.MatchedStrainName,
		MatchQuality:      scan.MatchQuality,
		RawMatchConf:      scan.MatchConfidence,

		CanonicalStrain:   res.Identity,
		StrainName:        res.StrainName,
		StrainSource:      res.StrainSource,
		MatchConfidence:   res.MatchConfidence,
		IsPackagedProduct: res.IsPackagedProduct,
		ResolutionStatus:  res.Status,

		TopMatch:     topMatch,
		OtherMatches: otherMatches,
		Matches:      matches,

		LabelInsights:     labelInsights,
		AISummary:         resolveAISummary(scan, labelInsights),
		PackagingInsights: FirstDefined(result.PackagingInsights, res.PackagingInsights),

		EffectsTags: []string{},
		FlavorTags:  []string{},
	}

	if labelInsights.RawText != nil {
		if name, ok := r.ExtractName(*labelInsights.RawText); ok {
			out.MinedLabelName = &name
		}
	}
	return out
}

// resolveLabelInsights picks the label insights object and backfills its
// raw text. The returned value is always a copy.
func resolveLabelInsights(result *internal.ScanResult, res Resolution) *internal.LabelInsights {
	var visual *internal.LabelInsights
	if result.VisualMatches != nil {
		visual = result.VisualMatches.LabelInsights
	}

	out := internal.LabelInsights{}
	if li := FirstDefined(result.LabelInsights, visual, res.LabelInsights); li != nil {
		out = *li
	}
	if out.RawText == nil {
		text := ValueOr(FirstDefined(result.RawText, result.DetectedText), "")
		out.RawText = &text
	}
	return &out
}

func resolveAISummary(scan *internal.RawScanRecord, li *internal.LabelInsights) *internal.AISummary {
	if scan.AISummary != nil {
		return scan.AISummary
	}
	return li.AISummary
}
