package resolver

import (
	"strainscan/internal"
	"strainscan/internal/util"
)

// Resolution is the Identity Resolver's output for one scan record.
type Resolution struct {
	// Identity is the backend's canonicalStrain verbatim when present,
	// otherwise the identity built from the legacy flat fields.
	Identity    internal.CanonicalIdentity
	Precomputed bool

	IsPackagedProduct bool
	Signals           PackagedSignals

	StrainName      string
	StrainSource    internal.IdentitySource
	MatchConfidence float64
	Status          internal.ResolutionStatus

	// MatchedStrainName is the backward-compatible flat name. It takes the
	// resolved name unless that name is the unknown sentinel, in which case
	// the backend's own value is kept.
	MatchedStrainName *string
	MatchedStrainSlug *string

	LabelInsights     *internal.LabelInsights
	PackagingInsights *internal.PackagingInsights
}

// PackagedSignals are the independent hints that a scan shows a packaged
// product.
type PackagedSignals struct {
	Packaging bool
	Label     bool
	AISummary bool
	Source    internal.IdentitySource
}

// Any reports whether at least one signal says "packaged".
func (s PackagedSignals) Any() bool {
	return s.Packaging ||
		s.Label ||
		s.AISummary ||
		s.Source == internal.SourcePackaging ||
		s.Source == internal.SourcePackagedUnknown
}

// Resolve derives the canonical identity of a scan. A canonicalStrain
// supplied by the backend (top-level or inside result) is authoritative.
func (r *Resolver) Resolve(scan *internal.RawScanRecord) Resolution {
	if scan == nil {
		scan = &internal.RawScanRecord{}
	}
	result := scan.Result
	if result == nil {
		result = &internal.ScanResult{}
	}

	out := Resolution{
		MatchedStrainSlug: scan.MatchedStrainSlug,
		LabelInsights:     scan.LabelInsights,
		PackagingInsights: scan.PackagingInsights,
	}

	if canonical := FirstDefined(scan.CanonicalStrain, result.CanonicalStrain); canonical != nil {
		out.Identity = *canonical
		out.Precomputed = true
	} else {
		out.Identity = r.flatIdentity(scan)
	}

	out.Signals = PackagedSignals{
		Packaging: packagingSaysPackaged(scan.PackagingInsights) || packagingSaysPackaged(result.PackagingInsights),
		Label:     labelSaysPackaged(scan.LabelInsights) || labelSaysPackaged(result.LabelInsights),
		AISummary: scan.AISummary != nil && ValueOr(scan.AISummary.IsPackagedProduct, false),
		Source:    out.Identity.Source,
	}
	out.IsPackagedProduct = out.Signals.Any()

	out.StrainName = out.Identity.Name
	if out.StrainName == "" {
		out.StrainName = UnknownStrainName
	}
	out.StrainSource = out.Identity.Source
	if out.StrainSource == "" {
		out.StrainSource = internal.SourceNone
	}
	out.MatchConfidence = out.Identity.Confidence

	if out.StrainName == UnknownStrainName {
		out.Status = internal.ResolutionUnknown
		out.MatchedStrainName = scan.MatchedStrainName
	} else {
		out.Status = internal.ResolutionKnown
		name := out.StrainName
		out.MatchedStrainName = &name
	}
	return out
}

func (r *Resolver) flatIdentity(scan *internal.RawScanRecord) internal.CanonicalIdentity {
	identity := internal.CanonicalIdentity{
		Source: internal.IdentitySource(ValueOr(scan.MatchQuality, "")),
	}
	// The backend's flat name is taken as is; only whitespace is tidied.
	if scan.MatchedStrainName != nil {
		identity.Name = util.CollapseSpaces(*scan.MatchedStrainName)
	}
	if scan.MatchConfidence != nil {
		identity.Confidence = float64(*scan.MatchConfidence)
	}
	return identity
}

func packagingSaysPackaged(p *internal.PackagingInsights) bool {
	return p != nil && ValueOr(p.IsPackagedProduct, false)
}

func labelSaysPackaged(l *internal.LabelInsights) bool {
	return l != nil && ValueOr(l.IsPackagedProduct, false)
}
