package internal

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexString decodes from either a JSON string or a JSON number. Backend ids
// and slugs arrive in both forms.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f *FlexString) String() string {
	if f == nil {
		return ""
	}
	return string(*f)
}

// FlexFloat decodes from a JSON number or a numeric string.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		*f = FlexFloat(parsed)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

type IdentitySource string

const (
	SourcePackaging       IdentitySource = "packaging"
	SourceLabel           IdentitySource = "label"
	SourceVisual          IdentitySource = "visual"
	SourcePackagedUnknown IdentitySource = "packaged-unknown"
	SourceNone            IdentitySource = "none"
)

type ResolutionStatus string

const (
	ResolutionKnown   ResolutionStatus = "known"
	ResolutionUnknown ResolutionStatus = "unknown"
)

// CanonicalIdentity is the single product identity derived for a scan.
type CanonicalIdentity struct {
	Name       string         `json:"name"`
	Source     IdentitySource `json:"source"`
	Confidence float64        `json:"confidence"`
}

type AISummary struct {
	IsPackagedProduct *bool      `json:"isPackagedProduct,omitempty"`
	Title             *string    `json:"title,omitempty"`
	Summary           *string    `json:"summary,omitempty"`
	Intensity         *FlexFloat `json:"intensity,omitempty"`
	PotencyScore      *FlexFloat `json:"potency_score,omitempty"`
}

type LabelInsights struct {
	IsPackagedProduct *bool      `json:"isPackagedProduct,omitempty"`
	StrainName        *string    `json:"strainName,omitempty"`
	BrandName         *string    `json:"brandName,omitempty"`
	Category          *string    `json:"category,omitempty"`
	ProductType       *string    `json:"productType,omitempty"`
	AISummary         *AISummary `json:"aiSummary,omitempty"`
	RawText           *string    `json:"rawText,omitempty"`
}

type PackagingInsights struct {
	IsPackagedProduct *bool   `json:"isPackagedProduct,omitempty"`
	StrainName        *string `json:"strainName,omitempty"`
	BrandName         *string `json:"brandName,omitempty"`
	Category          *string `json:"category,omitempty"`
	ProductType       *string `json:"productType,omitempty"`
}

// Strain is the strain object as the recognition backend describes it.
type Strain struct {
	ID          *FlexString    `json:"id,omitempty"`
	StrainSlug  *string        `json:"strain_slug,omitempty"`
	Slug        *string        `json:"slug,omitempty"`
	Name        *string        `json:"name,omitempty"`
	Type        *string        `json:"type,omitempty"`
	Category    *string        `json:"category,omitempty"`
	Description *string        `json:"description,omitempty"`
	Summary     *string        `json:"summary,omitempty"`
	DBMeta      map[string]any `json:"dbMeta,omitempty"`
}

// MatchCandidate is either a strain object directly or a wrapper carrying
// the strain under "strain" next to its scoring fields.
type MatchCandidate struct {
	Strain
	Wrapped     *Strain    `json:"strain,omitempty"`
	Confidence  *FlexFloat `json:"confidence,omitempty"`
	Score       *FlexFloat `json:"score,omitempty"`
	Probability *FlexFloat `json:"probability,omitempty"`
}

type VisualMatches struct {
	Match         *MatchCandidate   `json:"match,omitempty"`
	Candidates    []*MatchCandidate `json:"candidates,omitempty"`
	LabelInsights *LabelInsights    `json:"labelInsights,omitempty"`
}

// ScanResult is the nested AI payload of a scan record.
type ScanResult struct {
	VisualMatches     *VisualMatches     `json:"visualMatches,omitempty"`
	Matches           []*MatchCandidate  `json:"matches,omitempty"`
	Match             *MatchCandidate    `json:"match,omitempty"`
	LabelInsights     *LabelInsights     `json:"labelInsights,omitempty"`
	PackagingInsights *PackagingInsights `json:"packagingInsights,omitempty"`
	RawText           *string            `json:"rawText,omitempty"`
	DetectedText      *string            `json:"detectedText,omitempty"`
	CanonicalStrain   *CanonicalIdentity `json:"canonicalStrain,omitempty"`
	MatchedStrainSlug *string            `json:"matched_strain_slug,omitempty"`
}

// RawScanRecord is the untrusted scan row produced by the recognition
// backend. Every field is optional.
type RawScanRecord struct {
	ID                *FlexString        `json:"id,omitempty"`
	CreatedAt         *string            `json:"created_at,omitempty"`
	ImageURL          *string            `json:"image_url,omitempty"`
	Status            *string            `json:"status,omitempty"`
	Result            *ScanResult        `json:"result,omitempty"`
	PackagingInsights *PackagingInsights `json:"packaging_insights,omitempty"`
	LabelInsights     *LabelInsights     `json:"label_insights,omitempty"`
	AISummary         *AISummary         `json:"ai_summary,omitempty"`
	MatchedStrainSlug *string            `json:"matched_strain_slug,omitempty"`
	MatchedStrainName *string            `json:"matched_strain_name,omitempty"`
	MatchConfidence   *FlexFloat         `json:"match_confidence,omitempty"`
	MatchQuality      *string            `json:"match_quality,omitempty"`
	CanonicalStrain   *CanonicalIdentity `json:"canonicalStrain,omitempty"`
}

type NormalizedMatch struct {
	ID          string         `json:"id"`
	Slug        *string        `json:"slug"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Confidence  float64        `json:"confidence"`
	DBMeta      map[string]any `json:"dbMeta"`
}

// NormalizedScanResult is the read-model handed to UI consumers.
type NormalizedScanResult struct {
	ID        *FlexString `json:"id,omitempty"`
	CreatedAt *string     `json:"created_at,omitempty"`
	ImageURL  *string     `json:"image_url,omitempty"`
	Status    *string     `json:"status,omitempty"`
	Result    *ScanResult `json:"result"`

	MatchedStrainSlug *string    `json:"matched_strain_slug"`
	MatchedStrainName *string    `json:"matched_strain_name"`
	MatchQuality      *string    `json:"match_quality,omitempty"`
	RawMatchConf      *FlexFloat `json:"match_confidence,omitempty"`

	CanonicalStrain   CanonicalIdentity `json:"canonicalStrain"`
	StrainName        string            `json:"strainName"`
	StrainSource      IdentitySource    `json:"strainSource"`
	MatchConfidence   float64           `json:"matchConfidence"`
	IsPackagedProduct bool              `json:"isPackagedProduct"`
	ResolutionStatus  ResolutionStatus  `json:"resolutionStatus"`

	TopMatch     *NormalizedMatch  `json:"topMatch"`
	OtherMatches []NormalizedMatch `json:"otherMatches"`
	Matches      []NormalizedMatch `json:"matches"`

	LabelInsights     *LabelInsights     `json:"labelInsights"`
	AISummary         *AISummary         `json:"aiSummary"`
	PackagingInsights *PackagingInsights `json:"packagingInsights"`
	MinedLabelName    *string            `json:"minedLabelName,omitempty"`

	EffectsTags []string `json:"effectsTags"`
	FlavorTags  []string `json:"flavorTags"`
}

type ScanStatus string

const (
	ScanFetched        ScanStatus = "fetched"
	ScanNormalized     ScanStatus = "normalized"
	ScanAwaitingResult ScanStatus = "awaiting_result"
	ScanFailed         ScanStatus = "failed"
	ScanExported       ScanStatus = "exported"
)

// FetchedScan is one raw scan record pulled from a scan source.
type FetchedScan struct {
	Source     string
	ExternalID string
	CreatedAt  string
	Raw        []byte
	Origin     string
}

type ScanRow struct {
	ID         int
	Source     string
	ExternalID string
	CreatedAt  string
	Hash       string
	Status     ScanStatus
	RawRef     string
}

type StrainRecord struct {
	Slug        string
	CatalogID   *string
	Name        string
	Type        *string
	Description *string
	UpdatedAt   *string
	RawJSON     string
}

type ScanExportRow struct {
	ScanID               int
	Source               string
	ExternalID           string
	CreatedAt            string
	Status               string
	StrainName           string
	StrainSource         string
	MatchConfidence      float64
	IsPackagedProduct    bool
	ScanKind             string
	ResolutionStatus     string
	MatchedStrainSlug    *string
	TopMatchName         *string
	TopMatchSlug         *string
	TopMatchConfidence   *float64
	Candidate2Name       *string
	Candidate2Confidence *float64
	MinedLabelName       *string
}
