package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strainscan/internal"
)

func matchNames(matches []internal.NormalizedMatch) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Name)
	}
	return out
}

func TestNormalizeWithoutResult(t *testing.T) {
	assert.Nil(t, Normalize(nil))
	assert.Nil(t, Normalize(decodeScan(t, `{}`)))
	assert.Nil(t, Normalize(decodeScan(t, `{"id": 1, "result": null, "matched_strain_name": "Gelato"}`)))
}

func TestNormalizeEmptyResult(t *testing.T) {
	rm := Normalize(decodeScan(t, `{"result": {}}`))
	require.NotNil(t, rm)
	assert.Nil(t, rm.TopMatch)
	assert.NotNil(t, rm.OtherMatches)
	assert.Empty(t, rm.OtherMatches)
	assert.Empty(t, rm.Matches)
	assert.Equal(t, UnknownStrainName, rm.StrainName)
	assert.Equal(t, internal.SourceNone, rm.StrainSource)
	assert.Equal(t, 0.0, rm.MatchConfidence)
	assert.False(t, rm.IsPackagedProduct)
	assert.Equal(t, []string{}, rm.EffectsTags)
	assert.Equal(t, []string{}, rm.FlavorTags)
	require.NotNil(t, rm.LabelInsights)
	require.NotNil(t, rm.LabelInsights.RawText)
	assert.Equal(t, "", *rm.LabelInsights.RawText)
}

func TestNormalizePrefersVisualMatches(t *testing.T) {
	rm := Normalize(decodeScan(t, `{"result": {
		"visualMatches": {
			"match": {"strain": {"name": "Gelato", "slug": "gelato"}, "confidence": 0.92},
			"candidates": [{"strain": {"name": "Runtz"}, "confidence": 0.4}, null]
		},
		"matches": [{"name": "Flat One"}],
		"match": {"name": "Single"}
	}}`))
	require.NotNil(t, rm)
	assert.Equal(t, []string{"Gelato", "Runtz"}, matchNames(rm.Matches))
	require.NotNil(t, rm.TopMatch)
	assert.Equal(t, "Gelato", rm.TopMatch.Name)
	assert.Equal(t, []string{"Runtz"}, matchNames(rm.OtherMatches))
}

func TestNormalizeVisualCandidatesWithoutPrimary(t *testing.T) {
	rm := Normalize(decodeScan(t, `{"result": {
		"visualMatches": {"candidates": [{"name": "Zkittlez"}, {"name": "Gelato"}]},
		"matches": [{"name": "Flat One"}]
	}}`))
	require.NotNil(t, rm)
	assert.Equal(t, []string{"Zkittlez", "Gelato"}, matchNames(rm.Matches))
}

func TestNormalizeFallsBackToFlatShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "empty visual matches",
			raw:  `{"result": {"visualMatches": {"candidates": []}, "matches": [{"name": "A"}, {"name": "B"}]}}`,
			want: []string{"A", "B"},
		},
		{
			name: "flat list",
			raw:  `{"result": {"matches": [{"name": "A"}]}}`,
			want: []string{"A"},
		},
		{
			name: "single match",
			raw:  `{"result": {"match": {"strain": {"name": "Solo"}}}}`,
			want: []string{"Solo"},
		},
		{
			name: "flat list preferred over single",
			raw:  `{"result": {"matches": [{"name": "A"}], "match": {"name": "Solo"}}}`,
			want: []string{"A"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rm := Normalize(decodeScan(t, tc.raw))
			require.NotNil(t, rm)
			assert.Equal(t, tc.want, matchNames(rm.Matches))
		})
	}
}

func TestSelectMatchSource(t *testing.T) {
	assert.IsType(t, NoMatches{}, SelectMatchSource(nil))
	assert.IsType(t, NoMatches{}, SelectMatchSource(&internal.ScanResult{}))
	assert.IsType(t, NestedVisual{}, SelectMatchSource(&internal.ScanResult{
		VisualMatches: &internal.VisualMatches{Match: &internal.MatchCandidate{}},
	}))
	assert.IsType(t, Flat{}, SelectMatchSource(&internal.ScanResult{
		VisualMatches: &internal.VisualMatches{},
		Matches:       []*internal.MatchCandidate{{}},
	}))
	assert.IsType(t, Single{}, SelectMatchSource(&internal.ScanResult{
		Matches: []*internal.MatchCandidate{nil},
		Match:   &internal.MatchCandidate{},
	}))
}

func TestNormalizeMatchFallbacks(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want internal.NormalizedMatch
	}{
		{
			name: "wrapped strain",
			raw: `{"result": {"match": {
				"strain": {"name": "Gelato", "strain_slug": "gelato-41", "slug": "gelato", "category": "Indica", "summary": "sweet"},
				"score": 0.8, "probability": 0.1
			}}}`,
			want: internal.NormalizedMatch{
				ID: "gelato-41", Slug: strPtr("gelato-41"), Name: "Gelato", Type: "Indica",
				Description: "sweet", Confidence: 0.8, DBMeta: map[string]any{},
			},
		},
		{
			name: "direct strain with numeric id",
			raw:  `{"result": {"match": {"name": "Runtz", "id": 42, "type": "Hybrid", "description": "candy", "probability": 0.3}}}`,
			want: internal.NormalizedMatch{
				ID: "42", Slug: strPtr("42"), Name: "Runtz", Type: "Hybrid",
				Description: "candy", Confidence: 0.3, DBMeta: map[string]any{},
			},
		},
		{
			name: "bare candidate",
			raw:  `{"result": {"match": {}}}`,
			want: internal.NormalizedMatch{
				ID: "Unknown strain", Name: "Unknown strain", Type: "Hybrid", DBMeta: map[string]any{},
			},
		},
		{
			name: "explicit empty name",
			raw:  `{"result": {"match": {"name": ""}}}`,
			want: internal.NormalizedMatch{
				ID: "unknown", Name: "", Type: "Hybrid", DBMeta: map[string]any{},
			},
		},
		{
			name: "db meta from wrapper",
			raw:  `{"result": {"match": {"strain": {"name": "Mints", "dbMeta": {"thc": 20}}, "dbMeta": {"id": "abc"}, "confidence": "0.5"}}}`,
			want: internal.NormalizedMatch{
				ID: "Mints", Name: "Mints", Type: "Hybrid", Confidence: 0.5, DBMeta: map[string]any{"id": "abc"},
			},
		},
		{
			name: "db meta from wrapped strain",
			raw:  `{"result": {"match": {"strain": {"name": "Mints", "dbMeta": {"thc": 20}}}}}`,
			want: internal.NormalizedMatch{
				ID: "Mints", Name: "Mints", Type: "Hybrid", DBMeta: map[string]any{"thc": float64(20)},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rm := Normalize(decodeScan(t, tc.raw))
			require.NotNil(t, rm)
			require.NotNil(t, rm.TopMatch)
			assert.Equal(t, tc.want, *rm.TopMatch)
		})
	}
}

func TestNormalizeLabelInsights(t *testing.T) {
	t.Run("result label insights backfilled without mutating input", func(t *testing.T) {
		scan := decodeScan(t, `{"result": {"labelInsights": {"strainName": "Gelato"}, "rawText": "Gelato Cake\nTHC 25%", "detectedText": "ignored"}}`)
		before := snapshot(t, scan)

		rm := Normalize(scan)
		require.NotNil(t, rm)
		require.NotNil(t, rm.LabelInsights.RawText)
		assert.Equal(t, "Gelato Cake\nTHC 25%", *rm.LabelInsights.RawText)
		assert.Equal(t, "Gelato", *rm.LabelInsights.StrainName)
		require.NotNil(t, rm.MinedLabelName)
		assert.Equal(t, "Gelato Cake", *rm.MinedLabelName)
		assert.Equal(t, before, snapshot(t, scan))
	})

	t.Run("visual label insights", func(t *testing.T) {
		rm := Normalize(decodeScan(t, `{"result": {"visualMatches": {"labelInsights": {"rawText": "Sour Diesel"}}, "detectedText": "x"}}`))
		require.NotNil(t, rm)
		assert.Equal(t, "Sour Diesel", *rm.LabelInsights.RawText)
	})

	t.Run("scan level label insights", func(t *testing.T) {
		rm := Normalize(decodeScan(t, `{"label_insights": {"brandName": "Acme"}, "result": {"detectedText": "Acme OG"}}`))
		require.NotNil(t, rm)
		assert.Equal(t, "Acme", *rm.LabelInsights.BrandName)
		assert.Equal(t, "Acme OG", *rm.LabelInsights.RawText)
	})

	t.Run("existing empty raw text kept", func(t *testing.T) {
		rm := Normalize(decodeScan(t, `{"result": {"labelInsights": {"rawText": ""}, "rawText": "fallback"}}`))
		require.NotNil(t, rm)
		assert.Equal(t, "", *rm.LabelInsights.RawText)
		assert.Nil(t, rm.MinedLabelName)
	})
}

func TestNormalizeMatchedSlugChain(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want *string
	}{
		{
			name: "result slug first",
			raw:  `{"matched_strain_slug": "scan", "result": {"matched_strain_slug": "result", "match": {"slug": "top"}}}`,
			want: strPtr("result"),
		},
		{
			name: "scan slug second",
			raw:  `{"matched_strain_slug": "scan", "result": {"match": {"slug": "top"}}}`,
			want: strPtr("scan"),
		},
		{
			name: "wrapped strain slug",
			raw:  `{"result": {"match": {"strain": {"strain_slug": "wrapped-strain-slug", "slug": "wrapped-slug"}, "slug": "outer"}}}`,
			want: strPtr("wrapped-strain-slug"),
		},
		{
			name: "wrapped slug",
			raw:  `{"result": {"match": {"strain": {"slug": "wrapped-slug"}, "strain_slug": "outer"}}}`,
			want: strPtr("wrapped-slug"),
		},
		{
			name: "candidate slug",
			raw:  `{"result": {"match": {"name": "A", "slug": "a"}}}`,
			want: strPtr("a"),
		},
		{
			name: "none",
			raw:  `{"result": {"match": {"name": "A", "id": 7}}}`,
			want: nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rm := Normalize(decodeScan(t, tc.raw))
			require.NotNil(t, rm)
			assert.Equal(t, tc.want, rm.MatchedStrainSlug)
		})
	}
}

func TestNormalizeCarriesIdentityAndInsights(t *testing.T) {
	scan := decodeScan(t, `{
		"id": "scan-1",
		"created_at": "2026-01-02T03:04:05Z",
		"image_url": "https://cdn.example/scan-1.jpg",
		"status": "complete",
		"matched_strain_name": "Blue Dream",
		"canonicalStrain": {"name": "Cannabis (strain unknown)", "source": "packaged-unknown", "confidence": 0},
		"packaging_insights": {"brandName": "Scan Level"},
		"ai_summary": {"title": "Hazy", "intensity": 3},
		"result": {
			"packagingInsights": {"category": "vape"},
			"labelInsights": {"aiSummary": {"title": "From label"}}
		}
	}`)

	rm := Normalize(scan)
	require.NotNil(t, rm)
	assert.Equal(t, "scan-1", rm.ID.String())
	assert.Equal(t, UnknownStrainName, rm.StrainName)
	assert.Equal(t, internal.SourcePackagedUnknown, rm.StrainSource)
	assert.True(t, rm.IsPackagedProduct)
	assert.Equal(t, internal.ResolutionUnknown, rm.ResolutionStatus)
	require.NotNil(t, rm.MatchedStrainName)
	assert.Equal(t, "Blue Dream", *rm.MatchedStrainName)
	require.NotNil(t, rm.PackagingInsights)
	assert.Equal(t, "vape", *rm.PackagingInsights.Category)
	require.NotNil(t, rm.AISummary)
	assert.Equal(t, "Hazy", *rm.AISummary.Title)
	assert.Equal(t, KindVapeCartridge, ScanKind(rm))
}

func TestNormalizePackagingInsightsFallback(t *testing.T) {
	rm := Normalize(decodeScan(t, `{"packaging_insights": {"isPackagedProduct": true, "productType": "Live Rosin"}, "result": {}}`))
	require.NotNil(t, rm)
	require.NotNil(t, rm.PackagingInsights)
	assert.True(t, rm.IsPackagedProduct)
	assert.Equal(t, KindConcentrate, ScanKind(rm))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	raw := `{"result": {"visualMatches": {"match": {"name": "Gelato"}, "candidates": [{"name": "Runtz"}]}, "rawText": "Gelato Kush"}}`
	first := snapshot(t, Normalize(decodeScan(t, raw)))
	second := snapshot(t, Normalize(decodeScan(t, raw)))
	assert.Equal(t, first, second)
}

func strPtr(v string) *string { return &v }
