package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNetWeight(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  float64
	}{
		{name: "grams", input: "Net Wt 3.5g", want: 3.5},
		{name: "grams spaced", input: "NET WT. 1 g", want: 1},
		{name: "decimal comma", input: "Netto 3,5 g", want: 3.5},
		{name: "milligrams", input: "500mg total", want: 0.5},
		{name: "ounce", input: "Net weight 1 oz (28g)", want: 28.3495},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parsed := ParseNetWeight(tc.input)
			require.NotNil(t, parsed.Grams)
			require.InDelta(t, tc.want, *parsed.Grams, 1e-9)
		})
	}
}

func TestParseNetWeightNone(t *testing.T) {
	require.Nil(t, ParseNetWeight("OG Kush Premium Flower").Grams)
}

func TestParsePercent(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		marker string
		want   *float64
	}{
		{name: "label first", input: "THC 24.5%", marker: "thc", want: FloatPtr(24.5)},
		{name: "number first", input: "0.8% CBD", marker: "cbd", want: FloatPtr(0.8)},
		{name: "thca counts as thc", input: "THCa: 27.1 %", marker: "thc", want: FloatPtr(27.1)},
		{name: "other marker only", input: "CBD 1.2%", marker: "thc", want: nil},
		{name: "no percent", input: "THC rich", marker: "thc", want: nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParsePercent(tc.input, tc.marker)
			if tc.want == nil {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.InDelta(t, *tc.want, *got, 1e-9)
		})
	}
}
