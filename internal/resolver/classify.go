package resolver

import (
	"strings"

	"strainscan/internal"
)

const (
	KindVapeCartridge   = "Vape cartridge"
	KindConcentrate     = "Concentrate"
	KindPreRoll         = "Pre-roll"
	KindEdible          = "Edible"
	KindFlower          = "Flower"
	KindPackagedProduct = "Packaged product"
	KindFlowerStrain    = "Flower strain"
	KindPlant           = "Plant"
)

var concentrateMarkers = []string{"concentrate", "sauce", "rosin", "wax", "shatter"}

// Classify labels what kind of product a scan shows. First match wins.
func Classify(isPackagedProduct bool, category, productType string) string {
	cat := strings.ToLower(category)
	typ := strings.ToLower(productType)
	has := func(markers ...string) bool {
		for _, m := range markers {
			if strings.Contains(cat, m) || strings.Contains(typ, m) {
				return true
			}
		}
		return false
	}

	if !isPackagedProduct {
		if cat == "flower" {
			return KindFlowerStrain
		}
		return KindPlant
	}

	switch {
	case has("vape", "cartridge"):
		return KindVapeCartridge
	case has(concentrateMarkers...):
		return KindConcentrate
	case has("pre-roll", "preroll"):
		return KindPreRoll
	case cat == "edible" || has("edible"):
		return KindEdible
	case cat == "flower" || has("flower"):
		return KindFlower
	default:
		return KindPackagedProduct
	}
}

// ScanKind classifies a normalized scan from its label and packaging
// insights.
func ScanKind(rm *internal.NormalizedScanResult) string {
	if rm == nil {
		return Classify(false, "", "")
	}
	var labelCategory, labelType, packCategory, packType *string
	if rm.LabelInsights != nil {
		labelCategory, labelType = rm.LabelInsights.Category, rm.LabelInsights.ProductType
	}
	if rm.PackagingInsights != nil {
		packCategory, packType = rm.PackagingInsights.Category, rm.PackagingInsights.ProductType
	}
	return Classify(
		rm.IsPackagedProduct,
		FirstNonEmpty(labelCategory, packCategory),
		FirstNonEmpty(labelType, packType),
	)
}

// StrainNameForJournal pre-fills a journal entry's strain name from a
// selected match.
func (r *Resolver) StrainNameForJournal(m *internal.NormalizedMatch) string {
	if m == nil {
		return UnknownStrainName
	}
	if name, ok := r.Clean(m.Name); ok && name != unknownMatchName {
		return name
	}
	return UnknownStrainName
}
