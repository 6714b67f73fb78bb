package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"strainscan/internal"
)

var exportHeaders = []string{
	"scan_id", "source", "external_id", "created_at", "status",
	"strain_name", "strain_source", "match_confidence", "is_packaged_product", "scan_kind", "resolution_status",
	"matched_strain_slug", "top_match_name", "top_match_slug", "top_match_confidence",
	"candidate2_name", "candidate2_confidence", "mined_label_name",
}

func ExportRowsToXLSX(rows []internal.ScanExportRow, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.ScanID)
		set(2, row.Source)
		set(3, row.ExternalID)
		set(4, row.CreatedAt)
		set(5, row.Status)
		set(6, row.StrainName)
		set(7, row.StrainSource)
		set(8, row.MatchConfidence)
		set(9, row.IsPackagedProduct)
		set(10, row.ScanKind)
		set(11, row.ResolutionStatus)
		set(12, derefString(row.MatchedStrainSlug))
		set(13, derefString(row.TopMatchName))
		set(14, derefString(row.TopMatchSlug))
		set(15, derefFloat(row.TopMatchConfidence))
		set(16, derefString(row.Candidate2Name))
		set(17, derefFloat(row.Candidate2Confidence))
		set(18, derefString(row.MinedLabelName))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

// ExportRowFromReadModel flattens a read-model that never went through
// storage, as in one-shot mode.
func ExportRowFromReadModel(rm *internal.NormalizedScanResult, scanKind string) internal.ScanExportRow {
	row := internal.ScanExportRow{
		ExternalID:        rm.ID.String(),
		CreatedAt:         derefString(rm.CreatedAt),
		Status:            derefString(rm.Status),
		StrainName:        rm.StrainName,
		StrainSource:      string(rm.StrainSource),
		MatchConfidence:   rm.MatchConfidence,
		IsPackagedProduct: rm.IsPackagedProduct,
		ScanKind:          scanKind,
		ResolutionStatus:  string(rm.ResolutionStatus),
		MatchedStrainSlug: rm.MatchedStrainSlug,
		MinedLabelName:    rm.MinedLabelName,
	}
	if rm.TopMatch != nil {
		row.TopMatchName = &rm.TopMatch.Name
		row.TopMatchSlug = rm.TopMatch.Slug
		row.TopMatchConfidence = &rm.TopMatch.Confidence
	}
	if len(rm.OtherMatches) > 0 {
		row.Candidate2Name = &rm.OtherMatches[0].Name
		row.Candidate2Confidence = &rm.OtherMatches[0].Confidence
	}
	return row
}

func WriteJSON(value any, outputPath string) error {
	blob, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outputPath, blob, 0o644)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
