package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// csvHeaders fixes the flattened column order for spreadsheet import.
var csvHeaders = []string{"control_id", "status", "confidence_score", "matched_text", "explanation"}

// ExportCSV flattens a report's results into a timestamped CSV file under
// outDir and returns the written path.
func ExportCSV(r GapReport, outDir string) (string, error) {
	if len(r.Results) == 0 {
		return "", fmt.Errorf("report has no results to export")
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}
	path := filepath.Join(outDir, fmt.Sprintf("gap_report_%s.csv", time.Now().Format("20060102_1504")))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating CSV file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeaders); err != nil {
		return "", err
	}
	for _, v := range r.Results {
		controlID := v.ControlID
		if controlID == "" {
			controlID = "Unknown"
		}
		status := string(v.Status)
		if status == "" {
			status = "Unknown"
		}
		matched := v.MatchedText
		if matched == "" {
			matched = "N/A"
		}
		explanation := v.Explanation
		if explanation == "" {
			explanation = "N/A"
		}
		row := []string{
			controlID,
			status,
			strconv.FormatFloat(v.ConfidenceScore, 'f', -1, 64),
			matched,
			explanation,
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("writing CSV: %w", err)
	}
	return path, nil
}
