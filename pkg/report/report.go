// Package report renders the outcome of a scan for operators.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/Sternrassler/screenshare-scanner/pkg/results"
)

// DefaultDisplayLimit is how many detections the text report lists.
const DefaultDisplayLimit = 10

// breakdownThreshold is the detection count above which the confidence
// breakdown is shown.
const breakdownThreshold = 5

// ExportFileName is the conventional name of the JSON export.
const ExportFileName = "detection_results.json"

// Summary holds the headline numbers of a scan.
type Summary struct {
	Checked      int                         `json:"checked"`
	Total        int                         `json:"total"`
	Detections   int                         `json:"detections"`
	Errors       int                         `json:"errors"`
	RateLimitHit bool                        `json:"rate_limit_hit"`
	Breakdown    results.ConfidenceBreakdown `json:"breakdown"`
}

// Build summarises a snapshot taken from a scan over total identifiers.
func Build(snap results.ScanResults, total int) Summary {
	return Summary{
		Checked:      snap.Checked,
		Total:        total,
		Detections:   len(snap.Detected),
		Errors:       len(snap.Errors),
		RateLimitHit: snap.RateLimitHit,
		Breakdown:    results.Breakdown(snap.Detected),
	}
}

// StatusLine describes how the scan ended.
func (s Summary) StatusLine() string {
	if s.RateLimitHit {
		return "Scan was stopped early due to rate limits being hit."
	}
	return "Scan completed successfully."
}

// errWriter keeps the first write error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

// WriteText writes the human readable report. At most displayLimit
// detections are listed; non-positive means DefaultDisplayLimit.
func WriteText(w io.Writer, s Summary, detected []results.Detection, displayLimit int) error {
	if displayLimit <= 0 {
		displayLimit = DefaultDisplayLimit
	}
	ew := &errWriter{w: w}

	ew.printf("%s\n\n", s.StatusLine())
	ew.printf("Statistics\n")
	ew.printf("  Members checked:  %d/%d\n", s.Checked, s.Total)
	ew.printf("  Detections found: %d\n", s.Detections)
	ew.printf("  Errors:           %d\n", s.Errors)

	if len(detected) > 0 {
		ew.printf("\nDetected members\n")
		shown := min(len(detected), displayLimit)
		for _, d := range detected[:shown] {
			ew.printf("  • %s (Confidence: %s)\n", d.ID, formatConfidence(d))
		}
		if len(detected) > shown {
			ew.printf("  • ... and %d more\n", len(detected)-shown)
		}
	}

	if s.Detections > breakdownThreshold {
		ew.printf("\nMultiple detections found: %d members were flagged.\n", s.Detections)
		ew.printf("Confidence breakdown\n")
		ew.printf("  High (%d-100%%):  %d\n", int(results.HighConfidence), s.Breakdown.High)
		ew.printf("  Medium (%d-%d%%): %d\n", int(results.MediumConfidence), int(results.HighConfidence)-1, s.Breakdown.Medium)
		ew.printf("  Low (0-%d%%):     %d\n", int(results.MediumConfidence)-1, s.Breakdown.Low)
	}

	return ew.err
}

func formatConfidence(d results.Detection) string {
	if d.Data.ConfidenceScore == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*d.Data.ConfidenceScore, 'f', -1, 64) + "%"
}

// WriteJSON writes the detection list as indented JSON. The provider's data
// object is written verbatim.
func WriteJSON(w io.Writer, detected []results.Detection) error {
	if detected == nil {
		detected = []results.Detection{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(detected); err != nil {
		return fmt.Errorf("encode detections: %w", err)
	}
	return nil
}
