package results

// Confidence bucket thresholds (inclusive lower bounds).
const (
	HighConfidence   = 80
	MediumConfidence = 50
)

// ConfidenceBreakdown counts detections per confidence bucket.
type ConfidenceBreakdown struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Bucket names a confidence score: "high" (>= 80), "medium" (50-79) or
// "low" (< 50).
func Bucket(score float64) string {
	switch {
	case score >= HighConfidence:
		return "high"
	case score >= MediumConfidence:
		return "medium"
	default:
		return "low"
	}
}

// Breakdown buckets detections by confidence score. A missing score counts
// as 0.
func Breakdown(detections []Detection) ConfidenceBreakdown {
	var b ConfidenceBreakdown
	for _, d := range detections {
		switch Bucket(d.Data.Confidence()) {
		case "high":
			b.High++
		case "medium":
			b.Medium++
		default:
			b.Low++
		}
	}
	return b
}
