package extract

import "unicode/utf8"

// Tier buckets recognition confidence for display.
type Tier string

const (
	TierLow    Tier = "Low"
	TierMedium Tier = "Medium"
	TierHigh   Tier = "High"
)

// Tier thresholds are inclusive lower bounds.
const (
	HighConfidence   = 80.0
	MediumConfidence = 60.0
)

// TierFor classifies a 0-100 confidence.
func TierFor(confidence float64) Tier {
	switch {
	case confidence >= HighConfidence:
		return TierHigh
	case confidence >= MediumConfidence:
		return TierMedium
	default:
		return TierLow
	}
}

// Capture advice shown for low-confidence scans.
const (
	SuggestLighting = "Improve lighting: avoid glare and shadows on the card."
	SuggestFlatness = "Place the card on a flat surface so the text is not curved or folded."
	SuggestFocus    = "Hold the camera steady and make sure the text is in focus."
)

// QualityReport describes one recognition attempt.
type QualityReport struct {
	Confidence          float64  `json:"confidence"`
	QualityTier         Tier     `json:"qualityTier"`
	ExtractedFieldCount int      `json:"extractedFieldCount"`
	TextLength          int      `json:"textLength"`
	Suggestions         []string `json:"suggestions"`
}

// Assess builds the QualityReport for text recognized at confidence and the
// record extracted from it. Suggestions are only given below Medium.
func Assess(text string, confidence float64, rec Record) QualityReport {
	q := QualityReport{
		Confidence:          confidence,
		QualityTier:         TierFor(confidence),
		ExtractedFieldCount: rec.Filled(),
		TextLength:          utf8.RuneCountInString(text),
		Suggestions:         []string{},
	}
	if confidence < MediumConfidence {
		q.Suggestions = append(q.Suggestions, SuggestLighting, SuggestFlatness, SuggestFocus)
	}
	return q
}
