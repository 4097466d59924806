package models

// Diagnosis is one candidate condition reported by the model.
type Diagnosis struct {
	Condition   string  `json:"condition"`
	Probability float64 `json:"probability"` // 0.0 - 1.0, not enforced
}

// AttentionArea is the single region of interest in the image. Coordinates
// are percentages of the image dimensions, measured from the top-left corner.
type AttentionArea struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Description string  `json:"description"`
}

// AnalysisResult is the structured reply of one successful analysis.
// Diagnoses carry no particular order; consumers sort for display.
type AnalysisResult struct {
	Diagnoses     []Diagnosis   `json:"diagnoses"`
	Explanation   string        `json:"explanation"`
	AttentionArea AttentionArea `json:"attentionArea"`
}
