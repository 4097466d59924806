package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kamilpajak/radiolens/pkg/models"
)

// requiredKeys are the top-level reply fields. They are matched exactly:
// encoding/json alone would also accept "Explanation" or "DIAGNOSES".
var requiredKeys = []string{"diagnoses", "explanation", "attentionArea"}

// wireResult mirrors models.AnalysisResult with nil-able fields so that a
// null value can be told apart from a zero value.
type wireResult struct {
	Diagnoses     []models.Diagnosis
	Explanation   string
	AttentionArea *models.AttentionArea
}

// ParseResult decodes the model's JSON reply. Only the presence of the three
// top-level fields is checked unless strict is set; an empty diagnoses list
// and out-of-range numbers pass through untouched.
func ParseResult(text string, strict bool) (*models.AnalysisResult, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse model reply: %w", err)
	}
	for _, key := range requiredKeys {
		if _, ok := raw[key]; !ok {
			return nil, fmt.Errorf("missing %q: %w", key, errInvalidStructure)
		}
	}

	var w wireResult
	fields := []struct {
		key string
		dst any
	}{
		{"diagnoses", &w.Diagnoses},
		{"explanation", &w.Explanation},
		{"attentionArea", &w.AttentionArea},
	}
	for _, f := range fields {
		if err := json.Unmarshal(raw[f.key], f.dst); err != nil {
			return nil, fmt.Errorf("failed to parse model reply: %s: %w", f.key, err)
		}
	}

	if w.Diagnoses == nil || w.Explanation == "" || w.AttentionArea == nil {
		return nil, errInvalidStructure
	}

	result := &models.AnalysisResult{
		Diagnoses:     w.Diagnoses,
		Explanation:   w.Explanation,
		AttentionArea: *w.AttentionArea,
	}

	if strict {
		if err := validateStrict(result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func validateStrict(r *models.AnalysisResult) error {
	if len(r.Diagnoses) == 0 {
		return errNoDiagnoses
	}
	for i, d := range r.Diagnoses {
		if strings.TrimSpace(d.Condition) == "" {
			return fmt.Errorf("diagnoses[%d]: %w", i, errMissingCondition)
		}
		if d.Probability < 0 || d.Probability > 1 {
			return fmt.Errorf("diagnoses[%d].probability=%g: %w", i, d.Probability, errOutOfRange)
		}
	}

	a := r.AttentionArea
	for name, v := range map[string]float64{"x": a.X, "y": a.Y, "width": a.Width, "height": a.Height} {
		if v < 0 || v > 100 {
			return fmt.Errorf("attentionArea.%s=%g: %w", name, v, errOutOfRange)
		}
	}
	if strings.TrimSpace(a.Description) == "" {
		return errMissingAreaDetail
	}
	return nil
}
