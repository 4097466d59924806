package llm

import "errors"

// UserMessage is the only failure text ever shown for a failed analysis.
const UserMessage = "Failed to get a valid analysis from the AI model. The image might be unsupported or an API error occurred."

// ErrMissingAPIKey is returned by NewClient when no credential is configured.
var ErrMissingAPIKey = errors.New("GOOGLE_API_KEY environment variable required")

var (
	errEmptyResponse     = errors.New("empty response from model")
	errInvalidStructure  = errors.New("invalid response structure from API")
	errOutOfRange        = errors.New("response value out of range")
	errNoDiagnoses       = errors.New("response contains no diagnoses")
	errMissingCondition  = errors.New("diagnosis without condition")
	errMissingAreaDetail = errors.New("attention area without description")
)

// AnalysisError is the uniform failure of Client.Analyze. Its message is
// always UserMessage; the underlying cause is available through Unwrap for
// logging and errors.Is checks.
type AnalysisError struct {
	Cause error
}

func (e *AnalysisError) Error() string {
	return UserMessage
}

func (e *AnalysisError) Unwrap() error {
	return e.Cause
}
