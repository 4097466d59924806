package session

import "github.com/kamilpajak/radiolens/pkg/models"

// State is one of Idle, Loading, Succeeded or Failed.
type State interface {
	isState()
}

// Idle is the initial state and the state after Reset.
type Idle struct{}

// Loading means an analysis is in progress. Preview is empty until the file
// has been read.
type Loading struct {
	Preview string
}

// Succeeded holds a completed analysis.
type Succeeded struct {
	Preview string
	Result  *models.AnalysisResult
}

// Failed holds a user-facing failure message. Preview is empty when the file
// itself could not be read.
type Failed struct {
	Preview string
	Message string
}

func (Idle) isState()      {}
func (Loading) isState()   {}
func (Succeeded) isState() {}
func (Failed) isState()    {}

// View is the flat form of a State used by pages and the JSON API.
type View struct {
	IsLoading    bool                   `json:"isLoading"`
	Error        string                 `json:"error,omitempty"`
	Result       *models.AnalysisResult `json:"result,omitempty"`
	ImagePreview string                 `json:"imagePreview,omitempty"`
}

// Flatten converts a State into its View.
func Flatten(st State) View {
	switch s := st.(type) {
	case Loading:
		return View{IsLoading: true, ImagePreview: s.Preview}
	case Succeeded:
		return View{Result: s.Result, ImagePreview: s.Preview}
	case Failed:
		return View{Error: s.Message, ImagePreview: s.Preview}
	default:
		return View{}
	}
}

// UploadEnabled reports whether the upload surface is shown. A failure that
// happened before a preview existed leaves it available.
func (v View) UploadEnabled() bool {
	return v.ImagePreview == "" && !v.IsLoading
}

// CanStartOver reports whether the page should offer "Start Over".
func (v View) CanStartOver() bool {
	return v.ImagePreview != "" || v.IsLoading
}

// HasResults reports whether the results surface should be drawn.
func (v View) HasResults() bool {
	return v.Result != nil && v.ImagePreview != "" && !v.IsLoading
}
