// Package results turns an analysis into what the user sees: a probability
// chart, the narrative report and the attention overlay on the image.
package results

import (
	"cmp"
	"embed"
	"html/template"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/kamilpajak/radiolens/pkg/models"
)

//go:embed templates
var templateFS embed.FS

var tmpl = template.Must(template.New("").Funcs(template.FuncMap{
	"pct":   pct,
	"image": imageURL,
}).ParseFS(templateFS, "templates/*.html"))

// Bar is one row of the probability chart.
type Bar struct {
	Condition string
	// Percent is the probability scaled to 0-100 and rounded to one decimal.
	Percent float64
	// Width is Percent limited to the chart axis.
	Width float64
}

// Overlay positions the attention box over the image. All values are
// percentages of the image box, copied from the analysis without clamping.
type Overlay struct {
	Left        float64
	Top         float64
	Width       float64
	Height      float64
	Description string
}

// View is everything the results surface draws.
type View struct {
	ImageSrc    string
	Bars        []Bar
	Explanation string
	Overlay     Overlay
}

// Build derives the view from a result. The result is not modified.
func Build(r *models.AnalysisResult, imageSrc string) View {
	bars := make([]Bar, 0, len(r.Diagnoses))
	for _, d := range r.Diagnoses {
		p := Percent(d.Probability)
		bars = append(bars, Bar{Condition: d.Condition, Percent: p, Width: min(max(p, 0), 100)})
	}
	slices.SortStableFunc(bars, func(a, b Bar) int {
		return cmp.Compare(b.Percent, a.Percent)
	})

	area := r.AttentionArea
	return View{
		ImageSrc:    imageSrc,
		Bars:        bars,
		Explanation: r.Explanation,
		Overlay: Overlay{
			Left:        area.X,
			Top:         area.Y,
			Width:       area.Width,
			Height:      area.Height,
			Description: area.Description,
		},
	}
}

// Percent converts a probability to a percentage with one decimal.
func Percent(p float64) float64 {
	return math.Round(p*1000) / 10
}

// Render writes the results HTML fragment.
func Render(w io.Writer, v View) error {
	return tmpl.ExecuteTemplate(w, "results.html", v)
}

// RenderPage writes a standalone HTML document containing the fragment and
// its stylesheet.
func RenderPage(w io.Writer, v View) error {
	return tmpl.ExecuteTemplate(w, "page.html", struct {
		View
		Style template.CSS
	}{v, template.CSS(Stylesheet())})
}

// Stylesheet returns the CSS used by the fragment.
func Stylesheet() []byte {
	css, _ := templateFS.ReadFile("templates/results.css")
	return css
}

func pct(v float64) template.CSS {
	return template.CSS(strconv.FormatFloat(v, 'f', -1, 64) + "%")
}

// imageURL lets data URIs through the template URL filter, which otherwise
// only accepts http, https and mailto.
func imageURL(src string) any {
	if strings.HasPrefix(src, "data:") {
		return template.URL(src)
	}
	return src
}
