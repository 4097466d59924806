package results

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

const barWidth = 24

// WriteText renders the view for a terminal.
func WriteText(w io.Writer, v View) error {
	bold := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)

	labelWidth := 0
	for _, b := range v.Bars {
		labelWidth = max(labelWidth, len(b.Condition))
	}

	if _, err := bold.Fprintln(w, "Diagnosis Probabilities"); err != nil {
		return err
	}
	for _, b := range v.Bars {
		if err := writeBar(w, b, labelWidth); err != nil {
			return err
		}
	}

	fmt.Fprintln(w)
	_, _ = bold.Fprintln(w, "AI Radiologist's Report")
	for _, line := range strings.Split(v.Explanation, "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}

	o := v.Overlay
	fmt.Fprintln(w)
	_, _ = color.New(color.Bold, color.FgRed).Fprintln(w, "Area of Interest")
	fmt.Fprintf(w, "  %s\n", o.Description)
	_, err := dim.Fprintf(w, "  x=%g%% y=%g%% width=%g%% height=%g%%\n", o.Left, o.Top, o.Width, o.Height)
	return err
}

func writeBar(w io.Writer, b Bar, labelWidth int) error {
	filled := int(b.Width * barWidth / 100)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	if _, err := fmt.Fprintf(w, "  %-*s ", labelWidth, b.Condition); err != nil {
		return err
	}
	_, _ = color.New(color.FgBlue).Fprint(w, bar)
	_, err := fmt.Fprintf(w, " %5.1f%%\n", b.Percent)
	return err
}
