// Package enginelog classifies raw engine output and derives the engine status from it.
package enginelog

import "strings"

// Markers holds the literal texts the classifier and the status machine look for.
// The defaults are tuned to the KataGo analysis engine log format.
type Markers struct {
	StderrTag string
	Outbound  string
	Inbound   string

	Ready    string
	Progress string

	ErrorContains []string
	ErrorPrefixes []string

	NotStartedText string
	StartingText   string
	StartedText    string
	ErrorPrefix    string
}

func DefaultMarkers() Markers {
	return Markers{
		StderrTag:      "[STDERR]",
		Outbound:       ">>>",
		Inbound:        "<<<",
		Ready:          "ready to begin handling requests",
		Progress:       "info: visits",
		ErrorContains:  []string{"[error]", "fatal error", " error: "},
		ErrorPrefixes:  []string{"error:"},
		NotStartedText: "Engine not started",
		StartingText:   "Starting engine...",
		StartedText:    "Engine started",
		ErrorPrefix:    "Error: ",
	}
}

// Line is a classified line of engine output.
type Line struct {
	Text            string
	FromStderr      bool
	IsCommunication bool
	IsError         bool
}

// Classify strips the stream tag and classifies raw. Lines that are empty after
// trimming are reported with ok=false and must be dropped.
func (m Markers) Classify(raw string) (line Line, ok bool) {
	text := raw
	if m.StderrTag != "" && strings.HasPrefix(text, m.StderrTag) {
		line.FromStderr = true
		text = strings.TrimPrefix(text, m.StderrTag)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Line{}, false
	}
	line.Text = text

	line.IsCommunication = (m.Outbound != "" && strings.HasPrefix(text, m.Outbound)) ||
		(m.Inbound != "" && strings.HasPrefix(text, m.Inbound))

	// engines write plenty of informational text to stderr, the stream alone is not enough
	line.IsError = line.FromStderr && m.hasErrorMarker(text)
	return line, true
}

func (m Markers) hasErrorMarker(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range m.ErrorPrefixes {
		if strings.HasPrefix(lower, marker) {
			return true
		}
	}
	for _, marker := range m.ErrorContains {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
