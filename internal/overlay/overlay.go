// Package overlay draws detection boxes and status text onto video frames.
package overlay

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/stopsign/internal/debounce"
)

// Status lines shown in the top-left corner.
const (
	TextLabel     = "Stop Sign"
	TextDetected  = "Stop Sign Detected"
	TextConfirmed = "Stop Sign Confirmed"
	TextNone      = "No Stop Sign"
)

var (
	// Green is used for boxes and positive status.
	Green = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	// Red is used when nothing is detected.
	Red = color.RGBA{R: 255, G: 0, B: 0, A: 0}
)

// Drawing parameters
const (
	boxThickness  = 3
	labelOffset   = 10
	labelScale    = 0.9
	statusScale   = 1.0
	textThickness = 2
)

// Status line positions.
var (
	primaryLine   = image.Pt(10, 30)
	secondaryLine = image.Pt(10, 60)
)

// DrawDetections outlines every box in green with a "Stop Sign" label above it.
func DrawDetections(frame *gocv.Mat, boxes []image.Rectangle) {
	if frame == nil || frame.Empty() {
		return
	}

	for _, r := range boxes {
		gocv.Rectangle(frame, r, Green, boxThickness)
		gocv.PutText(frame, TextLabel, LabelOrigin(r), gocv.FontHersheySimplex, labelScale, Green, textThickness)
	}
}

// DrawStatus writes the per-frame status lines. hit is whether this frame had
// a raw detection; event is what the debouncer made of it.
func DrawStatus(frame *gocv.Mat, hit bool, event debounce.Event) {
	if frame == nil || frame.Empty() {
		return
	}

	for _, line := range StatusLines(hit, event) {
		gocv.PutText(frame, line.Text, line.Origin, gocv.FontHersheySimplex, statusScale, line.Color, textThickness)
	}
}

// Line is one piece of status text and where it goes.
type Line struct {
	Text   string
	Origin image.Point
	Color  color.RGBA
}

// StatusLines returns the text DrawStatus would render. A confirmed stop sign
// that is holding through a miss still gets the confirmed line.
func StatusLines(hit bool, event debounce.Event) []Line {
	lines := make([]Line, 0, 2)
	if hit {
		lines = append(lines, Line{Text: TextDetected, Origin: primaryLine, Color: Green})
	} else {
		lines = append(lines, Line{Text: TextNone, Origin: primaryLine, Color: Red})
	}
	if event == debounce.EventConfirmed {
		lines = append(lines, Line{Text: TextConfirmed, Origin: secondaryLine, Color: Green})
	}
	return lines
}

// StatusText returns the headline for an event.
func StatusText(event debounce.Event) string {
	switch event {
	case debounce.EventDetected:
		return TextDetected
	case debounce.EventConfirmed:
		return TextConfirmed
	default:
		return TextNone
	}
}

// LabelOrigin places the label just above the box's top-left corner.
func LabelOrigin(r image.Rectangle) image.Point {
	return image.Pt(r.Min.X, r.Min.Y-labelOffset)
}
