// Package detector provides stop-sign detection interfaces and the OpenCV cascade implementation.
package detector

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
)

// Default cascade parameters. They are stricter than OpenCV's defaults to keep
// false positives down.
const (
	DefaultCascadePath  = "stop_sign_cascade.xml"
	DefaultScaleFactor  = 1.2
	DefaultMinNeighbors = 8
	DefaultMinSize      = 50
)

var (
	// ErrEmptyFrame is returned when Detect is given a nil or empty frame.
	ErrEmptyFrame = errors.New("frame is empty")
	// ErrCascadeNotFound is returned when the cascade file does not exist.
	ErrCascadeNotFound = errors.New("cascade file not found")
	// ErrCascadeLoad is returned when OpenCV cannot parse the cascade file.
	ErrCascadeLoad = errors.New("could not load cascade classifier")
)

// Detector defines the interface for stop-sign detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the bounding boxes of candidate stop signs.
	// Returns an empty slice if nothing is found.
	Detect(frame *gocv.Mat) ([]image.Rectangle, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for cascade detection.
type Config struct {
	// CascadePath is the pretrained Haar cascade XML file.
	CascadePath string

	// ScaleFactor is how much the image is shrunk at each pyramid level (must be > 1).
	ScaleFactor float64

	// MinNeighbors is how many overlapping candidates a detection needs to be kept.
	MinNeighbors int

	// MinSize is the smallest square, in pixels, that is reported.
	MinSize int
}

// DefaultConfig returns a Config with the stock stop-sign parameters.
func DefaultConfig() Config {
	return Config{
		CascadePath:  DefaultCascadePath,
		ScaleFactor:  DefaultScaleFactor,
		MinNeighbors: DefaultMinNeighbors,
		MinSize:      DefaultMinSize,
	}
}

// HasDetection reports whether a detection result contains at least one box.
func HasDetection(boxes []image.Rectangle) bool {
	return len(boxes) > 0
}
