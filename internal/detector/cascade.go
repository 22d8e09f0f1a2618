package detector

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// cascadeScaleImage mirrors OpenCV's CASCADE_SCALE_IMAGE flag.
const cascadeScaleImage = 2

// CascadeDetector implements Detector using an OpenCV Haar cascade classifier.
type CascadeDetector struct {
	config     Config
	classifier gocv.CascadeClassifier
	mu         sync.Mutex
	closed     bool
}

// NewCascadeDetector loads the cascade described by config.
// Zero-valued tuning fields fall back to the defaults.
func NewCascadeDetector(config Config) (*CascadeDetector, error) {
	config = config.withDefaults()

	if _, err := os.Stat(config.CascadePath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCascadeNotFound, config.CascadePath)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(config.CascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("%w: %s", ErrCascadeLoad, config.CascadePath)
	}

	return &CascadeDetector{
		config:     config,
		classifier: classifier,
	}, nil
}

// Detect converts the frame to grayscale and runs a multi-scale scan over it.
func (d *CascadeDetector) Detect(frame *gocv.Mat) ([]image.Rectangle, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("detector is closed")
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	minSize := image.Pt(d.config.MinSize, d.config.MinSize)
	rects := d.classifier.DetectMultiScaleWithParams(
		gray,
		d.config.ScaleFactor,
		d.config.MinNeighbors,
		cascadeScaleImage,
		minSize,
		image.Point{},
	)

	return rects, nil
}

// Close releases the classifier. Calling Close more than once is safe.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.classifier.Close()
}

// Config returns the effective detection parameters.
func (d *CascadeDetector) Config() Config {
	return d.config
}

func (c Config) withDefaults() Config {
	if c.CascadePath == "" {
		c.CascadePath = DefaultCascadePath
	}
	if c.ScaleFactor <= 1 {
		c.ScaleFactor = DefaultScaleFactor
	}
	if c.MinNeighbors <= 0 {
		c.MinNeighbors = DefaultMinNeighbors
	}
	if c.MinSize <= 0 {
		c.MinSize = DefaultMinSize
	}
	return c
}
