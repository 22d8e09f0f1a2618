package detector

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu     sync.Mutex
	boxes  []image.Rectangle
	err    error
	script []bool
	calls  int
	closed bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetBoxes sets the boxes that will be returned by Detect.
func (m *MockDetector) SetBoxes(boxes []image.Rectangle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boxes = boxes
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetScript queues a hit/miss sequence. Each Detect call consumes one entry,
// returning StopSignBox() for a hit and nothing for a miss. Once the script
// runs out Detect falls back to the boxes set with SetBoxes.
func (m *MockDetector) SetScript(hits ...bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append([]bool(nil), hits...)
}

// Detect returns the scripted or pre-configured boxes, or the configured error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]image.Rectangle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++

	if m.err != nil {
		return nil, m.err
	}

	if len(m.script) > 0 {
		hit := m.script[0]
		m.script = m.script[1:]
		if hit {
			return []image.Rectangle{StopSignBox()}, nil
		}
		return nil, nil
	}

	return m.boxes, nil
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close has been called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close marks the mock as closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// StopSignBox returns a preset bounding box roughly where a stop sign sits in
// a 640x480 frame.
func StopSignBox() image.Rectangle {
	return image.Rect(260, 140, 380, 260)
}
