package server

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultStreamFPS caps the MJPEG stream when no rate is configured.
const DefaultStreamFPS = 15

// FrameSource provides the latest encoded frame.
type FrameSource interface {
	LatestJPEG() []byte
}

// StreamHandler serves the annotated pipeline frames as MJPEG.
type StreamHandler struct {
	source FrameSource
	fps    int
}

// NewStreamHandler creates a StreamHandler that sends at most fps frames per
// second to each client. fps <= 0 uses DefaultStreamFPS.
func NewStreamHandler(source FrameSource, fps int) *StreamHandler {
	if fps <= 0 {
		fps = DefaultStreamFPS
	}
	return &StreamHandler{source: source, fps: fps}
}

// ServeHTTP streams MJPEG frames to connected clients until they disconnect.
// A frame is only sent when the pipeline has produced a new one.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	limiter := rate.NewLimiter(rate.Every(time.Second/time.Duration(h.fps)), 1)
	var last []byte

	for {
		if err := limiter.Wait(r.Context()); err != nil {
			return
		}

		data := h.source.LatestJPEG()
		if len(data) == 0 || sameFrame(data, last) {
			continue
		}
		last = data

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(data))
		if _, err := w.Write(data); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

// sameFrame reports whether a and b are the same buffer. The pipeline replaces
// the buffer for every frame, so identity is enough.
func sameFrame(a, b []byte) bool {
	return len(a) == len(b) && len(a) > 0 && &a[0] == &b[0]
}
