// Package app wires the camera, stop-sign detector, debouncer and outputs
// into the frame-processing pipeline.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/stopsign/internal/capture"
	"github.com/ayusman/stopsign/internal/debounce"
	"github.com/ayusman/stopsign/internal/detector"
	"github.com/ayusman/stopsign/internal/signal"
	"github.com/ayusman/stopsign/internal/snapshot"
	"github.com/ayusman/stopsign/internal/store"
)

// Pipeline defaults.
const (
	// DefaultWindowName is the title of the preview window.
	DefaultWindowName = "Stop Sign Detection"
	// DefaultUploadTimeout bounds a single snapshot upload.
	DefaultUploadTimeout = 30 * time.Second

	settingEnabled = "detection_enabled"
)

var (
	// ErrNoCamera is returned by Start and Run when no camera is set.
	ErrNoCamera = errors.New("no camera configured")
	// ErrNoDetector is returned by ProcessFrame when no detector is set.
	ErrNoDetector = errors.New("no detector configured")
)

// Config holds configuration options for the application.
type Config struct {
	Store         *store.Store
	CameraID      int
	FPS           int
	Debounce      debounce.Config
	SnapshotDir   string
	ShowWindow    bool
	WindowName    string
	UploadTimeout time.Duration
}

// Status is a point-in-time view of the pipeline.
type Status struct {
	Enabled      bool           `json:"enabled"`
	Running      bool           `json:"running"`
	Phase        debounce.Phase `json:"phase"`
	LastEvent    debounce.Event `json:"last_event"`
	Hits         int            `json:"consecutive_hits"`
	ConfirmedAt  *time.Time     `json:"confirmed_at,omitempty"`
	EpisodeID    string         `json:"episode_id,omitempty"`
	LastSnapshot string         `json:"last_snapshot,omitempty"`
	Signal       signal.Signal  `json:"signal"`
	Frames       int64          `json:"frames"`
}

// App is the main application that runs stop-sign detection on camera frames.
type App struct {
	config    Config
	log       logrus.FieldLogger
	camera    capture.Camera
	detector  detector.Detector
	debouncer *debounce.Debouncer
	emitter   signal.Emitter
	saver     *snapshot.Saver
	uploader  snapshot.Uploader
	sinks     []Sink

	mu           sync.RWMutex
	enabled      bool
	stopCh       chan struct{}
	doneCh       chan struct{}
	lastEvent    debounce.Event
	lastSignal   signal.Signal
	episodeID    string
	peakHits     int
	lastSnapshot string
	frames       int64

	jpegMu sync.RWMutex
	jpeg   []byte

	uploads sync.WaitGroup
}

// New creates a new App. The camera is built from CameraID; the detector
// must be supplied with SetDetector before frames are processed.
func New(config Config, log logrus.FieldLogger) *App {
	if config.FPS <= 0 {
		config.FPS = capture.DefaultFPS
	}
	if config.WindowName == "" {
		config.WindowName = DefaultWindowName
	}
	if config.UploadTimeout <= 0 {
		config.UploadTimeout = DefaultUploadTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	a := &App{
		config:    config,
		log:       log.WithField("component", "app"),
		camera:    capture.NewCamera(config.CameraID),
		debouncer: debounce.New(config.Debounce),
		emitter:   signal.NewLogEmitter(log.WithField("component", "signal"), signal.DefaultIdleInterval),
		saver:     snapshot.NewSaver(config.SnapshotDir),
		enabled:   true,
	}

	if config.Store != nil {
		a.enabled = config.Store.Settings().GetBool(settingEnabled, true)
		if n, err := config.Store.Episodes().CloseActive(time.Now()); err != nil {
			a.log.WithError(err).Warn("Failed to close stale episodes")
		} else if n > 0 {
			a.log.WithField("count", n).Info("Closed episodes left open by a previous run")
		}
	}

	return a
}

// SetCamera replaces the camera. Must be called before Start or Run.
func (a *App) SetCamera(c capture.Camera) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.camera = c
}

// SetDetector sets the stop-sign detector implementation to use.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// SetEmitter replaces the control signal output.
func (a *App) SetEmitter(e signal.Emitter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.emitter = e
}

// SetUploader enables remote upload of snapshots.
func (a *App) SetUploader(u snapshot.Uploader) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.uploader = u
}

// AddSink registers a receiver for pipeline notices.
func (a *App) AddSink(s Sink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sinks = append(a.sinks, s)
}

// SetEnabled enables or disables detection. While disabled frames are still
// captured and streamed but not analysed. The choice is persisted.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	changed := a.enabled != enabled
	a.enabled = enabled
	a.mu.Unlock()

	if !changed {
		return
	}

	if a.config.Store != nil {
		if err := a.config.Store.Settings().SetBool(settingEnabled, enabled); err != nil {
			a.log.WithError(err).Warn("Failed to persist enabled setting")
		}
	}

	a.log.WithField("enabled", enabled).Info("Detection toggled")
	a.publish(Notice{Type: NoticeEnabled, Enabled: enabled, Time: time.Now()})
}

// IsEnabled returns whether detection is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Start opens the camera and runs the detection loop in a goroutine.
// It returns immediately; use Stop to end the loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}
	if a.camera == nil {
		return ErrNoCamera
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(a.config.FPS)

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		if err := a.loop(stop, nil); err != nil {
			a.log.WithError(err).Error("Detection loop ended")
		}
	}(a.stopCh, a.doneCh)

	a.log.WithField("fps", a.config.FPS).Info("Detection pipeline started")
	return nil
}

// Run opens the camera and runs the detection loop on the calling goroutine
// until ctx is done, the camera stops delivering frames, or q is pressed in
// the preview window. The preview window is only shown when ShowWindow is set
// and must run on the main OS thread.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.stopCh != nil {
		a.mu.Unlock()
		return errors.New("pipeline already running")
	}
	camera := a.camera
	if camera == nil {
		a.mu.Unlock()
		return ErrNoCamera
	}
	if err := camera.Open(); err != nil {
		a.mu.Unlock()
		return err
	}
	camera.SetFPS(a.config.FPS)
	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	stop, done := a.stopCh, a.doneCh
	a.mu.Unlock()

	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			a.halt()
		case <-done:
		}
	}()

	var win window
	if a.config.ShowWindow {
		win = newWindow(a.config.WindowName)
		defer win.Close()
	}

	a.log.WithField("fps", a.config.FPS).Info("Detection pipeline running")
	err := a.loop(stop, win)
	a.halt()
	return err
}

// halt closes the stop channel once.
func (a *App) halt() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopCh != nil {
		close(a.stopCh)
		a.stopCh = nil
	}
}

// Stop halts the detection loop, waits for pending uploads and releases the
// camera and detector.
func (a *App) Stop() {
	a.mu.Lock()
	done := a.doneCh
	a.mu.Unlock()

	a.halt()
	if done != nil {
		<-done
	}
	a.uploads.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.doneCh = nil

	if a.camera != nil {
		if err := a.camera.Close(); err != nil {
			a.log.WithError(err).Warn("Error closing camera")
		}
	}

	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			a.log.WithError(err).Warn("Error closing detector")
		}
	}

	a.log.Info("Detection pipeline stopped")
}

// Running reports whether the detection loop is active.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stopCh != nil
}

// Status returns a snapshot of the pipeline state.
func (a *App) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st := a.debouncer.State()
	s := Status{
		Enabled:      a.enabled,
		Running:      a.stopCh != nil,
		Phase:        st.Phase(),
		LastEvent:    a.lastEvent,
		Hits:         st.ConsecutiveHits,
		EpisodeID:    a.episodeID,
		LastSnapshot: a.lastSnapshot,
		Signal:       a.lastSignal,
		Frames:       a.frames,
	}
	if st.Confirmed {
		at := st.ConfirmedAt
		s.ConfirmedAt = &at
	}
	return s
}

// LatestJPEG returns the most recent annotated frame as JPEG, or nil before
// the first frame.
func (a *App) LatestJPEG() []byte {
	a.jpegMu.RLock()
	defer a.jpegMu.RUnlock()
	return a.jpeg
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.camera
}

// Detector returns the stop-sign detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// SnapshotDir returns where snapshots are written.
func (a *App) SnapshotDir() string {
	return a.saver.Dir()
}
