package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/stopsign/internal/capture"
	"github.com/ayusman/stopsign/internal/debounce"
	"github.com/ayusman/stopsign/internal/detector"
	"github.com/ayusman/stopsign/internal/overlay"
	"github.com/ayusman/stopsign/internal/signal"
	"github.com/ayusman/stopsign/internal/snapshot"
	"github.com/ayusman/stopsign/internal/store"
)

// loop is the main capture loop. It reads a frame per tick, runs it through
// ProcessFrame and optionally shows it in win.
//
// Read failures are logged and retried on the next tick. The loop ends when
// stop is closed, the camera is closed, a finite source runs out, or the
// window reports a quit key.
func (a *App) loop(stop <-chan struct{}, win window) error {
	interval := time.Second / time.Duration(a.config.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	camera := a.Camera()

	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
		}

		frame, err := camera.ReadFrame()
		if err != nil {
			switch {
			case errors.Is(err, capture.ErrCameraNotOpen):
				return err
			case errors.Is(err, capture.ErrNoMoreFrames):
				a.log.Info("Camera stream ended")
				return nil
			default:
				a.log.WithError(err).Warn("Error reading frame")
				continue
			}
		}

		a.handleFrame(frame, time.Now())

		quit := win != nil && win.Show(frame)
		frame.Close()
		if quit {
			a.log.Info("Quit requested")
			return nil
		}
	}
}

// handleFrame runs detection when enabled and otherwise only streams the raw frame.
func (a *App) handleFrame(frame *gocv.Mat, now time.Time) {
	if !a.IsEnabled() {
		a.mu.Lock()
		a.frames++
		a.mu.Unlock()
		a.publishFrame(frame)
		return
	}

	if _, err := a.ProcessFrame(frame, now); err != nil {
		a.log.WithError(err).Warn("Frame skipped")
	}
}

// ProcessFrame runs one frame through the pipeline:
//
//  1. Detect stop signs and outline them on the frame
//  2. Feed hit/miss into the debouncer
//  3. Emit the control signal for the resulting event
//  4. Record episode start, snapshot and resume
//  5. Draw the status text and publish the annotated frame
//
// The snapshot is written before the status text is drawn, so saved images
// carry only the detection boxes. A detector error leaves the debounce state
// untouched.
func (a *App) ProcessFrame(frame *gocv.Mat, now time.Time) (debounce.Result, error) {
	if frame == nil || frame.Empty() {
		return debounce.Result{}, capture.ErrEmptyFrame
	}

	det := a.Detector()
	if det == nil {
		return debounce.Result{}, ErrNoDetector
	}

	boxes, err := det.Detect(frame)
	if err != nil {
		return debounce.Result{}, fmt.Errorf("detect: %w", err)
	}
	hit := detector.HasDetection(boxes)
	overlay.DrawDetections(frame, boxes)

	a.mu.Lock()
	res := a.debouncer.Observe(hit, now)
	st := a.debouncer.State()
	a.frames++
	prevEvent := a.lastEvent
	a.lastEvent = res.Event
	if st.ConsecutiveHits > a.peakHits {
		a.peakHits = st.ConsecutiveHits
	}
	emitter := a.emitter
	a.mu.Unlock()

	a.emitSignal(emitter, res)

	if res.Entered {
		a.beginEpisode(now, st.ConsecutiveHits)
	}
	if res.TakeSnapshot {
		a.takeSnapshot(frame, now)
	}
	if res.Event == debounce.EventResumed {
		a.endEpisode(now)
	}

	overlay.DrawStatus(frame, hit, res.Event)
	a.publishFrame(frame)

	if res.Event != prevEvent {
		a.publish(Notice{
			Type:      NoticeEvent,
			Event:     res.Event,
			EpisodeID: a.currentEpisode(),
			Enabled:   true,
			Time:      now,
		})
	}

	return res, nil
}

// emitSignal maps a debounce result onto the control output. Frames that hold
// or build up a detection send nothing.
func (a *App) emitSignal(emitter signal.Emitter, res debounce.Result) {
	var (
		sig    signal.Signal
		reason string
	)

	switch {
	case res.Entered:
		sig, reason = signal.Stop, signal.ReasonConfirmed
	case res.Event == debounce.EventResumed:
		sig, reason = signal.Go, signal.ReasonResumed
	case res.Event == debounce.EventNone:
		sig, reason = signal.Go, signal.ReasonClear
	default:
		return
	}

	if emitter != nil {
		emitter.Emit(sig, reason)
	}

	a.mu.Lock()
	a.lastSignal = sig
	a.mu.Unlock()
}

func (a *App) beginEpisode(now time.Time, hits int) {
	id := uuid.NewString()

	a.mu.Lock()
	a.episodeID = id
	a.peakHits = hits
	a.mu.Unlock()

	if a.config.Store != nil {
		ep := &store.Episode{ID: id, ConfirmedAt: now, Hits: hits}
		if err := a.config.Store.Episodes().Create(ep); err != nil {
			a.log.WithError(err).WithField("episode", id).Error("Failed to record episode")
		}
	}

	a.log.WithFields(logrus.Fields{
		"episode": id,
		"hits":    hits,
	}).Info("Stop sign episode started")

	a.publish(Notice{Type: NoticeEpisodeStarted, Event: debounce.EventConfirmed, EpisodeID: id, Enabled: true, Time: now})
}

func (a *App) endEpisode(now time.Time) {
	a.mu.Lock()
	id := a.episodeID
	peak := a.peakHits
	a.episodeID = ""
	a.peakHits = 0
	a.mu.Unlock()

	if id == "" {
		return
	}

	if a.config.Store != nil {
		episodes := a.config.Store.Episodes()
		if err := episodes.Resume(id, now); err != nil {
			a.log.WithError(err).WithField("episode", id).Error("Failed to close episode")
		}
		if err := episodes.SetHits(id, peak); err != nil {
			a.log.WithError(err).WithField("episode", id).Warn("Failed to record episode hits")
		}
	}

	a.log.WithFields(logrus.Fields{
		"episode":   id,
		"peak_hits": peak,
	}).Info("Stop sign episode ended")

	a.publish(Notice{Type: NoticeEpisodeEnded, Event: debounce.EventResumed, EpisodeID: id, Enabled: true, Time: now})
}

func (a *App) takeSnapshot(frame *gocv.Mat, now time.Time) {
	snap, err := a.saver.Save(frame, now)
	if err != nil {
		a.log.WithError(err).Error("Failed to save snapshot")
		return
	}

	a.mu.Lock()
	a.lastSnapshot = snap.Path
	id := a.episodeID
	uploader := a.uploader
	a.mu.Unlock()

	a.log.WithField("path", snap.Path).Infof("Snapshot saved as %s", snap.Name)

	if a.config.Store != nil && id != "" {
		if err := a.config.Store.Episodes().SetSnapshot(id, snap.Path, ""); err != nil {
			a.log.WithError(err).WithField("episode", id).Warn("Failed to record snapshot")
		}
	}

	a.publish(Notice{Type: NoticeSnapshot, Event: debounce.EventConfirmed, EpisodeID: id, Snapshot: snap.Name, Enabled: true, Time: now})

	if uploader != nil {
		a.uploads.Add(1)
		go a.upload(uploader, id, snap)
	}
}

// upload copies a snapshot to remote storage off the frame loop.
func (a *App) upload(uploader snapshot.Uploader, episodeID string, snap snapshot.Snapshot) {
	defer a.uploads.Done()

	ctx, cancel := context.WithTimeout(context.Background(), a.config.UploadTimeout)
	defer cancel()

	url, err := uploader.Upload(ctx, snap)
	if err != nil {
		a.log.WithError(err).WithField("path", snap.Path).Error("Snapshot upload failed")
		return
	}

	a.log.WithField("url", url).Info("Snapshot uploaded")

	if a.config.Store != nil && episodeID != "" {
		if err := a.config.Store.Episodes().SetSnapshot(episodeID, snap.Path, url); err != nil {
			a.log.WithError(err).WithField("episode", episodeID).Warn("Failed to record snapshot URL")
		}
	}

	a.publish(Notice{Type: NoticeSnapshot, Event: debounce.EventConfirmed, EpisodeID: episodeID, Snapshot: snap.Name, URL: url, Enabled: true, Time: time.Now()})
}

// WaitUploads blocks until all in-flight snapshot uploads finish.
func (a *App) WaitUploads() {
	a.uploads.Wait()
}

// publishFrame stores the frame as JPEG for the stream endpoint.
func (a *App) publishFrame(frame *gocv.Mat) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		a.log.WithError(err).Debug("Failed to encode frame")
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	a.jpegMu.Lock()
	a.jpeg = data
	a.jpegMu.Unlock()
}

func (a *App) currentEpisode() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.episodeID
}
