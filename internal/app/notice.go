package app

import (
	"time"

	"github.com/ayusman/stopsign/internal/debounce"
)

// NoticeType identifies what a Notice reports.
type NoticeType string

// Notice types.
const (
	NoticeEvent          NoticeType = "event"
	NoticeEpisodeStarted NoticeType = "episode_started"
	NoticeEpisodeEnded   NoticeType = "episode_ended"
	NoticeSnapshot       NoticeType = "snapshot"
	NoticeEnabled        NoticeType = "enabled"
)

// Notice is a pipeline change pushed to sinks such as the websocket hub or
// the tray.
type Notice struct {
	Type      NoticeType     `json:"type"`
	Event     debounce.Event `json:"event"`
	EpisodeID string         `json:"episode_id,omitempty"`
	Snapshot  string         `json:"snapshot,omitempty"`
	URL       string         `json:"url,omitempty"`
	Enabled   bool           `json:"enabled"`
	Time      time.Time      `json:"time"`
}

// Sink receives notices. Publish is called from the frame loop and must not block.
type Sink interface {
	Publish(n Notice)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(n Notice)

// Publish calls f(n).
func (f SinkFunc) Publish(n Notice) {
	f(n)
}

func (a *App) publish(n Notice) {
	a.mu.RLock()
	sinks := make([]Sink, len(a.sinks))
	copy(sinks, a.sinks)
	a.mu.RUnlock()

	for _, s := range sinks {
		s.Publish(n)
	}
}
