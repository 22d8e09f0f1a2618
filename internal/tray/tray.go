// Package tray provides a system tray interface for the stop-sign detector.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/stopsign/internal/app"
	"github.com/ayusman/stopsign/internal/debounce"
)

// Menu labels.
const (
	labelEnabled  = "● Detection on"
	labelDisabled = "○ Detection off"
	lastNone      = "Last stop: none"
)

// Tray represents the system tray application. It implements app.Sink so the
// status line follows the pipeline.
type Tray struct {
	onToggle    func(enabled bool)
	onDashboard func()
	onQuit      func()
	enabled     bool
	mu          sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuStatus *systray.MenuItem
	menuLast   *systray.MenuItem
	status     string
	last       string
}

var _ app.Sink = (*Tray)(nil)

// New creates a new Tray with the given initial enabled state.
func New(enabled bool) *Tray {
	return &Tray{
		enabled: enabled,
		status:  StatusTitle(debounce.EventNone),
		last:    lastNone,
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnDashboard sets the callback for the "Open Dashboard" item. The item is
// only shown when a callback is set before Run.
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called and must run on the main thread.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the tray event loop.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Stop Sign")
	systray.SetTooltip("Stop sign detector")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle stop sign detection")
	systray.AddSeparator()

	t.menuStatus = systray.AddMenuItem(t.status, "Current detection state")
	t.menuStatus.Disable()
	t.menuLast = systray.AddMenuItem(t.last, "Most recent confirmed stop sign")
	t.menuLast.Disable()
	systray.AddSeparator()

	var dashboardCh <-chan struct{}
	if t.onDashboard != nil {
		dashboardCh = systray.AddMenuItem("Open Dashboard...", "Open the web dashboard").ClickedCh
		systray.AddSeparator()
	}
	toggleCh := t.menuToggle.ClickedCh
	t.mu.Unlock()

	menuQuit := systray.AddMenuItem("Quit", "Quit the stop sign detector")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-toggleCh:
				t.handleToggle()
			case <-dashboardCh:
				t.handleDashboard()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleDashboard() {
	t.mu.RLock()
	callback := t.onDashboard
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Publish updates the menu from a pipeline notice.
func (t *Tray) Publish(n app.Notice) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch n.Type {
	case app.NoticeEvent:
		t.status = StatusTitle(n.Event)
	case app.NoticeEpisodeStarted:
		t.status = StatusTitle(debounce.EventConfirmed)
		t.last = "Last stop: " + n.Time.Local().Format("15:04:05")
	case app.NoticeEnabled:
		t.enabled = n.Enabled
		if t.menuToggle != nil {
			t.menuToggle.SetTitle(toggleTitle(n.Enabled))
		}
		if !n.Enabled {
			t.status = "Status: paused"
		}
	default:
		return
	}

	if t.menuStatus != nil {
		t.menuStatus.SetTitle(t.status)
	}
	if t.menuLast != nil {
		t.menuLast.SetTitle(t.last)
	}
}

// StatusTitle returns the status line shown for a debounce event.
func StatusTitle(e debounce.Event) string {
	switch e {
	case debounce.EventDetected:
		return "Status: stop sign detected"
	case debounce.EventConfirmed:
		return "Status: STOP"
	case debounce.EventResumed:
		return "Status: resuming"
	default:
		return "Status: clear"
	}
}

func toggleTitle(enabled bool) string {
	if enabled {
		return labelEnabled
	}
	return labelDisabled
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// Status returns the current status and last-stop lines.
func (t *Tray) Status() (status, last string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status, t.last
}
