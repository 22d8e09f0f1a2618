package hook

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/ayusman/stopsign/internal/signal"
)

func TestEmitter_RunsSubscribedHooks(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	stopLog := filepath.Join(dir, "stop.log")
	allLog := filepath.Join(dir, "all.log")

	writeHook(t, dir, "stop-only", `cat >> "`+stopLog+`"; echo >> "`+stopLog+`"
echo '{"success":true}'`, "stop")
	writeHook(t, dir, "all", `cat >> "`+allLog+`"; echo >> "`+allLog+`"
echo '{"success":true}'`)

	m := NewManager(dir)
	if err := m.Discover(); err != nil {
		t.Fatal(err)
	}

	logger, _ := test.NewNullLogger()
	e := NewEmitter(m, nil, logger)

	e.Emit(signal.Stop, signal.ReasonConfirmed)
	e.Wait()
	e.Emit(signal.Go, signal.ReasonResumed)
	e.Wait()

	lines := func(path string) []string {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		return strings.Split(strings.TrimSpace(string(data)), "\n")
	}

	if got := lines(stopLog); len(got) != 1 || !strings.Contains(got[0], `"name":"stop"`) {
		t.Errorf("stop-only hook saw %v", got)
	}
	if got := lines(allLog); len(got) != 2 {
		t.Errorf("catch-all hook ran %d times, want 2", len(got))
	}

	if ok, ko := e.Results(); ok != 3 || ko != 0 {
		t.Errorf("Results() = %d/%d, want 3/0", ok, ko)
	}
}

func TestEmitter_IgnoresIdleSignals(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	writeHook(t, dir, "all", `echo '{"success":true}'`)

	m := NewManager(dir)
	m.Discover()

	logger, _ := test.NewNullLogger()
	e := NewEmitter(m, nil, logger)

	for i := 0; i < 10; i++ {
		e.Emit(signal.Go, signal.ReasonClear)
	}
	e.Wait()

	if ok, ko := e.Results(); ok != 0 || ko != 0 {
		t.Errorf("idle signals ran hooks: %d/%d", ok, ko)
	}
}

func TestEmitter_LogsFailures(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	writeHook(t, dir, "broken", `exit 1`)

	m := NewManager(dir)
	m.Discover()

	logger, logs := test.NewNullLogger()
	e := NewEmitter(m, NewExecutor(0), logger)

	e.Emit(signal.Stop, signal.ReasonConfirmed)
	e.Wait()

	if _, ko := e.Results(); ko != 1 {
		t.Errorf("failed = %d, want 1", ko)
	}
	entry := logs.LastEntry()
	if entry == nil || entry.Message != "Hook failed" {
		t.Errorf("last log entry = %+v", entry)
	}
}
