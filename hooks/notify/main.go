// Command notify is a signal hook that shows a desktop notification when a
// stop sign is confirmed or driving resumes.
//
// Install by copying the built binary and hook.json into <data dir>/hooks/notify.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/ayusman/stopsign/internal/hook"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	var req hook.Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(fmt.Errorf("decode request: %w", err))
		return
	}

	title, body := message(req)
	writeResponse(notify(title, body))
}

// message builds the notification text for req.
func message(req hook.Request) (title, body string) {
	title = "Stop sign detector"
	if req.Name == "stop" {
		title = "Stop sign ahead"
	}

	body = req.Reason
	if !req.Time.IsZero() {
		body = fmt.Sprintf("%s at %s", req.Reason, req.Time.Local().Format("15:04:05"))
	}
	return title, body
}

func notify(title, body string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s", quote(body), quote(title))
		cmd = exec.Command("osascript", "-e", script)
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("notify-send", title, body)
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// quote returns s as an AppleScript string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func writeResponse(err error) {
	resp := hook.Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
