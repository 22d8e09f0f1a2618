// Package hook runs external executables when the control signal changes.
//
// Each hook lives in its own directory under the hooks directory and is
// described by a hook.json manifest. On a matching signal the executable is
// started with a JSON Request on stdin and must print a JSON Response.
package hook

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ManifestFile is the manifest name looked up in each hook directory.
const ManifestFile = "hook.json"

// Manifest describes a hook's metadata and the signals it subscribes to.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Signals     []string `json:"signals,omitempty"`
}

// Request is sent to a hook on stdin.
type Request struct {
	Signal int       `json:"signal"`
	Name   string    `json:"name"`
	Reason string    `json:"reason"`
	Time   time.Time `json:"time"`
}

// Response is read from a hook's stdout.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Wants reports whether the hook subscribes to the named signal. A hook with
// no signals listed receives all of them.
func (h *Hook) Wants(name string) bool {
	if len(h.Manifest.Signals) == 0 {
		return true
	}
	for _, s := range h.Manifest.Signals {
		if s == name {
			return true
		}
	}
	return false
}
