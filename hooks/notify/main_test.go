package main

import (
	"strings"
	"testing"
	"time"

	"github.com/ayusman/stopsign/internal/hook"
)

func TestMessage(t *testing.T) {
	at := time.Date(2024, 5, 1, 14, 30, 5, 0, time.Local)

	tests := []struct {
		name      string
		req       hook.Request
		wantTitle string
		wantBody  string
	}{
		{"stop", hook.Request{Name: "stop", Reason: "Stop sign confirmed", Time: at}, "Stop sign ahead", "Stop sign confirmed at 14:30:05"},
		{"go", hook.Request{Name: "go", Reason: "Resuming", Time: at}, "Stop sign detector", "Resuming at 14:30:05"},
		{"no time", hook.Request{Name: "go", Reason: "Resuming"}, "Stop sign detector", "Resuming"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, body := message(tt.req)
			if title != tt.wantTitle {
				t.Errorf("title = %q, want %q", title, tt.wantTitle)
			}
			if body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestQuote(t *testing.T) {
	got := quote(`say "hi" \ bye`)
	if !strings.HasPrefix(got, `"`) || !strings.HasSuffix(got, `"`) {
		t.Errorf("quote() = %s, not a string literal", got)
	}
	if !strings.Contains(got, `\"hi\"`) || !strings.Contains(got, `\\`) {
		t.Errorf("quote() = %s, not escaped", got)
	}
}
