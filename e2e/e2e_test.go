package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/ayusman/stopsign/internal/app"
	"github.com/ayusman/stopsign/internal/capture"
	"github.com/ayusman/stopsign/internal/debounce"
	"github.com/ayusman/stopsign/internal/detector"
	"github.com/ayusman/stopsign/internal/fixtures"
	"github.com/ayusman/stopsign/internal/server"
	"github.com/ayusman/stopsign/internal/store"
)

func hits(n int, hit bool) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = hit
	}
	return out
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	snapDir := filepath.Join(tmpDir, "snaps")

	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	logger, _ := test.NewNullLogger()

	application := app.New(app.Config{
		Store:       s,
		FPS:         100,
		Debounce:    debounce.Config{HitThreshold: 3, ResumeDelay: 50 * time.Millisecond},
		SnapshotDir: snapDir,
	}, logger)

	script := append(hits(3, true), hits(30, false)...)
	mockDetector := detector.NewMockDetector()
	mockDetector.SetScript(script...)
	application.SetDetector(mockDetector)

	frames := fixtures.Sequence(detector.StopSignBox(), script...)
	defer fixtures.CloseAll(frames)
	application.SetCamera(capture.NewMockCamera(frames, false))

	srv := server.New(server.Config{
		SnapshotDir: snapDir,
		Store:       s,
		Pipeline:    application,
		Logger:      logger,
	})
	application.AddSink(srv.Hub())
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial events: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub().Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	var (
		mu      sync.Mutex
		notices []app.NoticeType
		readErr = make(chan struct{})
	)
	go func() {
		defer close(readErr)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var n struct {
				Type app.NoticeType `json:"type"`
			}
			json.Unmarshal(msg, &n)
			mu.Lock()
			notices = append(notices, n.Type)
			mu.Unlock()
		}
	}()

	t.Run("RunPipeline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := application.Run(ctx); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		application.WaitUploads()

		st := application.Status()
		if st.Frames != int64(len(script)) {
			t.Errorf("frames = %d, want %d", st.Frames, len(script))
		}
		if st.Phase != debounce.PhaseIdle {
			t.Errorf("phase = %v, want idle after resume", st.Phase)
		}
	})

	var episodeID, snapshotPath string

	t.Run("EpisodeRecorded", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/episodes")
		if err != nil {
			t.Fatalf("GET /api/episodes error = %v", err)
		}
		defer resp.Body.Close()

		var listed struct {
			Episodes []struct {
				ID           string `json:"id"`
				Active       bool   `json:"active"`
				Hits         int    `json:"hits"`
				SnapshotPath string `json:"snapshot_path"`
			} `json:"episodes"`
		}
		json.NewDecoder(resp.Body).Decode(&listed)

		if len(listed.Episodes) != 1 {
			t.Fatalf("episodes = %d, want 1", len(listed.Episodes))
		}
		ep := listed.Episodes[0]
		if ep.Active {
			t.Error("episode should have resumed")
		}
		if ep.Hits != 3 {
			t.Errorf("hits = %d, want 3", ep.Hits)
		}
		if ep.SnapshotPath == "" {
			t.Fatal("episode has no snapshot")
		}
		episodeID, snapshotPath = ep.ID, ep.SnapshotPath
	})

	t.Run("SnapshotServed", func(t *testing.T) {
		if snapshotPath == "" {
			t.Skip("no snapshot recorded")
		}

		resp, err := client.Get(ts.URL + "/snapshots/" + filepath.Base(snapshotPath))
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("snapshot status = %d", resp.StatusCode)
		}
		data, _ := io.ReadAll(resp.Body)
		frame, err := fixtures.Decode(data)
		if err != nil {
			t.Fatalf("snapshot is not an image: %v", err)
		}
		defer frame.Close()
		if frame.Cols() != fixtures.Width || frame.Rows() != fixtures.Height {
			t.Errorf("snapshot size = %dx%d", frame.Cols(), frame.Rows())
		}
	})

	t.Run("NoticesBroadcast", func(t *testing.T) {
		want := []app.NoticeType{app.NoticeEpisodeStarted, app.NoticeSnapshot, app.NoticeEpisodeEnded}

		deadline := time.Now().Add(2 * time.Second)
		for {
			mu.Lock()
			got := append([]app.NoticeType(nil), notices...)
			mu.Unlock()

			if containsInOrder(got, want) {
				return
			}
			if time.Now().After(deadline) {
				t.Fatalf("notices = %v, want %v in order", got, want)
			}
			time.Sleep(10 * time.Millisecond)
		}
	})

	t.Run("DeleteEpisode", func(t *testing.T) {
		if episodeID == "" {
			t.Skip("no episode recorded")
		}

		req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/episodes/"+episodeID, nil)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("DELETE status = %d", resp.StatusCode)
		}
	})

	t.Run("APIStillWorks", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/health")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("health check failed after app operations")
		}
	})

	application.Stop()
	if !mockDetector.Closed() {
		t.Error("detector should be released on Stop")
	}
	srv.Hub().Close()
	<-readErr
}

func TestE2E_ToggleDetectionOverAPI(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	logger, _ := test.NewNullLogger()
	application := app.New(app.Config{Store: s, SnapshotDir: tmpDir}, logger)

	srv := server.New(server.Config{Store: s, Pipeline: application, Logger: logger})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/enabled", strings.NewReader(`{"enabled": false}`))
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	var st struct {
		Enabled bool `json:"enabled"`
	}
	json.NewDecoder(resp.Body).Decode(&st)
	resp.Body.Close()

	if st.Enabled || application.IsEnabled() {
		t.Error("detection should be disabled")
	}

	// the choice survives a restart
	restarted := app.New(app.Config{Store: s, SnapshotDir: tmpDir}, logger)
	if restarted.IsEnabled() {
		t.Error("disabled state should be persisted")
	}
}

func containsInOrder(got, want []app.NoticeType) bool {
	i := 0
	for _, g := range got {
		if i < len(want) && g == want[i] {
			i++
		}
	}
	return i == len(want)
}
