package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/stopsign/internal/app"
	"github.com/ayusman/stopsign/internal/config"
	"github.com/ayusman/stopsign/internal/detector"
	"github.com/ayusman/stopsign/internal/hook"
	"github.com/ayusman/stopsign/internal/logging"
	"github.com/ayusman/stopsign/internal/server"
	stopsignal "github.com/ayusman/stopsign/internal/signal"
	"github.com/ayusman/stopsign/internal/snapshot"
	"github.com/ayusman/stopsign/internal/store"
	"github.com/ayusman/stopsign/internal/tray"
)

// OpenCV windows and the tray need the main OS thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "path to a JSON config file")
	envFile := flag.String("env", ".env", "path to a .env file")
	camera := flag.Int("camera", 0, "camera device index")
	cascade := flag.String("cascade", "", "path to the stop sign Haar cascade XML")
	snapshots := flag.String("snapshots", "", "directory for snapshot images")
	addr := flag.String("addr", "", "HTTP listen address, empty to disable")
	hooks := flag.String("hooks", "", "directory of signal hooks")
	noWindow := flag.Bool("no-window", false, "do not show the preview window")
	trayMode := flag.Bool("tray", false, "run from the system tray instead of a window")
	logLevel := flag.String("log-level", "", "debug, info, warn or error")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ApplyEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Flags given on the command line win over file and environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "camera":
			cfg.CameraID = *camera
		case "cascade":
			cfg.CascadePath = *cascade
		case "snapshots":
			cfg.SnapshotDir = *snapshots
		case "addr":
			cfg.Addr = *addr
		case "hooks":
			cfg.HooksDir = *hooks
		case "no-window":
			cfg.ShowWindow = !*noWindow
		case "tray":
			cfg.Tray = *trayMode
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("An error occurred")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}

	det, err := detector.NewCascadeDetector(cfg.Detector())
	if err != nil {
		st.Close()
		return fmt.Errorf("could not load cascade classifier: %w", err)
	}

	application := app.New(app.Config{
		Store:       st,
		CameraID:    cfg.CameraID,
		FPS:         cfg.FPS,
		Debounce:    cfg.Debounce(),
		SnapshotDir: cfg.SnapshotDir,
		ShowWindow:  cfg.ShowWindow && !cfg.Tray,
	}, logger)
	application.SetDetector(det)

	hooks := hook.NewManager(cfg.HookDir())
	if err := hooks.Discover(); err != nil {
		logger.WithError(err).Warn("Failed to discover hooks")
	}
	var hookEmitter *hook.Emitter
	if n := len(hooks.List()); n > 0 {
		hookEmitter = hook.NewEmitter(hooks, hook.NewExecutor(0), logger)
		application.SetEmitter(stopsignal.Multi{
			stopsignal.NewLogEmitter(logger.WithField("component", "signal"), stopsignal.DefaultIdleInterval),
			hookEmitter,
		})
		logger.WithFields(logrus.Fields{"dir": hooks.Dir(), "count": n}).Info("Signal hooks loaded")
	}

	if cfg.S3Bucket != "" {
		uploader, err := snapshot.NewS3Uploader(snapshot.S3Config{
			Bucket: cfg.S3Bucket,
			Region: cfg.S3Region,
			Prefix: cfg.S3Prefix,
		})
		if err != nil {
			logger.WithError(err).Warn("Snapshot upload disabled")
		} else {
			application.SetUploader(uploader)
			logger.WithField("bucket", cfg.S3Bucket).Info("Snapshot upload enabled")
		}
	}

	var srv *server.Server
	if cfg.Addr != "" {
		webDir := findWebDir(cfg.DataDir)
		if webDir != "" {
			logger.WithField("dir", webDir).Info("Serving dashboard")
		}

		srv = server.New(server.Config{
			StaticDir:   webDir,
			SnapshotDir: cfg.SnapshotDir,
			Store:       st,
			Pipeline:    application,
			StreamFPS:   cfg.FPS,
			Logger:      logger,
		})
		application.AddSink(srv.Hub())

		go func() {
			if err := srv.ListenAndServe(cfg.Addr); err != nil {
				logger.WithError(err).Error("HTTP server failed")
			}
		}()
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	defer func() {
		application.Stop()
		if hookEmitter != nil {
			hookEmitter.Wait()
		}
		if srv != nil {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Warn("HTTP server shutdown")
			}
			done()
		}
		if err := st.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close store")
		}
		logger.Info("Resources released, program ended")
	}()

	logger.WithFields(logrus.Fields{
		"camera":        cfg.CameraID,
		"hit_threshold": cfg.HitThreshold,
		"resume_delay":  cfg.ResumeDelay(),
	}).Info("Stop sign detector starting")

	if cfg.Tray {
		err = runTray(ctx, cancel, application, cfg, logger)
	} else {
		err = application.Run(ctx)
	}

	if sigCtx.Err() != nil {
		logger.Info("Program terminated by user")
	}
	if err != nil {
		return fmt.Errorf("could not run detection: %w", err)
	}
	return nil
}

// runTray runs detection in the background and blocks in the tray loop until
// quit is chosen or ctx ends.
func runTray(ctx context.Context, cancel context.CancelFunc, application *app.App, cfg *config.Config, logger *logrus.Logger) error {
	t := tray.New(application.IsEnabled())
	t.OnToggle(application.SetEnabled)
	t.OnQuit(cancel)
	if cfg.Addr != "" {
		url := "http://" + cfg.Addr
		t.OnDashboard(func() {
			if err := openBrowser(url); err != nil {
				logger.WithError(err).Warn("Failed to open dashboard")
			}
		})
	}
	application.AddSink(t)

	if err := application.Start(); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		t.Quit()
	}()

	t.Run()
	return nil
}

// findWebDir searches for the dashboard directory in common locations.
// It checks "web", "../web", "../../web" and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web"}
	if dataDir != "" {
		candidates = append(candidates, filepath.Join(dataDir, "web"))
	}

	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	return ""
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", url)
	default:
		return errors.New("unsupported platform " + runtime.GOOS)
	}
	return cmd.Start()
}
