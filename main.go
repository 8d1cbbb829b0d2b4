package main

import (
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"frontcam/internal/config"
	"frontcam/internal/ui"
	"frontcam/processing/capture"
	"frontcam/processing/detector"
	"frontcam/processing/pipeline"

	"fyne.io/fyne/v2/app"
)

func main() {
	logger := NewLogger(os.Stdout, slog.LevelInfo)

	cfg, err := config.LoadConfigFile(config.DefaultConfigPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	det, err := detector.NewCascadeDetector(cfg.Detector.CascadePath)
	if err != nil {
		logger.Error("failed to load face detector", "error", err)
		os.Exit(1)
	}
	defer det.Close()

	grabber, err := capture.NewGrabber(cfg)
	if err != nil {
		logger.Error("failed to create frame grabber", "error", err)
		os.Exit(1)
	}

	window := ui.CreateApp(app.New(), cfg, logger)
	proc := pipeline.NewProcessor(cfg, grabber, det, window, logger)
	window.SetStatsSource(proc)
	window.OnClose = proc.Stop

	logger.Info("this example works with front camera")
	logger.Info("starting detection")

	failed := make(chan struct{})
	go func() {
		if err := runDetection(proc.Start, logger); err != nil {
			close(failed)
			window.Quit()
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		logger.Info("stopping detection")
		proc.Stop()
	}()

	window.Run()

	select {
	case <-failed:
		os.Exit(1)
	default:
	}
}

// runDetection blocks in start and returns its error only for a real startup
// failure. A shutdown that lands before the camera opens is a clean exit.
func runDetection(start func() error, logger *slog.Logger) error {
	err := start()
	if err == nil || errors.Is(err, pipeline.ErrStopped) {
		return nil
	}

	logger.Error("detection aborted", "error", err)
	if cameras, listErr := capture.ListCameras(); listErr == nil {
		logger.Info("available cameras", "devices", cameras)
	}

	return err
}
