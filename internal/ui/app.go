package ui

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"frontcam/internal/config"
	"frontcam/processing/pipeline"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

const statsInterval = 200 * time.Millisecond

type StatsSource interface {
	Stats() pipeline.Stats
}

// DetectApp is the video window. It implements pipeline.Display.
type DetectApp struct {
	fyneApp fyne.App
	mainWin fyne.Window

	config *config.Config
	logger *slog.Logger
	stats  StatsSource

	// OnClose runs off the UI thread when the user closes the window.
	OnClose func()

	videoCanvas  *canvas.Image
	fpsLabel     *widget.Label
	latencyLabel *widget.Label
	facesLabel   *widget.Label

	panelWidth  atomic.Int32
	panelHeight atomic.Int32

	showOnce  sync.Once
	closeOnce sync.Once
	stopChan  chan struct{}
}

var _ pipeline.Display = (*DetectApp)(nil)

func CreateApp(a fyne.App, cfg *config.Config, logger *slog.Logger) *DetectApp {
	w := a.NewWindow(cfg.WindowTitle)

	d := &DetectApp{
		fyneApp:  a,
		mainWin:  w,
		config:   cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
	}

	d.videoCanvas = canvas.NewImageFromImage(nil)
	d.videoCanvas.FillMode = canvas.ImageFillContain
	d.videoCanvas.ScaleMode = canvas.ImageScaleFastest

	d.fpsLabel = widget.NewLabel(formatFPS(0))
	d.latencyLabel = widget.NewLabel(formatLatency(0))
	d.facesLabel = widget.NewLabel(formatFaces(0))

	statusBar := container.NewHBox(
		d.fpsLabel, widget.NewSeparator(),
		d.latencyLabel, widget.NewSeparator(),
		d.facesLabel,
	)

	w.SetContent(container.NewBorder(nil, statusBar, nil, nil, d.videoCanvas))
	w.Resize(fyne.NewSize(float32(cfg.Capture.Width), float32(cfg.Capture.Height)))

	w.SetCloseIntercept(func() {
		d.logger.Info("window close requested")
		if d.OnClose == nil {
			d.Close()
			return
		}
		go d.OnClose()
	})

	return d
}

func (a *DetectApp) SetStatsSource(src StatsSource) {
	a.stats = src
}

// Run blocks on the toolkit's event loop until the app quits.
func (a *DetectApp) Run() {
	a.fyneApp.Run()
}

// Quit ends the event loop without going through OnClose.
func (a *DetectApp) Quit() {
	fyne.Do(a.fyneApp.Quit)
}

func (a *DetectApp) Show() {
	a.showOnce.Do(func() {
		fyne.Do(func() {
			a.mainWin.CenterOnScreen()
			a.mainWin.Show()
		})

		go a.runStatLoop()
	})
}

func (a *DetectApp) Paint(img image.Image) {
	fyne.Do(func() {
		a.videoCanvas.Image = img
		a.videoCanvas.Refresh()
	})
}

// PanelSize returns the video panel size in pixels as last sampled on the UI
// thread, or the capture size before the first sample.
func (a *DetectApp) PanelSize() (int, int) {
	w, h := int(a.panelWidth.Load()), int(a.panelHeight.Load())
	if w <= 0 || h <= 0 {
		return a.config.Capture.Width, a.config.Capture.Height
	}
	return w, h
}

func (a *DetectApp) Close() {
	a.closeOnce.Do(func() {
		close(a.stopChan)

		fyne.Do(func() {
			a.mainWin.Close()
			a.fyneApp.Quit()
		})
	})
}

func (a *DetectApp) runStatLoop() {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fyne.Do(a.refresh)
		case <-a.stopChan:
			return
		}
	}
}

// refresh must run on the UI thread.
func (a *DetectApp) refresh() {
	size := a.videoCanvas.Size()
	scale := a.mainWin.Canvas().Scale()
	a.panelWidth.Store(int32(size.Width * scale))
	a.panelHeight.Store(int32(size.Height * scale))

	if a.stats == nil {
		return
	}

	s := a.stats.Stats()
	a.fpsLabel.SetText(formatFPS(s.FPS))
	a.latencyLabel.SetText(formatLatency(s.Latency))
	a.facesLabel.SetText(formatFaces(s.Faces))
}

func formatFPS(v uint) string {
	return fmt.Sprintf("FPS: %d", v)
}

func formatLatency(v time.Duration) string {
	return fmt.Sprintf("Latency: %d ms", v.Milliseconds())
}

func formatFaces(n int) string {
	return fmt.Sprintf("Faces: %d", n)
}
