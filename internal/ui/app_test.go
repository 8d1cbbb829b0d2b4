package ui

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"frontcam/internal/config"
	"frontcam/processing/pipeline"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
)

type staticStats pipeline.Stats

func (s staticStats) Stats() pipeline.Stats { return pipeline.Stats(s) }

func newTestApp(t *testing.T) *DetectApp {
	t.Helper()
	cfg := config.NewDefaultConfig()
	return CreateApp(test.NewTempApp(t), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateApp(t *testing.T) {
	a := newTestApp(t)

	assert.Equal(t, "Front Camera Face Detection", a.mainWin.Title())
	assert.Equal(t, "FPS: 0", a.fpsLabel.Text)
	assert.Nil(t, a.videoCanvas.Image)
}

func TestPanelSize_DefaultsToCaptureSize(t *testing.T) {
	a := newTestApp(t)

	w, h := a.PanelSize()
	assert.Equal(t, 640, w)
	assert.Equal(t, 360, h)

	a.panelWidth.Store(320)
	a.panelHeight.Store(180)
	w, h = a.PanelSize()
	assert.Equal(t, 320, w)
	assert.Equal(t, 180, h)
}

func TestRefresh_UpdatesStatusBar(t *testing.T) {
	a := newTestApp(t)
	a.SetStatsSource(staticStats{FPS: 24, Latency: 41 * time.Millisecond, Faces: 2})

	a.refresh()

	assert.Equal(t, "FPS: 24", a.fpsLabel.Text)
	assert.Equal(t, "Latency: 41 ms", a.latencyLabel.Text)
	assert.Equal(t, "Faces: 2", a.facesLabel.Text)
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "FPS: 30", formatFPS(30))
	assert.Equal(t, "Latency: 1500 ms", formatLatency(1500*time.Millisecond))
	assert.Equal(t, "Faces: 0", formatFaces(0))
}
