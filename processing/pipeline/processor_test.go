package pipeline

import (
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"frontcam/internal/config"
	"frontcam/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errClosed = errors.New("closed")

type grabResult struct {
	frame *image.RGBA
	err   error
}

// fakeGrabber replays scripted results, then keeps returning fresh blank
// frames until stopped.
type fakeGrabber struct {
	mu       sync.Mutex
	startErr error
	script   []grabResult
	stopped  bool
	stops    int
}

func (g *fakeGrabber) Start() error { return g.startErr }

func (g *fakeGrabber) Grab() (*image.RGBA, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped {
		return nil, errClosed
	}
	if len(g.script) > 0 {
		r := g.script[0]
		g.script = g.script[1:]
		return r.frame, r.err
	}

	time.Sleep(time.Millisecond)
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
}

func (g *fakeGrabber) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopped = true
	g.stops++
	return nil
}

type fakeDetector struct {
	detect func(frame *image.RGBA) ([]models.Detection, error)
}

func (d *fakeDetector) Detect(frame *image.RGBA) ([]models.Detection, error) {
	if d.detect == nil {
		return nil, nil
	}
	return d.detect(frame)
}

type fakeDisplay struct {
	width, height int
	shown         atomic.Int32
	closed        atomic.Int32
	paints        chan image.Image
}

func newFakeDisplay() *fakeDisplay {
	return &fakeDisplay{paints: make(chan image.Image, 256)}
}

func (d *fakeDisplay) Show()                 { d.shown.Add(1) }
func (d *fakeDisplay) Close()                { d.closed.Add(1) }
func (d *fakeDisplay) PanelSize() (int, int) { return d.width, d.height }

func (d *fakeDisplay) Paint(img image.Image) {
	select {
	case d.paints <- img:
	default:
	}
}

func (d *fakeDisplay) nextPaint(t *testing.T) image.Image {
	t.Helper()
	select {
	case img := <-d.paints:
		return img
	case <-time.After(2 * time.Second):
		t.Fatal("no frame painted")
		return nil
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startAsync(t *testing.T, p *Processor) <-chan error {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- p.Start() }()
	require.Eventually(t, p.Running, 2*time.Second, time.Millisecond)
	return errc
}

func TestProcessor_RunningFlag(t *testing.T) {
	g := &fakeGrabber{}
	disp := newFakeDisplay()
	p := NewProcessor(config.NewDefaultConfig(), g, &fakeDetector{}, disp, discardLogger())

	assert.False(t, p.Running())

	errc := startAsync(t, p)
	assert.True(t, p.Running())
	assert.Equal(t, int32(1), disp.shown.Load())

	p.Stop()
	assert.False(t, p.Running())
	require.NoError(t, <-errc)
	assert.Equal(t, 1, g.stops)
	assert.Equal(t, int32(1), disp.closed.Load())
}

func TestProcessor_StopIsIdempotent(t *testing.T) {
	g := &fakeGrabber{}
	disp := newFakeDisplay()
	p := NewProcessor(config.NewDefaultConfig(), g, &fakeDetector{}, disp, discardLogger())

	errc := startAsync(t, p)
	p.Stop()
	p.Stop()
	require.NoError(t, <-errc)

	assert.False(t, p.Running())
	assert.Equal(t, 1, g.stops)
	assert.Equal(t, int32(1), disp.closed.Load())
	assert.ErrorIs(t, p.Start(), ErrStopped)
}

func TestProcessor_StopBeforeStart(t *testing.T) {
	g := &fakeGrabber{}
	disp := newFakeDisplay()
	p := NewProcessor(config.NewDefaultConfig(), g, &fakeDetector{}, disp, discardLogger())

	p.Stop()
	p.Stop()

	assert.False(t, p.Running())
	assert.Zero(t, g.stops)
	assert.Equal(t, int32(1), disp.closed.Load())
	assert.ErrorIs(t, p.Start(), ErrStopped)
	assert.Zero(t, disp.shown.Load())
}

func TestProcessor_StartFailureIsFatal(t *testing.T) {
	startErr := errors.New("no camera")
	g := &fakeGrabber{startErr: startErr}
	disp := newFakeDisplay()
	p := NewProcessor(config.NewDefaultConfig(), g, &fakeDetector{}, disp, discardLogger())

	err := p.Start()
	require.ErrorIs(t, err, startErr)
	assert.False(t, p.Running())
	assert.Zero(t, disp.shown.Load())

	p.Stop()
	assert.Zero(t, g.stops)
}

func TestProcessor_FrameFailureDoesNotEndLoop(t *testing.T) {
	good := image.NewRGBA(image.Rect(0, 0, 4, 4))
	g := &fakeGrabber{script: []grabResult{
		{err: errors.New("grab failed")},
		{frame: image.NewRGBA(image.Rect(0, 0, 4, 4))},
		{frame: image.NewRGBA(image.Rect(0, 0, 4, 4))},
		{frame: good},
	}}

	calls := 0
	det := &fakeDetector{detect: func(frame *image.RGBA) ([]models.Detection, error) {
		calls++
		switch calls {
		case 1:
			return nil, errors.New("detector failed")
		case 2:
			panic("classifier crashed")
		}
		return nil, nil
	}}

	cfg := config.NewDefaultConfig()
	cfg.Overlay.Mirror = false

	disp := newFakeDisplay()
	p := NewProcessor(cfg, g, det, disp, discardLogger())
	errc := startAsync(t, p)

	painted := disp.nextPaint(t)
	assert.Same(t, good, painted)
	assert.True(t, p.Running())

	p.Stop()
	require.NoError(t, <-errc)
	assert.GreaterOrEqual(t, p.Stats().FrameErrors, uint64(3))
}

func TestProcessor_DrawsMirrorsAndFits(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 100, 50))
	g := &fakeGrabber{script: []grabResult{{frame: frame}}}

	det := &fakeDetector{detect: func(f *image.RGBA) ([]models.Detection, error) {
		if f != frame {
			return nil, nil
		}
		return []models.Detection{{Label: models.LabelFace, Box: models.Box{X: 10, Y: 10, W: 20, H: 20}}}, nil
	}}

	disp := newFakeDisplay()
	p := NewProcessor(config.NewDefaultConfig(), g, det, disp, discardLogger())
	errc := startAsync(t, p)

	painted := disp.nextPaint(t)
	p.Stop()
	require.NoError(t, <-errc)

	assert.Equal(t, 100, painted.Bounds().Dx())
	assert.Equal(t, 50, painted.Bounds().Dy())

	// the left edge at x=10 lands at x=89 once mirrored
	r, gr, b, a := painted.At(89, 20).RGBA()
	assert.Equal(t, []uint32{0xffff, 0, 0, 0xffff}, []uint32{r, gr, b, a})
	_, _, _, a = painted.At(10, 20).RGBA()
	assert.Zero(t, a)

	// the drawn frame itself is not mirrored
	assert.Equal(t, color.RGBA{R: 255, A: 255}, frame.RGBAAt(10, 20))
}

func TestProcessor_FitsToPanel(t *testing.T) {
	g := &fakeGrabber{script: []grabResult{{frame: image.NewRGBA(image.Rect(0, 0, 640, 360))}}}
	disp := newFakeDisplay()
	disp.width, disp.height = 320, 180

	p := NewProcessor(config.NewDefaultConfig(), g, &fakeDetector{}, disp, discardLogger())
	errc := startAsync(t, p)

	painted := disp.nextPaint(t)
	p.Stop()
	require.NoError(t, <-errc)

	assert.Equal(t, image.Rect(0, 0, 320, 180), painted.Bounds())
}
