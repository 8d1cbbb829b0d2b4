package pipeline

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"frontcam/internal/config"
	"frontcam/internal/models"
	"frontcam/processing/overlay"
)

var (
	ErrAlreadyRunning = errors.New("processor already running")
	ErrStopped        = errors.New("processor stopped")
)

type Grabber interface {
	Start() error
	Grab() (*image.RGBA, error)
	Stop() error
}

type Detector interface {
	Detect(frame *image.RGBA) ([]models.Detection, error)
}

// Display is the window surface frames are painted on. Paint must not block
// on the UI thread.
type Display interface {
	Show()
	Paint(img image.Image)
	PanelSize() (int, int)
	Close()
}

type Stats struct {
	FPS         uint
	Latency     time.Duration
	Faces       int
	FrameErrors uint64
}

// Processor runs the grab, detect, draw and display loop.
type Processor struct {
	grabber  Grabber
	detector Detector
	display  Display

	cfg    *config.Config
	logger *slog.Logger

	running atomic.Bool

	mu       sync.Mutex
	done     chan struct{}
	released bool

	statsMu     sync.RWMutex
	fps         uint
	latency     time.Duration
	faces       int
	frameErrors atomic.Uint64
}

func NewProcessor(cfg *config.Config, g Grabber, d Detector, disp Display, logger *slog.Logger) *Processor {
	return &Processor{
		grabber:  g,
		detector: d,
		display:  disp,
		cfg:      cfg,
		logger:   logger,
	}
}

func (p *Processor) Running() bool {
	return p.running.Load()
}

func (p *Processor) Stats() Stats {
	p.statsMu.RLock()
	defer p.statsMu.RUnlock()

	return Stats{
		FPS:         p.fps,
		Latency:     p.latency,
		Faces:       p.faces,
		FrameErrors: p.frameErrors.Load(),
	}
}

// Start starts the grabber, shows the display and processes frames on the
// calling goroutine until Stop is called. A grabber that fails to start is
// fatal.
func (p *Processor) Start() error {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return ErrStopped
	}
	if p.done != nil {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}

	p.logger.Info("starting frame grabber")
	if err := p.grabber.Start(); err != nil {
		p.mu.Unlock()
		p.logger.Error("error when initializing the frame grabber", "error", err)
		return fmt.Errorf("unable to start the frame grabber: %w", err)
	}
	p.logger.Info("started frame grabber")

	p.display.Show()

	done := make(chan struct{})
	p.done = done
	p.running.Store(true)
	p.mu.Unlock()

	p.process()
	close(done)

	p.logger.Info("stopped frame grabbing")

	return nil
}

func (p *Processor) process() {
	var frameCount uint
	lastFpsUpdate := time.Now()

	for p.running.Load() {
		start := time.Now()

		if err := p.processFrame(); err != nil {
			p.frameErrors.Add(1)
			continue
		}

		frameCount++
		p.statsMu.Lock()
		p.latency = time.Since(start)
		if time.Since(lastFpsUpdate) >= time.Second {
			p.fps = frameCount
			frameCount = 0
			lastFpsUpdate = time.Now()
		}
		p.statsMu.Unlock()
	}
}

func (p *Processor) processFrame() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			p.logger.Error("unexpected error occurred while grabbing and processing a frame", "error", err)
		}
	}()

	frame, err := p.grabber.Grab()
	if err != nil {
		p.logger.Warn("error when grabbing the frame", "error", err)
		return err
	}

	detections, err := p.detector.Detect(frame)
	if err != nil {
		p.logger.Error("unexpected error occurred while grabbing and processing a frame", "error", err)
		return err
	}

	ov := p.cfg.Overlay
	overlay.DrawDetections(frame, detections, ov.Color, ov.Thickness)

	var out image.Image = frame
	if ov.Mirror {
		out = overlay.Mirror(out)
	}

	w, h := p.display.PanelSize()
	p.display.Paint(overlay.Fit(out, w, h))

	p.statsMu.Lock()
	p.faces = len(detections)
	p.statsMu.Unlock()

	return nil
}

// Stop clears the running flag, releases the grabber and waits for the loop
// to leave its current iteration before closing the display. Release failures
// are logged only. Safe to call more than once and before Start.
func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.running.Store(false)

	if p.released {
		return
	}
	p.released = true

	if p.done != nil {
		p.logger.Info("releasing and stopping frame grabber")
		if err := p.grabber.Stop(); err != nil {
			p.logger.Error("error occurred when stopping the frame grabber", "error", err)
		}

		<-p.done
	}

	p.display.Close()
}
