package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"
)

const (
	bytesPerPixel       = 4
	defaultStartTimeout = 10 * time.Second
)

// FFmpegGrabber captures from a camera through an ffmpeg subprocess writing
// raw RGBA frames to stdout.
type FFmpegGrabber struct {
	stopOnce sync.Once

	deviceName string
	width      int
	height     int
	targetFPS  uint

	startTimeout time.Duration

	cmd    *exec.Cmd
	stderr bytes.Buffer

	// first frame, taken by Start to confirm the device works
	pending *image.RGBA

	frameChan chan *image.RGBA
	errChan   chan error
	stopChan  chan struct{}
}

func NewFFmpegGrabber(deviceName string, targetFps uint, width, height int) *FFmpegGrabber {
	return &FFmpegGrabber{
		deviceName: deviceName,
		width:      width,
		height:     height,
		targetFPS:  targetFps,

		startTimeout: defaultStartTimeout,

		frameChan: make(chan *image.RGBA, 1),
		errChan:   make(chan error, 1),
		stopChan:  make(chan struct{}),
	}
}

func ffmpegArgs(goos, device string, fps uint, width, height int) []string {
	var input []string

	if goos == "windows" {
		input = []string{"-f", "dshow", "-i", fmt.Sprintf("video=%s", device)}
	} else {
		input = []string{"-f", "v4l2", "-i", device}
	}

	filter := fmt.Sprintf("scale=%d:%d", width, height)
	if fps > 0 {
		filter = fmt.Sprintf("fps=%d,%s", fps, filter)
	}

	return append(input,
		"-vf", filter,
		"-f", "image2pipe",
		"-pix_fmt", "rgba",
		"-vcodec", "rawvideo",
		"-",
	)
}

// Start launches ffmpeg and waits for the first frame, so a missing or busy
// device fails here rather than in the loop.
func (g *FFmpegGrabber) Start() error {
	g.cmd = exec.Command("ffmpeg", ffmpegArgs(runtime.GOOS, g.deviceName, g.targetFPS, g.width, g.height)...)
	g.cmd.Stderr = &g.stderr

	stdout, err := g.cmd.StdoutPipe()
	if err != nil {
		return err
	}

	if err := g.cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w. Details: %s", err, g.stderr.String())
	}

	go g.readLoop(stdout)

	timer := time.NewTimer(g.startTimeout)
	defer timer.Stop()

	select {
	case img, ok := <-g.frameChan:
		if ok {
			g.pending = img
			return nil
		}
		err = ErrClosed
		if readErr, ok := g.pendingErr(); ok {
			err = readErr
		}
	case readErr, ok := <-g.errChan:
		err = ErrClosed
		if ok {
			err = readErr
		}
	case <-timer.C:
		err = fmt.Errorf("no frame from %s within %s", g.deviceName, g.startTimeout)
	}

	if stopErr := g.Stop(); stopErr != nil {
		err = errors.Join(err, stopErr)
	}

	return fmt.Errorf("ffmpeg capture of %s failed: %w. Details: %s", g.deviceName, err, strings.TrimSpace(g.stderr.String()))
}

func (g *FFmpegGrabber) readLoop(stdout io.ReadCloser) {
	defer close(g.frameChan)
	defer close(g.errChan)
	defer stdout.Close()

	frameSize := g.width * g.height * bytesPerPixel

	for {
		select {
		case <-g.stopChan:
			return
		default:
		}

		pixelData := make([]byte, frameSize)
		if _, err := io.ReadFull(stdout, pixelData); err != nil {
			select {
			case <-g.stopChan:
			case g.errChan <- fmt.Errorf("read error: %w", err):
			}
			return
		}

		img := &image.RGBA{
			Pix:    pixelData,
			Stride: g.width * bytesPerPixel,
			Rect:   image.Rect(0, 0, g.width, g.height),
		}

		// keep only the newest frame when the consumer falls behind
		select {
		case <-g.frameChan:
		default:
		}

		select {
		case g.frameChan <- img:
		case <-g.stopChan:
			return
		}
	}
}

func (g *FFmpegGrabber) Grab() (*image.RGBA, error) {
	if img := g.pending; img != nil {
		g.pending = nil
		return img, nil
	}

	// a read error is sent before the channels close, so report it first
	if err, ok := g.pendingErr(); ok {
		return nil, err
	}

	select {
	case img, ok := <-g.frameChan:
		if !ok {
			if err, ok := g.pendingErr(); ok {
				return nil, err
			}
			return nil, ErrClosed
		}
		return img, nil
	case err, ok := <-g.errChan:
		if !ok {
			return nil, ErrClosed
		}
		return nil, err
	case <-g.stopChan:
		return nil, ErrClosed
	}
}

func (g *FFmpegGrabber) pendingErr() (error, bool) {
	select {
	case err, ok := <-g.errChan:
		if ok {
			return err, true
		}
	default:
	}
	return nil, false
}

func (g *FFmpegGrabber) Stop() error {
	var err error

	g.stopOnce.Do(func() {
		close(g.stopChan)

		if g.cmd == nil || g.cmd.Process == nil {
			return
		}

		if killErr := g.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			err = fmt.Errorf("kill ffmpeg: %w", killErr)
			return
		}

		// a killed or failed ffmpeg reports a non-zero exit, which is expected here
		var exitErr *exec.ExitError
		if waitErr := g.cmd.Wait(); waitErr != nil && !errors.As(waitErr, &exitErr) {
			err = fmt.Errorf("wait for ffmpeg: %w", waitErr)
		}
	})

	return err
}

var dshowDeviceRe = regexp.MustCompile(`"([^"]+)"\s+\(video\)`)

func parseDshowDevices(output string) []string {
	var cameras []string
	seen := make(map[string]bool)

	for _, m := range dshowDeviceRe.FindAllStringSubmatch(output, -1) {
		name := m[1]
		if name != "dummy" && !seen[name] {
			cameras = append(cameras, name)
			seen[name] = true
		}
	}

	return cameras
}

// ListCameras returns the video devices ffmpeg can open on this machine.
func ListCameras() ([]string, error) {
	if runtime.GOOS != "windows" {
		matches, err := filepath.Glob("/dev/video*")
		if err != nil {
			return nil, err
		}
		return matches, nil
	}

	cmd := exec.Command("ffmpeg", "-list_devices", "true", "-f", "dshow", "-i", "dummy")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// ffmpeg exits non-zero after listing devices
	cmd.Run()

	return parseDshowDevices(stderr.String()), nil
}
