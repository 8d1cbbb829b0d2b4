package capture

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"gocv.io/x/gocv"
)

// DeviceGrabber reads frames from a camera through OpenCV's capture API.
type DeviceGrabber struct {
	mu sync.Mutex

	deviceID int
	width    int
	height   int

	webcam *gocv.VideoCapture
	mat    gocv.Mat
}

func NewDeviceGrabber(deviceID, width, height int) *DeviceGrabber {
	return &DeviceGrabber{
		deviceID: deviceID,
		width:    width,
		height:   height,
	}
}

func (g *DeviceGrabber) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.webcam != nil {
		return nil
	}

	webcam, err := gocv.OpenVideoCapture(g.deviceID)
	if err != nil {
		return fmt.Errorf("open video device %d: %w", g.deviceID, err)
	}

	if !webcam.IsOpened() {
		err := fmt.Errorf("video device %d is not available", g.deviceID)
		if closeErr := webcam.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("release video device %d: %w", g.deviceID, closeErr))
		}
		return err
	}

	webcam.Set(gocv.VideoCaptureFrameWidth, float64(g.width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(g.height))

	g.webcam = webcam
	g.mat = gocv.NewMat()

	return nil
}

func (g *DeviceGrabber) Grab() (*image.RGBA, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.webcam == nil {
		return nil, ErrClosed
	}

	if ok := g.webcam.Read(&g.mat); !ok {
		return nil, fmt.Errorf("cannot read device %d", g.deviceID)
	}

	if g.mat.Empty() {
		return nil, ErrEmptyFrame
	}

	img, err := g.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}

	return toRGBA(img), nil
}

func (g *DeviceGrabber) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.webcam == nil {
		return nil
	}

	matErr := g.mat.Close()
	camErr := g.webcam.Close()
	g.webcam = nil

	if camErr != nil {
		return fmt.Errorf("release video device %d: %w", g.deviceID, camErr)
	}
	if matErr != nil {
		return fmt.Errorf("release frame buffer: %w", matErr)
	}

	return nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}

	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	return rgba
}
