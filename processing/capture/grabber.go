package capture

import (
	"errors"
	"fmt"
	"image"

	"frontcam/internal/config"
)

var (
	ErrEmptyFrame = errors.New("empty frame")
	ErrClosed     = errors.New("grabber closed")
)

// Grabber pulls successive frames from a single camera.
type Grabber interface {
	Start() error
	Grab() (*image.RGBA, error)
	Stop() error
}

func NewGrabber(cfg *config.Config) (Grabber, error) {
	c := cfg.Capture

	switch c.Backend {
	case config.BackendOpenCV:
		return NewDeviceGrabber(c.DeviceID, c.Width, c.Height), nil
	case config.BackendFFmpeg:
		return NewFFmpegGrabber(c.FFmpegDevice, c.TargetFPS, c.Width, c.Height), nil
	default:
		return nil, fmt.Errorf("unknown capture backend: %s", c.Backend)
	}
}
