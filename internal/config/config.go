package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"os"
)

type Backend string

const (
	BackendOpenCV Backend = "opencv"
	BackendFFmpeg Backend = "ffmpeg"

	DefaultConfigPath  string = "config.json"
	DefaultCascadePath string = "data/haarcascade_frontalface_default.xml"
)

var BackendsList = [...]string{
	string(BackendOpenCV),
	string(BackendFFmpeg),
}

type CaptureConfig struct {
	Backend      Backend `json:"backend"`
	DeviceID     int     `json:"device_id"`
	FFmpegDevice string  `json:"ffmpeg_device"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	TargetFPS    uint    `json:"target_fps"`
}

type DetectorConfig struct {
	CascadePath string `json:"cascade_path"`
}

type OverlayConfig struct {
	Thickness int        `json:"thickness"`
	Color     color.RGBA `json:"color"`
	Mirror    bool       `json:"mirror"`
}

type Config struct {
	WindowTitle string `json:"window_title"`

	Capture  CaptureConfig  `json:"capture"`
	Detector DetectorConfig `json:"detector"`
	Overlay  OverlayConfig  `json:"overlay"`
}

func NewDefaultConfig() *Config {
	return &Config{
		WindowTitle: "Front Camera Face Detection",
		Capture: CaptureConfig{
			Backend:      BackendOpenCV,
			DeviceID:     0,
			FFmpegDevice: "/dev/video0",
			Width:        640,
			Height:       360,
			TargetFPS:    30,
		},
		Detector: DetectorConfig{CascadePath: DefaultCascadePath},
		Overlay: OverlayConfig{
			Thickness: 2,
			Color:     color.RGBA{R: 255, A: 255},
			Mirror:    true,
		},
	}
}

// LoadConfigFile decodes path over the defaults. A missing file is not an
// error.
func LoadConfigFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Capture.Backend {
	case BackendOpenCV, BackendFFmpeg:
	default:
		return fmt.Errorf("unknown capture backend %q, want one of %v", c.Capture.Backend, BackendsList)
	}

	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		return fmt.Errorf("invalid capture size %dx%d", c.Capture.Width, c.Capture.Height)
	}

	if c.Detector.CascadePath == "" {
		return errors.New("cascade path is empty")
	}

	if c.Overlay.Thickness <= 0 {
		return fmt.Errorf("invalid box thickness: %d", c.Overlay.Thickness)
	}

	return nil
}
