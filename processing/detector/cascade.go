package detector

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"frontcam/internal/models"

	"gocv.io/x/gocv"
)

var ErrEmptyFrame = errors.New("empty frame")

// CascadeDetector finds faces with a pretrained Haar cascade.
type CascadeDetector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
}

func NewCascadeDetector(cascadePath string) (*CascadeDetector, error) {
	classifier := gocv.NewCascadeClassifier()

	if !classifier.Load(cascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade classifier from %s", cascadePath)
	}

	return &CascadeDetector{classifier: classifier}, nil
}

func (d *CascadeDetector) Detect(frame *image.RGBA) ([]models.Detection, error) {
	if frame == nil || frame.Rect.Empty() {
		return nil, ErrEmptyFrame
	}

	mat, err := gocv.ImageToMatRGBA(frame)
	if err != nil {
		return nil, fmt.Errorf("frame to mat: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, ErrEmptyFrame
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if err := gocv.CvtColor(mat, &gray, gocv.ColorRGBAToGray); err != nil {
		return nil, fmt.Errorf("convert to gray: %w", err)
	}
	if err := gocv.EqualizeHist(gray, &gray); err != nil {
		return nil, fmt.Errorf("equalize histogram: %w", err)
	}

	d.mu.Lock()
	rects := d.classifier.DetectMultiScale(gray)
	d.mu.Unlock()

	detections := make([]models.Detection, 0, len(rects))
	for _, r := range rects {
		r = r.Add(frame.Rect.Min).Intersect(frame.Rect)
		if r.Empty() {
			continue
		}

		box := models.BoxFromRect(r)
		detections = append(detections, models.Detection{
			Label:  models.LabelFace,
			Box:    box,
			Region: frame.SubImage(box.Rect()),
		})
	}

	return detections, nil
}

func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.classifier.Close()
}
