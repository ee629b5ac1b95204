package ai

import (
	"errors"
	"image"
	"image/color"
)

// Model selectors accepted by the pipeline.
const (
	ModelSSD  = "model_1"
	ModelDETR = "model_2"
)

var (
	// ErrUnknownModel is returned for a selector nothing is registered under.
	ErrUnknownModel = errors.New("unknown model")
	// ErrDecode marks image bytes that could not be decoded.
	ErrDecode = errors.New("failed to decode image")
)

// Box is an axis-aligned box in pixel coordinates of the analysed image.
type Box struct {
	X1, Y1, X2, Y2 float64
}

// Rect returns the box as integer pixel rectangle (truncated).
func (b Box) Rect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
}

// Detection is a single object found by a detector.
type Detection struct {
	Label      string
	Confidence float64
	Box        Box
}

// Detector runs one loaded model over an image.
// Implementations serialize their own inference calls.
type Detector interface {
	Detect(img image.Image) ([]Detection, error)
	Close() error
}

// Style controls how detections are drawn on the processed image.
type Style struct {
	Color      color.NRGBA
	Thickness  int
	ShowLabels bool
}

var (
	// SSDStyle draws green boxes with "label: 0.87" captions.
	SSDStyle = Style{Color: color.NRGBA{G: 255, A: 255}, Thickness: 2, ShowLabels: true}
	// DETRStyle draws red box outlines only.
	DETRStyle = Style{Color: color.NRGBA{R: 255, A: 255}, Thickness: 2}
)

// FilterByConfidence keeps detections strictly above the threshold.
func FilterByConfidence(detections []Detection, threshold float64) []Detection {
	kept := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if d.Confidence > threshold {
			kept = append(kept, d)
		}
	}
	return kept
}
