// Package ssd runs the MobileNet-SSD Caffe model through OpenCV DNN.
package ssd

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"detectionsite/internal/service/ai"
)

// Network input parameters of MobileNet-SSD.
const (
	inputSize   = 300
	scaleFactor = 0.007843
	meanValue   = 127.5
)

// Detector wraps a loaded Caffe network. gocv.Net is not safe for
// concurrent use, so Detect holds mu for the whole forward pass.
type Detector struct {
	net       gocv.Net
	threshold float64
	labels    []string
	mu        sync.Mutex
}

// New loads the network from a .caffemodel and its deploy .prototxt.
func New(modelPath, configPath string, threshold float64) (*Detector, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	net := gocv.ReadNetFromCaffe(configPath, modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network")
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	return &Detector{
		net:       net,
		threshold: threshold,
		labels:    ai.VOCLabels,
	}, nil
}

// Detect returns every detection above the configured threshold.
func (d *Detector) Detect(img image.Image) ([]ai.Detection, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrDecode, err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("%w: image is empty", ai.ErrDecode)
	}

	blob := gocv.BlobFromImage(mat, scaleFactor, image.Pt(inputSize, inputSize),
		gocv.NewScalar(meanValue, meanValue, meanValue, 0), false, false)
	defer blob.Close()

	rows, err := d.forward(blob)
	if err != nil {
		return nil, err
	}

	return ParseDetections(rows, mat.Cols(), mat.Rows(), d.threshold, d.labels), nil
}

func (d *Detector) forward(blob gocv.Mat) ([][7]float32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return nil, fmt.Errorf("network returned no output")
	}

	reshaped := output.Reshape(1, output.Total()/7)
	defer reshaped.Close()

	rows := make([][7]float32, reshaped.Rows())
	for i := range rows {
		for j := 0; j < 7; j++ {
			rows[i][j] = reshaped.GetFloatAt(i, j)
		}
	}
	return rows, nil
}

// Close releases the network.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// ParseDetections converts raw SSD output rows
// [batch, class, confidence, x1, y1, x2, y2] with coordinates normalised
// to 0..1 into pixel boxes. Coordinates are truncated to whole pixels and
// clamped to the image.
func ParseDetections(rows [][7]float32, width, height int, threshold float64, labels []string) []ai.Detection {
	var detections []ai.Detection

	for _, row := range rows {
		confidence := float64(row[2])
		if confidence <= threshold {
			continue
		}

		x1 := clamp(int(row[3]*float32(width)), width)
		y1 := clamp(int(row[4]*float32(height)), height)
		x2 := clamp(int(row[5]*float32(width)), width)
		y2 := clamp(int(row[6]*float32(height)), height)
		if x2 < x1 {
			x1, x2 = x2, x1
		}
		if y2 < y1 {
			y1, y2 = y2, y1
		}

		detections = append(detections, ai.Detection{
			Label:      ai.LabelFor(labels, int(row[1])),
			Confidence: confidence,
			Box:        ai.Box{X1: float64(x1), Y1: float64(y1), X2: float64(x2), Y2: float64(y2)},
		})
	}

	return detections
}

func clamp(v, size int) int {
	if v < 0 {
		return 0
	}
	if v > size-1 {
		return size - 1
	}
	return v
}
