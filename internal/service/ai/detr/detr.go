// Package detr runs DETR ResNet-50 exported to ONNX through onnxruntime.
package detr

import (
	"fmt"
	"image"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"detectionsite/internal/service/ai"
)

var (
	inputNames  = []string{"pixel_values"}
	outputNames = []string{"logits", "pred_boxes"}
)

var runtimeMu sync.Mutex

// InitRuntime loads the onnxruntime shared library once per process.
func InitRuntime(libPath string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if _, err := os.Stat(libPath); os.IsNotExist(err) {
		return fmt.Errorf("onnxruntime library not found: %s", libPath)
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("init onnx: %w", err)
	}
	return nil
}

// ShutdownRuntime releases the onnxruntime environment.
func ShutdownRuntime() error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// Detector holds one onnxruntime session. Input size varies per image,
// so tensors are created for every call.
type Detector struct {
	mu        sync.Mutex
	session   *ort.DynamicAdvancedSession
	threshold float64
	labels    Labels
	once      sync.Once
}

// New creates a session for the model. InitRuntime must have succeeded.
func New(modelPath string, labels Labels, threshold float64) (*Detector, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}
	if labels == nil {
		labels = COCOLabels
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, nil)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &Detector{
		session:   session,
		threshold: threshold,
		labels:    labels,
	}, nil
}

// Detect returns every detection scoring above the configured threshold.
func (d *Detector) Detect(img image.Image) ([]ai.Detection, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: image is empty", ai.ErrDecode)
	}

	pixels, w, h := Preprocess(img)

	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(h), int64(w)), pixels)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil, nil}

	d.mu.Lock()
	err = d.session.Run([]ort.Value{input}, outputs)
	d.mu.Unlock()
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}

	logits, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected logits output type")
	}
	boxes, ok := outputs[1].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected boxes output type")
	}

	shape := logits.GetShape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("unexpected logits shape %v", shape)
	}
	queries, classes := int(shape[1]), int(shape[2])
	if len(boxes.GetData()) < queries*4 {
		return nil, fmt.Errorf("unexpected boxes shape %v", boxes.GetShape())
	}

	return PostProcess(logits.GetData(), boxes.GetData(), queries, classes,
		b.Dx(), b.Dy(), d.threshold, d.labels), nil
}

// Close destroys the session.
func (d *Detector) Close() error {
	var err error
	d.once.Do(func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		err = d.session.Destroy()
	})
	return err
}
