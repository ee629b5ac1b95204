package detr

import (
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestResizeDims(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		expectW int
		expectH int
	}{
		{"landscape", 640, 480, 1066, 800},
		{"portrait", 480, 640, 800, 1066},
		{"already sized", 1200, 800, 1200, 800},
		{"square", 500, 500, 800, 800},
		{"wide panorama", 4000, 1000, 1333, 333},
		{"tall strip", 1000, 4000, 333, 1333},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := ResizeDims(tt.w, tt.h)
			if w != tt.expectW || h != tt.expectH {
				t.Errorf("ResizeDims(%d, %d) = %dx%d, expected %dx%d", tt.w, tt.h, w, h, tt.expectW, tt.expectH)
			}
		})
	}
}

func TestPreprocess_Normalises(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 80, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 80; x++ {
			img.Set(x, y, color.White)
		}
	}

	data, w, h := Preprocess(img)
	if w != 1066 || h != 800 {
		t.Fatalf("Unexpected input size %dx%d", w, h)
	}
	if len(data) != 3*w*h {
		t.Fatalf("Expected %d values, got %d", 3*w*h, len(data))
	}

	for c := 0; c < 3; c++ {
		expected := (1 - imageMean[c]) / imageStd[c]
		got := data[c*w*h+(h/2)*w+w/2]
		if math.Abs(float64(got-expected)) > 1e-4 {
			t.Errorf("Channel %d: got %v, expected %v", c, got, expected)
		}
	}
}

func TestPostProcess(t *testing.T) {
	const classes = 4 // three labels plus "no object"
	logits := []float32{
		0, 10, 0, 0, // confident class 1
		0, 0, 0, 10, // no object
		1, 1.2, 1, 1, // uncertain
	}
	boxes := []float32{
		0.5, 0.5, 0.2, 0.4,
		0.5, 0.5, 1, 1,
		0.1, 0.1, 0.1, 0.1,
	}
	labels := Labels{0: "N/A", 1: "person", 2: "dog"}

	dets := PostProcess(logits, boxes, 3, classes, 200, 100, 0.9, labels)
	if len(dets) != 1 {
		t.Fatalf("Expected 1 detection, got %d: %+v", len(dets), dets)
	}

	d := dets[0]
	if d.Label != "person" {
		t.Errorf("Expected person, got %s", d.Label)
	}
	if d.Confidence <= 0.9 {
		t.Errorf("Expected confidence above 0.9, got %v", d.Confidence)
	}
	if d.Box.X1 != 80 || d.Box.Y1 != 30 || d.Box.X2 != 120 || d.Box.Y2 != 70 {
		t.Errorf("Unexpected box %+v", d.Box)
	}
}

func TestPostProcess_RoundsToTwoDecimals(t *testing.T) {
	logits := []float32{20, 0}
	boxes := []float32{0.33333, 0.5, 0.1, 0.1}

	dets := PostProcess(logits, boxes, 1, 2, 100, 100, 0.9, COCOLabels)
	if len(dets) != 1 {
		t.Fatalf("Expected 1 detection, got %d", len(dets))
	}
	if x := dets[0].Box.X1; math.Abs(x*100-math.Round(x*100)) > 1e-9 {
		t.Errorf("X1 not rounded to two decimals: %v", x)
	}
	if dets[0].Label != "N/A" {
		t.Errorf("Expected N/A for class 0, got %s", dets[0].Label)
	}
}

func TestLabels_Name(t *testing.T) {
	if COCOLabels.Name(18) != "dog" {
		t.Errorf("Expected dog, got %s", COCOLabels.Name(18))
	}
	if COCOLabels.Name(200) != "LABEL_200" {
		t.Errorf("Expected placeholder, got %s", COCOLabels.Name(200))
	}
}

func TestLoadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"architectures": ["DetrForObjectDetection"], "id2label": {"0": "N/A", "1": "person", "17": "cat"}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	labels, err := LoadLabels(path)
	if err != nil {
		t.Fatalf("LoadLabels failed: %v", err)
	}
	if labels.Name(17) != "cat" || labels.Name(1) != "person" {
		t.Errorf("Unexpected labels %v", labels)
	}
}

func TestLoadLabels_Invalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"empty.json":  `{}`,
		"broken.json": `{"id2label": `,
		"badkey.json": `{"id2label": {"x": "cat"}}`,
	}
	for name, content := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadLabels(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	if _, err := LoadLabels(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}
