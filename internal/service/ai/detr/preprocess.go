package detr

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Resize limits and ImageNet normalisation used by the DETR image processor.
const (
	shortestEdge = 800
	longestEdge  = 1333
)

var (
	imageMean = [3]float32{0.485, 0.456, 0.406}
	imageStd  = [3]float32{0.229, 0.224, 0.225}
)

// ResizeDims returns the model input size for a width x height image:
// the shorter side becomes 800 unless that pushes the longer side past 1333.
func ResizeDims(width, height int) (int, int) {
	size := float64(shortestEdge)
	minSide := float64(min(width, height))
	maxSide := float64(max(width, height))

	var raw float64
	limited := false
	if maxSide/minSide*size > longestEdge {
		raw = longestEdge * minSide / maxSide
		size = math.RoundToEven(raw)
		limited = true
	}

	target := int(size)
	if (height <= width && height == target) || (width <= height && width == target) {
		return width, height
	}

	scale := size
	if limited {
		scale = raw
	}
	if width < height {
		return target, int(scale * float64(height) / float64(width))
	}
	return int(scale * float64(width) / float64(height)), target
}

// Preprocess resizes img and returns it as a normalised 1x3xHxW tensor
// together with the input width and height.
func Preprocess(img image.Image) ([]float32, int, int) {
	b := img.Bounds()
	w, h := ResizeDims(b.Dx(), b.Dy())
	resized := imaging.Resize(img, w, h, imaging.Linear)

	plane := w * h
	data := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+3]
			for c := 0; c < 3; c++ {
				v := float32(px[c]) / 255
				data[c*plane+y*w+x] = (v - imageMean[c]) / imageStd[c]
			}
		}
	}
	return data, w, h
}
