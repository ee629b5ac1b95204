package detr

import (
	"math"

	"detectionsite/internal/service/ai"
)

// PostProcess turns raw model outputs into detections in original image
// pixels. logits is [queries x classes] with the last class meaning
// "no object"; boxes is [queries x 4] of normalised (cx, cy, w, h).
func PostProcess(logits, boxes []float32, queries, classes, width, height int, threshold float64, labels Labels) []ai.Detection {
	var detections []ai.Detection

	for q := 0; q < queries; q++ {
		probs := softmax(logits[q*classes : (q+1)*classes])

		best, score := 0, float32(0)
		for c := 0; c < classes-1; c++ {
			if probs[c] > score {
				best, score = c, probs[c]
			}
		}
		if float64(score) <= threshold {
			continue
		}

		cx, cy, bw, bh := boxes[q*4], boxes[q*4+1], boxes[q*4+2], boxes[q*4+3]
		detections = append(detections, ai.Detection{
			Label:      labels.Name(best),
			Confidence: float64(score),
			Box: ai.Box{
				X1: round2(float64(cx-bw/2) * float64(width)),
				Y1: round2(float64(cy-bh/2) * float64(height)),
				X2: round2(float64(cx+bw/2) * float64(width)),
				Y2: round2(float64(cy+bh/2) * float64(height)),
			},
		})
	}

	return detections
}

func softmax(v []float32) []float32 {
	maxV := v[0]
	for _, x := range v[1:] {
		if x > maxV {
			maxV = x
		}
	}

	out := make([]float32, len(v))
	var sum float64
	for i, x := range v {
		e := math.Exp(float64(x - maxV))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
