package ai

import "fmt"

// VOCLabels is the MobileNet-SSD class list; index 0 is the background class.
var VOCLabels = []string{
	"background", "aeroplane", "bicycle", "bird", "boat", "bottle",
	"bus", "car", "cat", "chair", "cow", "diningtable",
	"dog", "horse", "motorbike", "person", "pottedplant",
	"sheep", "sofa", "train", "tvmonitor",
}

// LabelFor returns labels[id], or a placeholder for ids outside the list.
func LabelFor(labels []string, id int) string {
	if id >= 0 && id < len(labels) {
		return labels[id]
	}
	return fmt.Sprintf("unknown%d", id)
}
