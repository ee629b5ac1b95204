package detr

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Labels maps model class ids to names.
type Labels map[int]string

// COCOLabels is the id2label table shipped with facebook/detr-resnet-50.
var COCOLabels = Labels{
	0: "N/A", 1: "person", 2: "bicycle", 3: "car", 4: "motorcycle",
	5: "airplane", 6: "bus", 7: "train", 8: "truck", 9: "boat",
	10: "traffic light", 11: "fire hydrant", 12: "N/A", 13: "stop sign",
	14: "parking meter", 15: "bench", 16: "bird", 17: "cat", 18: "dog",
	19: "horse", 20: "sheep", 21: "cow", 22: "elephant", 23: "bear",
	24: "zebra", 25: "giraffe", 26: "N/A", 27: "backpack", 28: "umbrella",
	29: "N/A", 30: "N/A", 31: "handbag", 32: "tie", 33: "suitcase",
	34: "frisbee", 35: "skis", 36: "snowboard", 37: "sports ball",
	38: "kite", 39: "baseball bat", 40: "baseball glove", 41: "skateboard",
	42: "surfboard", 43: "tennis racket", 44: "bottle", 45: "N/A",
	46: "wine glass", 47: "cup", 48: "fork", 49: "knife", 50: "spoon",
	51: "bowl", 52: "banana", 53: "apple", 54: "sandwich", 55: "orange",
	56: "broccoli", 57: "carrot", 58: "hot dog", 59: "pizza", 60: "donut",
	61: "cake", 62: "chair", 63: "couch", 64: "potted plant", 65: "bed",
	66: "N/A", 67: "dining table", 68: "N/A", 69: "N/A", 70: "toilet",
	71: "N/A", 72: "tv", 73: "laptop", 74: "mouse", 75: "remote",
	76: "keyboard", 77: "cell phone", 78: "microwave", 79: "oven",
	80: "toaster", 81: "sink", 82: "refrigerator", 83: "N/A", 84: "book",
	85: "clock", 86: "vase", 87: "scissors", 88: "teddy bear",
	89: "hair drier", 90: "toothbrush",
}

// Name returns the label for id, or LABEL_<id> when the table has none.
func (l Labels) Name(id int) string {
	if name, ok := l[id]; ok {
		return name
	}
	return fmt.Sprintf("LABEL_%d", id)
}

// LoadLabels reads the id2label table from a model config.json.
func LoadLabels(path string) (Labels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}

	var cfg struct {
		ID2Label map[string]string `json:"id2label"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse labels: %w", err)
	}
	if len(cfg.ID2Label) == 0 {
		return nil, fmt.Errorf("no id2label in %s", path)
	}

	labels := make(Labels, len(cfg.ID2Label))
	for key, name := range cfg.ID2Label {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("invalid label id %q: %w", key, err)
		}
		labels[id] = name
	}
	return labels, nil
}
