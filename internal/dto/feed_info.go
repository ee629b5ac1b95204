package dto

import (
	"encoding/json"
	"time"

	"detectionsite/internal/model"
)

// DetectionInfo is the API view of a detected object.
type DetectionInfo struct {
	ID         int64   `json:"id"`
	ObjectType string  `json:"object_type"`
	Confidence float64 `json:"confidence"`
	Location   string  `json:"location"`
	Box        Box     `json:"box"`
	Model      string  `json:"model"`
}

// Box is a bounding box in original-image pixels.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// FeedInfo is the API view of an image feed.
type FeedInfo struct {
	ID           int64           `json:"id"`
	Owner        string          `json:"owner"`
	OriginalName string          `json:"original_name"`
	ImageURL     string          `json:"image_url"`
	ProcessedURL string          `json:"processed_url,omitempty"`
	Uploaded     time.Time       `json:"uploaded"`
	Objects      []string        `json:"objects"`
	Detections   []DetectionInfo `json:"detections,omitempty"`
}

// MarshalJSON formats the upload time as "02-01-2006 15:04".
func (f FeedInfo) MarshalJSON() ([]byte, error) {
	type Alias FeedInfo
	return json.Marshal(&struct {
		Uploaded string `json:"uploaded"`
		Alias
	}{
		Uploaded: f.Uploaded.Format("02-01-2006 15:04"),
		Alias:    (Alias)(f),
	})
}

// NewDetectionInfo converts a stored detection.
func NewDetectionInfo(d model.DetectedObject) DetectionInfo {
	return DetectionInfo{
		ID:         d.ID,
		ObjectType: d.ObjectType,
		Confidence: d.Confidence,
		Location:   d.Location(),
		Box:        Box{X1: d.X1, Y1: d.Y1, X2: d.X2, Y2: d.Y2},
		Model:      d.Model,
	}
}
