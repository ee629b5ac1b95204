package model

import (
	"fmt"
	"time"
)

// User owns image feeds.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// ImageFeed is one uploaded image plus its optional annotated copy.
// Paths are relative to the media root.
type ImageFeed struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	Username           string    `json:"username,omitempty"`
	OriginalName       string    `json:"original_name"`
	ImagePath          string    `json:"image_path"`
	ProcessedImagePath string    `json:"processed_image_path,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// HasProcessed reports whether an annotated image is attached.
func (f *ImageFeed) HasProcessed() bool {
	return f.ProcessedImagePath != ""
}

func (f *ImageFeed) String() string {
	return fmt.Sprintf("%s - %s", f.Username, f.ImagePath)
}

// DetectedObject is one detection recorded for a feed. The box is in pixel
// coordinates of the original image.
type DetectedObject struct {
	ID          int64     `json:"id"`
	ImageFeedID int64     `json:"image_feed_id"`
	ObjectType  string    `json:"object_type"`
	Confidence  float64   `json:"confidence"`
	X1          float64   `json:"x1"`
	Y1          float64   `json:"y1"`
	X2          float64   `json:"x2"`
	Y2          float64   `json:"y2"`
	Model       string    `json:"model"`
	CreatedAt   time.Time `json:"created_at"`
}

// Location renders the box as "x1,y1,x2,y2".
func (d *DetectedObject) Location() string {
	return FormatLocation(d.X1, d.Y1, d.X2, d.Y2)
}

// Describe renders "<label> (<confidence>%) on <image path>".
func (d *DetectedObject) Describe(imagePath string) string {
	return fmt.Sprintf("%s (%g%%) on %s", d.ObjectType, d.Confidence*100, imagePath)
}
