package dto

// ProcessResult is returned by the process endpoint.
type ProcessResult struct {
	Success    bool   `json:"success"`
	FeedID     int64  `json:"feed_id"`
	Model      string `json:"model"`
	Detections int    `json:"detections"`
	Message    string `json:"message,omitempty"`
}

// ProcessedEvent is broadcast to WebSocket viewers after a feed is processed.
type ProcessedEvent struct {
	Type       string `json:"type"`
	FeedID     int64  `json:"feed_id"`
	Model      string `json:"model"`
	Detections int    `json:"detections"`
}
