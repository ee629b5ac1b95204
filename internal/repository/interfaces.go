package repository

import (
	"detectionsite/internal/dto"
	"detectionsite/internal/model"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	// Create operations
	Insert(user *model.User) (int64, error)
	EnsureByUsername(username string) (*model.User, error)

	// Read operations
	GetByID(id int64) (*model.User, error)
	GetByUsername(username string) (*model.User, error)
}

// FeedRepository defines the interface for image feed data operations.
// Getters return nil, nil when the row does not exist.
type FeedRepository interface {
	// Create operations
	Insert(feed *model.ImageFeed) (int64, error)

	// Read operations
	GetByID(id int64) (*model.ImageFeed, error)
	GetAll(filter *dto.FeedFilter) ([]model.ImageFeed, error)
	GetTotalCount(filter *dto.FeedFilter) (int, error)

	// Update operations
	UpdateProcessedImage(id int64, path string) error

	// Delete operations
	Delete(id int64) error
}

// DetectionRepository defines the interface for detected object operations.
type DetectionRepository interface {
	// Create operations
	InsertBatch(detections []model.DetectedObject) error

	// Read operations
	GetByFeedID(feedID int64) ([]model.DetectedObject, error)
	GetObjectTypesByFeedID(feedID int64) ([]string, error)
	CountByFeedID(feedID int64) (int, error)
}
