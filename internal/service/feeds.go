package service

import (
	"errors"
	"fmt"
	"time"

	"detectionsite/internal/dto"
	"detectionsite/internal/logger"
	"detectionsite/internal/model"
	"detectionsite/internal/repository"
	"detectionsite/internal/service/storage"
)

// ErrFeedNotFound is returned when no feed exists for the given id.
var ErrFeedNotFound = errors.New("feed not found")

// FeedService owns image feeds: their records and their files.
type FeedService struct {
	users      repository.UserRepository
	feeds      repository.FeedRepository
	detections repository.DetectionRepository
	files      *storage.FileStore
	logger     *logger.Logger
}

// NewFeedService creates a FeedService.
func NewFeedService(users repository.UserRepository, feeds repository.FeedRepository,
	detections repository.DetectionRepository, files *storage.FileStore, logger *logger.Logger) *FeedService {
	return &FeedService{
		users:      users,
		feeds:      feeds,
		detections: detections,
		files:      files,
		logger:     logger,
	}
}

// Files returns the file store backing the feeds.
func (s *FeedService) Files() *storage.FileStore {
	return s.files
}

// Create stores the original image under images/ and records a feed owned
// by owner. The user is created on first use.
func (s *FeedService) Create(owner, name string, data []byte) (*model.ImageFeed, error) {
	user, err := s.users.EnsureByUsername(owner)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve owner %q: %w", owner, err)
	}

	rel, err := s.files.Save(storage.ImagesDir, name, data)
	if err != nil {
		return nil, err
	}

	feed := &model.ImageFeed{
		UserID:       user.ID,
		Username:     user.Username,
		OriginalName: storage.CleanName(name),
		ImagePath:    rel,
	}

	id, err := s.feeds.Insert(feed)
	if err != nil {
		if _, rmErr := s.files.RemoveIfPresent(rel); rmErr != nil {
			s.logger.Warning("Failed to clean up %s: %v", rel, rmErr)
		}
		return nil, fmt.Errorf("failed to save feed: %w", err)
	}
	feed.ID = id
	feed.CreatedAt = time.Now().UTC()
	feed.UpdatedAt = feed.CreatedAt

	s.logger.Info("Feed %d created: %s", id, feed)
	return feed, nil
}

// AttachProcessed stores an annotated image and links it to the feed,
// replacing and removing any previous one.
func (s *FeedService) AttachProcessed(feed *model.ImageFeed, data []byte, name string) error {
	rel, err := s.files.Save(storage.ProcessedImagesDir, name, data)
	if err != nil {
		return err
	}

	if err := s.feeds.UpdateProcessedImage(feed.ID, rel); err != nil {
		if _, rmErr := s.files.RemoveIfPresent(rel); rmErr != nil {
			s.logger.Warning("Failed to clean up %s: %v", rel, rmErr)
		}
		return fmt.Errorf("failed to attach processed image to feed %d: %w", feed.ID, err)
	}

	previous := feed.ProcessedImagePath
	feed.ProcessedImagePath = rel

	if previous != "" && previous != rel {
		if _, err := s.files.RemoveIfPresent(previous); err != nil {
			s.logger.Warning("Failed to remove previous processed image %s: %v", previous, err)
		}
	}
	return nil
}

// Get returns the feed or ErrFeedNotFound.
func (s *FeedService) Get(id int64) (*model.ImageFeed, error) {
	feed, err := s.feeds.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load feed %d: %w", id, err)
	}
	if feed == nil {
		return nil, ErrFeedNotFound
	}
	return feed, nil
}

// Delete removes both image files of the feed, then the record. Detections
// go with the record. Missing files are ignored.
func (s *FeedService) Delete(id int64) error {
	feed, err := s.Get(id)
	if err != nil {
		return err
	}

	for _, rel := range []string{feed.ImagePath, feed.ProcessedImagePath} {
		if _, err := s.files.RemoveIfPresent(rel); err != nil {
			return fmt.Errorf("failed to delete files of feed %d: %w", id, err)
		}
	}

	if err := s.feeds.Delete(id); err != nil {
		return fmt.Errorf("failed to delete feed %d: %w", id, err)
	}

	s.logger.Info("Feed %d deleted", id)
	return nil
}

// List returns one page of feeds owned by owner (all feeds for an empty
// owner) and the total number of matching feeds. Pages start at 1. A
// non-empty objectType keeps only feeds with a detection of that type.
func (s *FeedService) List(owner, objectType string, page, limit int) ([]model.ImageFeed, int, error) {
	filter, ok, err := s.ownerFilter(owner)
	if err != nil || !ok {
		return []model.ImageFeed{}, 0, err
	}
	filter.ObjectType = objectType

	if page < 1 {
		page = 1
	}
	if limit > 0 {
		filter.Limit = limit
		filter.Offset = (page - 1) * limit
	}

	feeds, err := s.feeds.GetAll(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list feeds: %w", err)
	}

	total, err := s.feeds.GetTotalCount(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count feeds: %w", err)
	}

	return feeds, total, nil
}

// Count returns the number of feeds owned by owner.
func (s *FeedService) Count(owner string) (int, error) {
	filter, ok, err := s.ownerFilter(owner)
	if err != nil || !ok {
		return 0, err
	}

	total, err := s.feeds.GetTotalCount(filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count feeds: %w", err)
	}
	return total, nil
}

// Detections returns every detection recorded for the feed, oldest first.
func (s *FeedService) Detections(feedID int64) ([]model.DetectedObject, error) {
	detections, err := s.detections.GetByFeedID(feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to load detections of feed %d: %w", feedID, err)
	}
	return detections, nil
}

// Info builds the API view of a feed. Detections are included on request.
func (s *FeedService) Info(feed *model.ImageFeed, withDetections bool) dto.FeedInfo {
	info := dto.FeedInfo{
		ID:           feed.ID,
		Owner:        feed.Username,
		OriginalName: feed.OriginalName,
		ImageURL:     fmt.Sprintf("/api/feeds/%d/image", feed.ID),
		Uploaded:     feed.CreatedAt,
		Objects:      []string{},
	}
	if feed.HasProcessed() {
		info.ProcessedURL = fmt.Sprintf("/api/feeds/%d/processed", feed.ID)
	}

	objects, err := s.detections.GetObjectTypesByFeedID(feed.ID)
	if err != nil {
		s.logger.Error("Error getting objects for feed %d: %v", feed.ID, err)
	} else if objects != nil {
		info.Objects = objects
	}

	if withDetections {
		detections, err := s.Detections(feed.ID)
		if err != nil {
			s.logger.Error("%v", err)
		}
		for _, d := range detections {
			info.Detections = append(info.Detections, dto.NewDetectionInfo(d))
		}
	}

	return info
}

// ownerFilter resolves owner to a filter. ok is false when the owner is
// unknown, in which case nothing matches.
func (s *FeedService) ownerFilter(owner string) (*dto.FeedFilter, bool, error) {
	filter := &dto.FeedFilter{}
	if owner == "" {
		return filter, true, nil
	}

	user, err := s.users.GetByUsername(owner)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve owner %q: %w", owner, err)
	}
	if user == nil {
		return nil, false, nil
	}

	filter.UserID = user.ID
	return filter, true, nil
}
