package service

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"detectionsite/internal/dto"
	"detectionsite/internal/logger"
	"detectionsite/internal/model"
	"detectionsite/internal/repository"
	"detectionsite/internal/service/ai"
)

// EventFeedProcessed is the event type sent after a successful run.
const EventFeedProcessed = "feed_processed"

// Status is the outcome of one pipeline run.
type Status int

const (
	StatusProcessed Status = iota
	StatusSkipped          // unknown model selector, nothing done
	StatusNotFound
	StatusUndecodable
)

// Outcome describes a finished run.
type Outcome struct {
	Status     Status
	Detections int
}

// OK reports whether the run counts as a success.
func (o Outcome) OK() bool {
	return o.Status == StatusProcessed || o.Status == StatusSkipped
}

// Notifier receives an event after every successful run.
type Notifier interface {
	BroadcastEvent(event dto.ProcessedEvent)
}

// Pipeline runs a model over a feed's original image, records the
// detections and attaches the annotated image to the feed.
type Pipeline struct {
	feeds      *FeedService
	detections repository.DetectionRepository
	models     *ai.Registry
	notifier   Notifier
	logger     *logger.Logger

	locksMu sync.Mutex
	locks   map[int64]*feedLock
}

type feedLock struct {
	mu   sync.Mutex
	refs int
}

// NewPipeline creates a Pipeline. notifier may be nil.
func NewPipeline(feeds *FeedService, detections repository.DetectionRepository,
	models *ai.Registry, notifier Notifier, logger *logger.Logger) *Pipeline {
	return &Pipeline{
		feeds:      feeds,
		detections: detections,
		models:     models,
		notifier:   notifier,
		logger:     logger,
		locks:      make(map[int64]*feedLock),
	}
}

// Models returns the selectable model names.
func (p *Pipeline) Models() []string {
	return p.models.Names()
}

// ProcessImage processes the feed with the selected model. It returns
// false without an error when the feed does not exist or its image is
// missing or cannot be decoded; any other failure is returned as an error.
func (p *Pipeline) ProcessImage(feedID int64, selector string) (bool, error) {
	outcome, err := p.Run(feedID, selector)
	if err != nil {
		return false, err
	}
	return outcome.OK(), nil
}

// Run is ProcessImage with the detailed outcome. Runs for the same feed
// are serialized.
func (p *Pipeline) Run(feedID int64, selector string) (Outcome, error) {
	unlock := p.lockFeed(feedID)
	defer unlock()

	feed, err := p.feeds.Get(feedID)
	if errors.Is(err, ErrFeedNotFound) {
		p.logger.Warning("Feed %d not found", feedID)
		return Outcome{Status: StatusNotFound}, nil
	}
	if err != nil {
		return Outcome{}, err
	}

	variant, ok := p.models.Lookup(selector)
	if !ok {
		p.logger.Info("Model %q is not registered, feed %d left unchanged", selector, feedID)
		return Outcome{Status: StatusSkipped}, nil
	}

	data, err := p.feeds.Files().Open(feed.ImagePath)
	if errors.Is(err, os.ErrNotExist) {
		p.logger.Warning("Image of feed %d is missing: %v", feedID, err)
		return Outcome{Status: StatusUndecodable}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to load image of feed %d: %w", feedID, err)
	}

	img, err := ai.Decode(data)
	if err != nil {
		p.logger.Warning("Failed to load image of feed %d: %v", feedID, err)
		return Outcome{Status: StatusUndecodable}, nil
	}

	detector, _, release, err := p.models.Acquire(selector)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	found, err := detector.Detect(img)
	if errors.Is(err, ai.ErrDecode) {
		p.logger.Warning("Model %s could not read image of feed %d: %v", selector, feedID, err)
		return Outcome{Status: StatusUndecodable}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("detection with %s failed for feed %d: %w", selector, feedID, err)
	}
	found = ai.FilterByConfidence(found, variant.Threshold)

	encoded, err := ai.EncodeJPEG(ai.Annotate(img, found, variant.Style))
	if err != nil {
		return Outcome{}, err
	}

	records := make([]model.DetectedObject, 0, len(found))
	for _, d := range found {
		rec := model.DetectedObject{
			ImageFeedID: feed.ID,
			ObjectType:  d.Label,
			Confidence:  d.Confidence,
			X1:          d.Box.X1,
			Y1:          d.Box.Y1,
			X2:          d.Box.X2,
			Y2:          d.Box.Y2,
			Model:       selector,
		}
		p.logger.Info("Detected %s at %s", rec.Describe(feed.ImagePath), rec.Location())
		records = append(records, rec)
	}

	// The annotated image goes first: if it cannot be stored, no detection
	// rows are written for this run.
	if err := p.feeds.AttachProcessed(feed, encoded, ProcessedName(feed)); err != nil {
		return Outcome{}, err
	}
	if err := p.detections.InsertBatch(records); err != nil {
		return Outcome{}, fmt.Errorf("failed to save detections of feed %d: %w", feedID, err)
	}

	p.logger.Info("Feed %d processed with %s: %d object(s)", feedID, selector, len(records))

	if p.notifier != nil {
		p.notifier.BroadcastEvent(dto.ProcessedEvent{
			Type:       EventFeedProcessed,
			FeedID:     feed.ID,
			Model:      selector,
			Detections: len(records),
		})
	}

	return Outcome{Status: StatusProcessed, Detections: len(records)}, nil
}

// ProcessedName is the file name given to the annotated copy of a feed.
func ProcessedName(feed *model.ImageFeed) string {
	return "processed_" + feed.OriginalName
}

func (p *Pipeline) lockFeed(id int64) func() {
	p.locksMu.Lock()
	l, ok := p.locks[id]
	if !ok {
		l = &feedLock{}
		p.locks[id] = l
	}
	l.refs++
	p.locksMu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		p.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, id)
		}
		p.locksMu.Unlock()
	}
}
