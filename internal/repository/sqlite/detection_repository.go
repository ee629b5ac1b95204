package sqlite

import (
	"fmt"

	"detectionsite/internal/model"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// InsertBatch adds multiple detections in a single transaction.
func (r *DetectionRepository) InsertBatch(detections []model.DetectedObject) error {
	if len(detections) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO detected_objects (image_feed_id, object_type, confidence, x1, y1, x2, y2, model)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, det := range detections {
		if _, err := stmt.Exec(det.ImageFeedID, det.ObjectType, det.Confidence, det.X1, det.Y1, det.X2, det.Y2, det.Model); err != nil {
			return fmt.Errorf("failed to insert detection: %w", err)
		}
	}

	return tx.Commit()
}

// GetByFeedID retrieves all detections for a feed in insertion order.
func (r *DetectionRepository) GetByFeedID(feedID int64) ([]model.DetectedObject, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, image_feed_id, object_type, confidence, x1, y1, x2, y2, model, created_at
		FROM detected_objects WHERE image_feed_id = ?
		ORDER BY id
	`, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var detections []model.DetectedObject
	for rows.Next() {
		var det model.DetectedObject
		if err := rows.Scan(&det.ID, &det.ImageFeedID, &det.ObjectType, &det.Confidence,
			&det.X1, &det.Y1, &det.X2, &det.Y2, &det.Model, &det.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, det)
	}

	return detections, rows.Err()
}

// GetObjectTypesByFeedID returns the distinct object types seen in a feed.
func (r *DetectionRepository) GetObjectTypesByFeedID(feedID int64) ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT DISTINCT object_type FROM detected_objects
		WHERE image_feed_id = ? ORDER BY object_type
	`, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to query object types: %w", err)
	}
	defer rows.Close()

	var objects []string
	for rows.Next() {
		var obj string
		if err := rows.Scan(&obj); err != nil {
			return nil, fmt.Errorf("failed to scan object type: %w", err)
		}
		objects = append(objects, obj)
	}

	return objects, rows.Err()
}

// CountByFeedID returns how many detections a feed has accumulated.
func (r *DetectionRepository) CountByFeedID(feedID int64) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM detected_objects WHERE image_feed_id = ?`, feedID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count detections: %w", err)
	}
	return count, nil
}
