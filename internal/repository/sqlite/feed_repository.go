package sqlite

import (
	"database/sql"
	"fmt"

	"detectionsite/internal/dto"
	"detectionsite/internal/model"
)

const feedColumns = `f.id, f.user_id, u.username, f.original_name, f.image_path,
	f.processed_image_path, f.created_at, f.updated_at`

// FeedRepository implements repository.FeedRepository for SQLite.
type FeedRepository struct {
	db *DB
}

// NewFeedRepository creates a new SQLite feed repository.
func NewFeedRepository(db *DB) *FeedRepository {
	return &FeedRepository{db: db}
}

// Insert adds a new feed record to the database.
func (r *FeedRepository) Insert(feed *model.ImageFeed) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO image_feeds (user_id, original_name, image_path, processed_image_path)
		VALUES (?, ?, ?, ?)
	`, feed.UserID, feed.OriginalName, feed.ImagePath, feed.ProcessedImagePath)
	if err != nil {
		return 0, fmt.Errorf("failed to insert feed: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves a feed by its ID.
func (r *FeedRepository) GetByID(id int64) (*model.ImageFeed, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`
		SELECT `+feedColumns+`
		FROM image_feeds f JOIN users u ON u.id = f.user_id
		WHERE f.id = ?
	`, id)

	feed, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}
	return feed, nil
}

// GetAll retrieves feeds based on filter criteria, newest first.
func (r *FeedRepository) GetAll(filter *dto.FeedFilter) ([]model.ImageFeed, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildFeedFilter(filter)
	query := `
		SELECT ` + feedColumns + `
		FROM image_feeds f JOIN users u ON u.id = f.user_id
		WHERE 1=1` + where + `
		ORDER BY f.created_at DESC, f.id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feeds: %w", err)
	}
	defer rows.Close()

	var feeds []model.ImageFeed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed: %w", err)
		}
		feeds = append(feeds, *feed)
	}

	return feeds, rows.Err()
}

// GetTotalCount returns the total count of feeds matching the filter.
func (r *FeedRepository) GetTotalCount(filter *dto.FeedFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildFeedFilter(filter)
	query := `SELECT COUNT(*) FROM image_feeds f WHERE 1=1` + where

	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count feeds: %w", err)
	}
	return count, nil
}

// UpdateProcessedImage links a processed image path to the feed.
func (r *FeedRepository) UpdateProcessedImage(id int64, path string) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		UPDATE image_feeds
		SET processed_image_path = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, path, id)
	if err != nil {
		return fmt.Errorf("failed to update processed image: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update processed image: feed %d does not exist", id)
	}
	return nil
}

// Delete removes a feed and its detections.
func (r *FeedRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// First delete related detections
	if _, err := tx.Exec(`DELETE FROM detected_objects WHERE image_feed_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM image_feeds WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFeed(row rowScanner) (*model.ImageFeed, error) {
	var feed model.ImageFeed
	err := row.Scan(&feed.ID, &feed.UserID, &feed.Username, &feed.OriginalName, &feed.ImagePath,
		&feed.ProcessedImagePath, &feed.CreatedAt, &feed.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

func buildFeedFilter(filter *dto.FeedFilter) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}

	where := ""
	args := []interface{}{}

	if filter.UserID > 0 {
		where += " AND f.user_id = ?"
		args = append(args, filter.UserID)
	}

	if filter.ObjectType != "" {
		where += " AND EXISTS (SELECT 1 FROM detected_objects d WHERE d.image_feed_id = f.id AND d.object_type = ?)"
		args = append(args, filter.ObjectType)
	}

	return where, args
}
