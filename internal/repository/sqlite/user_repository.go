package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"detectionsite/internal/model"
)

// UserRepository implements repository.UserRepository for SQLite.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Insert adds a new user record to the database.
func (r *UserRepository) Insert(user *model.User) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`INSERT INTO users (username) VALUES (?)`, user.Username)
	if err != nil {
		return 0, fmt.Errorf("failed to insert user: %w", err)
	}

	return result.LastInsertId()
}

// EnsureByUsername returns the user with the given name, creating it first if needed.
func (r *UserRepository) EnsureByUsername(username string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username required")
	}

	r.db.Lock()
	_, err := r.db.Conn().Exec(`INSERT OR IGNORE INTO users (username) VALUES (?)`, username)
	r.db.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}

	return r.GetByUsername(username)
}

// GetByID retrieves a user by its ID.
func (r *UserRepository) GetByID(id int64) (*model.User, error) {
	return r.getOne(`SELECT id, username, created_at FROM users WHERE id = ?`, id)
}

// GetByUsername retrieves a user by its username.
func (r *UserRepository) GetByUsername(username string) (*model.User, error) {
	return r.getOne(`SELECT id, username, created_at FROM users WHERE username = ?`, username)
}

func (r *UserRepository) getOne(query string, arg interface{}) (*model.User, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var user model.User
	err := r.db.Conn().QueryRow(query, arg).Scan(&user.ID, &user.Username, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
