package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"marketplace-chat/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository reads public profile data from the marketplace users table.
type UserRepository interface {
	GetPublicProfile(ctx context.Context, userID int) (models.UserPublic, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetPublicProfile fetches the public fields of a user.
func (r *UserRepo) GetPublicProfile(ctx context.Context, userID int) (models.UserPublic, error) {
	var user models.UserPublic
	err := r.db.GetContext(ctx, &user,
		`SELECT id, username, first_name, last_name, avatar_url, contact_email FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserPublic{}, ErrUserNotFound
	}
	return user, err
}
