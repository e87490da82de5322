package repository

import (
	"context"

	"socialfeed/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByIdentity(ctx context.Context, identityID string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateUsername(ctx context.Context, id, username string) error
}

// userRepository implements UserRepository
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	return translate(err, "User", user.ID)
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findBy(ctx, "id = ?", id)
}

func (r *userRepository) FindByIdentity(ctx context.Context, identityID string) (*models.User, error) {
	return r.findBy(ctx, "identity_id = ?", identityID)
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findBy(ctx, "username = ?", username)
}

func (r *userRepository) UpdateUsername(ctx context.Context, id, username string) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("username", username)
	if result.Error != nil {
		return translate(result.Error, "User", id)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

func (r *userRepository) findBy(ctx context.Context, query string, arg string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		return nil, translate(err, "User", arg)
	}
	return &user, nil
}
