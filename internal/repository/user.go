package repository

import (
	"context"
	"strings"

	"reviewfeed/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository reads viewer accounts. Accounts are created by the seeder
// or an external identity service, never through the API.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	UpsertByEmail(ctx context.Context, user *models.User) error
}

// Columns refreshed when an account with the same email already exists.
var userUpsertColumns = []string{"full_name", "is_admin", "updated_at"}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a UserRepository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpsertByEmail matches accounts case-insensitively by storing emails lowercased.
func (r *userRepository) UpsertByEmail(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns(userUpsertColumns),
		}).
		Create(user).Error
}
