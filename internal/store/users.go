package store

import (
	"context"

	"gorm.io/gorm"

	"pharmacart-backend/internal/models"
)

// UserStore wraps the account table. It stays separate from the record
// Store so the payment subsystem never sees user rows.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return classify(err)
	}
	return nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, classify(err)
	}
	return &u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id uint64) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, classify(err)
	}
	return &u, nil
}

// SaveFCMToken updates just the device token column.
func (s *UserStore) SaveFCMToken(ctx context.Context, id uint64, token string) error {
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("fcm_token", token).Error; err != nil {
		return classify(err)
	}
	return nil
}
