package repo

import (
	"context"
	"strings"

	"claimflow/internal/models"
	"claimflow/internal/store"
)

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return mapErr(s.db.WithContext(ctx).Create(u).Error)
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context, f store.UserFilter) ([]models.User, error) {
	q := s.db.WithContext(ctx).Order("created_at asc, id asc")
	if d := strings.TrimSpace(f.Department); d != "" {
		q = q.Where("LOWER(department) = ?", strings.ToLower(d))
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	users := make([]models.User, 0)
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) SaveUser(ctx context.Context, u *models.User) error {
	return saveExisting(ctx, s.db, u)
}
