package repo

import (
	"context"

	"claimflow/internal/models"
)

func (s *Store) CreateApproval(ctx context.Context, a *models.Approval) error {
	return mapErr(s.db.WithContext(ctx).Create(a).Error)
}

func (s *Store) GetApproval(ctx context.Context, id string) (*models.Approval, error) {
	var a models.Approval
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (s *Store) ListApprovals(ctx context.Context, claimID string) ([]models.Approval, error) {
	out := make([]models.Approval, 0)
	err := s.db.WithContext(ctx).
		Where("claim_id = ?", claimID).
		Order("approval_level asc, created_at asc").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) SaveApproval(ctx context.Context, a *models.Approval) error {
	return saveExisting(ctx, s.db, a)
}
