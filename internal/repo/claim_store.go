package repo

import (
	"context"

	"gorm.io/gorm/clause"

	"claimflow/internal/models"
	"claimflow/internal/store"
)

func (s *Store) CreateClaim(ctx context.Context, c *models.Claim) error {
	return mapErr(s.db.WithContext(ctx).Create(c).Error)
}

func (s *Store) GetClaim(ctx context.Context, id string) (*models.Claim, error) {
	var c models.Claim
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

// GetClaimForUpdate — SELECT ... FOR UPDATE; имеет смысл только внутри WithTx.
func (s *Store) GetClaimForUpdate(ctx context.Context, id string) (*models.Claim, error) {
	var c models.Claim
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (s *Store) ListClaims(ctx context.Context, f store.ClaimFilter) ([]models.Claim, error) {
	q := s.db.WithContext(ctx).Order("created_at desc, id asc")
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.CurrentApproverID != "" {
		q = q.Where("current_approver_id = ?", f.CurrentApproverID)
	}
	if f.Unrouted {
		q = q.Where("status = ? AND current_approver_id IS NULL", models.StatusSubmitted)
	}
	claims := make([]models.Claim, 0)
	if err := q.Find(&claims).Error; err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *Store) SaveClaim(ctx context.Context, c *models.Claim) error {
	return saveExisting(ctx, s.db, c)
}
