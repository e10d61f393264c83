// Package store описывает контракт хранилища. Реализации: repo (gorm) и memstore.
package store

import (
	"context"
	"errors"

	"claimflow/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

type UserFilter struct {
	Department string
	Role       models.Role
}

type ClaimFilter struct {
	UserID            string
	Status            models.ClaimStatus
	CurrentApproverID string
	// Unrouted — только submitted без текущего согласующего
	Unrouted bool
}

type Users interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// ListUsers — порядок стабильный: created_at, затем id.
	ListUsers(ctx context.Context, f UserFilter) ([]models.User, error)
	SaveUser(ctx context.Context, u *models.User) error
}

type Claims interface {
	CreateClaim(ctx context.Context, c *models.Claim) error
	GetClaim(ctx context.Context, id string) (*models.Claim, error)
	// GetClaimForUpdate блокирует строку до конца транзакции.
	GetClaimForUpdate(ctx context.Context, id string) (*models.Claim, error)
	ListClaims(ctx context.Context, f ClaimFilter) ([]models.Claim, error)
	SaveClaim(ctx context.Context, c *models.Claim) error
}

type Approvals interface {
	CreateApproval(ctx context.Context, a *models.Approval) error
	GetApproval(ctx context.Context, id string) (*models.Approval, error)
	// ListApprovals — по уровню, затем по времени создания.
	ListApprovals(ctx context.Context, claimID string) ([]models.Approval, error)
	SaveApproval(ctx context.Context, a *models.Approval) error
}

type Store interface {
	Users
	Claims
	Approvals
	// WithTx выполняет fn атомарно; ошибка из fn откатывает все изменения.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
