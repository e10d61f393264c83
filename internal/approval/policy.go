// Package approval решает, кто согласует заявку: по линии подчинения
// или по таблице порогов суммы и ролям в отделе.
package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"claimflow/internal/models"
	"claimflow/internal/store"
)

// Directory — то, что политике нужно от оргструктуры.
type Directory interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, f store.UserFilter) ([]models.User, error)
}

type Config struct {
	Brackets            Brackets
	FinanceDepartment   string
	ExecutiveDepartment string
	DirectorBand        string
}

func DefaultConfig() Config {
	return Config{
		Brackets:            DefaultBrackets(),
		FinanceDepartment:   "Finance",
		ExecutiveDepartment: "Administration",
		DirectorBand:        "B4",
	}
}

type Policy struct{ cfg Config }

func New(cfg Config) (*Policy, error) {
	if err := cfg.Brackets.Validate(); err != nil {
		return nil, err
	}
	if _, ok := models.BandRank(cfg.DirectorBand); !ok {
		return nil, fmt.Errorf("approval: invalid director band %q", cfg.DirectorBand)
	}
	if strings.TrimSpace(cfg.FinanceDepartment) == "" || strings.TrimSpace(cfg.ExecutiveDepartment) == "" {
		return nil, errors.New("approval: finance and executive departments must be set")
	}
	return &Policy{cfg: cfg}, nil
}

func (p *Policy) Brackets() Brackets { return p.cfg.Brackets }

// Qualifies — подходит ли роль/бэнд пользователя для уровня (без учёта отдела).
func (p *Policy) Qualifies(u models.User, level models.ApprovalLevel) bool {
	switch level {
	case models.LevelManager:
		return u.Role == models.RoleManager
	case models.LevelFinance:
		return u.Role == models.RoleFinance
	case models.LevelDirector:
		return u.Role == models.RoleManager && models.BandAtLeast(u.Band, p.cfg.DirectorBand)
	case models.LevelCXO:
		return u.Role == models.RoleAdmin
	}
	return false
}

// DepartmentFor — отдел, в котором ищется согласующий уровня.
// finance и cxo не зависят от отдела заявителя.
func (p *Policy) DepartmentFor(level models.ApprovalLevel, submitterDept string) string {
	switch level {
	case models.LevelFinance:
		return p.cfg.FinanceDepartment
	case models.LevelCXO:
		return p.cfg.ExecutiveDepartment
	}
	return submitterDept
}

// SelectApprovers — чистая фильтрация: отдел совпадает и роль/бэнд подходят.
// Порядок сохраняется.
func (p *Policy) SelectApprovers(users []models.User, department string, level models.ApprovalLevel) []models.User {
	out := make([]models.User, 0)
	for _, u := range users {
		if models.SameDepartment(u.Department, department) && p.Qualifies(u, level) {
			out = append(out, u)
		}
	}
	return out
}

// ApproversFor — все подходящие пользователи отдела для уровня, в порядке хранилища.
func (p *Policy) ApproversFor(ctx context.Context, dir Directory, department string, level models.ApprovalLevel) ([]models.User, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("approval: unknown level %d", level)
	}
	users, err := dir.ListUsers(ctx, store.UserFilter{Department: department})
	if err != nil {
		return nil, fmt.Errorf("list users of %q: %w", department, err)
	}
	return p.SelectApprovers(users, department, level), nil
}

// Route — результат поиска первого согласующего. Approver == nil значит
// "никого не нашли": заявка останется без маршрута.
type Route struct {
	Approver   *models.User
	Level      models.ApprovalLevel
	ViaManager bool
}

func (r Route) Routed() bool { return r.Approver != nil }

// FirstApprover: прямой руководитель всегда важнее порогов суммы.
// Без руководителя — первый подходящий пользователь отдела заявителя
// для уровня корзины суммы (сам заявитель исключается).
func (p *Policy) FirstApprover(ctx context.Context, dir Directory, submitter models.User, amount decimal.Decimal) (Route, error) {
	if submitter.ManagerID != nil && *submitter.ManagerID != "" && *submitter.ManagerID != submitter.ID {
		mgr, err := dir.GetUser(ctx, *submitter.ManagerID)
		switch {
		case err == nil:
			return Route{Approver: mgr, Level: models.LevelManager, ViaManager: true}, nil
		case !errors.Is(err, store.ErrNotFound):
			return Route{}, fmt.Errorf("load manager %s: %w", *submitter.ManagerID, err)
		}
		// руководитель не найден — падаем на пороги
	}

	level := p.cfg.Brackets.LevelFor(amount)
	candidates, err := p.ApproversFor(ctx, dir, submitter.Department, level)
	if err != nil {
		return Route{}, err
	}
	for i := range candidates {
		if candidates[i].ID != submitter.ID {
			return Route{Approver: &candidates[i], Level: level}, nil
		}
	}
	return Route{Level: level}, nil
}
