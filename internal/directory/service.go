// Package directory — оргструктура: регистрация, вход, просмотр и правка
// пользователей. Пользователи никогда не удаляются.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"claimflow/internal/auth"
	"claimflow/internal/models"
	"claimflow/internal/store"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrManagerCycle = errors.New("manager assignment would create a reporting cycle")
)

type RegisterInput struct {
	Email        string  `json:"email" validate:"required,email,max=255"`
	Name         string  `json:"name" validate:"required,max=255"`
	Password     string  `json:"password" validate:"required,min=8,max=72"`
	Department   string  `json:"department" validate:"required,max=128"`
	BusinessUnit string  `json:"businessUnit" validate:"max=128"`
	Band         string  `json:"band" validate:"omitempty,band"`
	ManagerID    *string `json:"managerId"`
}

type Filter struct {
	Department string
	Role       models.Role
}

// UserPatch — частичная правка. ClearManager снимает руководителя.
type UserPatch struct {
	Name         *string
	Department   *string
	BusinessUnit *string
	Role         *models.Role
	Band         *string
	ManagerID    *string
	ClearManager bool
}

type Service struct {
	store       store.Store
	log         logrus.FieldLogger
	now         func() time.Time
	adminEmails map[string]struct{}
}

// NewService: регистрация с адресом из adminEmails сразу получает роль admin.
func NewService(st store.Store, log logrus.FieldLogger, adminEmails []string) *Service {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = normEmail(e); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &Service{store: st, log: log, now: time.Now, adminEmails: admins}
}

func normEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = normEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Department = strings.TrimSpace(in.Department)
	in.BusinessUnit = strings.TrimSpace(in.BusinessUnit)
	in.Band = strings.ToUpper(strings.TrimSpace(in.Band))
	if err := models.ValidateStruct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := models.RoleEmployee
	if _, ok := s.adminEmails[in.Email]; ok {
		role = models.RoleAdmin
	}
	now := s.now().UTC()
	u := &models.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		Department:   in.Department,
		BusinessUnit: in.BusinessUnit,
		Role:         role,
		Band:         in.Band,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		if in.ManagerID != nil && *in.ManagerID != "" {
			if _, err := tx.GetUser(ctx, *in.ManagerID); err != nil {
				return fmt.Errorf("%w: managerId: %v", ErrValidation, err)
			}
			id := *in.ManagerID
			u.ManagerID = &id
		}
		if err := tx.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("create user %s: %w", u.Email, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": u.ID, "department": u.Department, "role": u.Role}).Info("user registered")
	return u, nil
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.store.GetUserByEmail(ctx, normEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	return u, nil
}

// Principal — актуальная роль пользователя для сессии. Удалённый
// (или никогда не существовавший) пользователь — ErrInvalidToken.
func (s *Service) Principal(ctx context.Context, id string) (models.Principal, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Principal{}, fmt.Errorf("%w: user %s no longer exists", auth.ErrInvalidToken, id)
		}
		return models.Principal{}, fmt.Errorf("user %s: %w", id, err)
	}
	return models.Principal{UserID: u.ID, Role: u.Role}, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]models.User, error) {
	if f.Role != "" && !f.Role.Valid() {
		return nil, fmt.Errorf("%w: role: unknown role %q", ErrValidation, f.Role)
	}
	return s.store.ListUsers(ctx, store.UserFilter{Department: f.Department, Role: f.Role})
}

// Update: админ меняет что угодно, пользователь — только своё имя.
func (s *Service) Update(ctx context.Context, actor models.Principal, id string, p UserPatch) (*models.User, error) {
	if !actor.IsAdmin() {
		onlyName := p.Department == nil && p.BusinessUnit == nil && p.Role == nil &&
			p.Band == nil && p.ManagerID == nil && !p.ClearManager
		if actor.UserID != id || !onlyName {
			return nil, fmt.Errorf("%w: only admins may change organisational attributes", ErrForbidden)
		}
	}

	var out *models.User
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		u, err := tx.GetUser(ctx, id)
		if err != nil {
			return fmt.Errorf("user %s: %w", id, err)
		}
		if err := s.apply(ctx, tx, u, p); err != nil {
			return err
		}
		u.UpdatedAt = s.now().UTC()
		if err := tx.SaveUser(ctx, u); err != nil {
			return fmt.Errorf("save user %s: %w", id, err)
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": out.ID, "actor": actor.UserID}).Info("user updated")
	return out, nil
}

func (s *Service) apply(ctx context.Context, tx store.Store, u *models.User, p UserPatch) error {
	if p.Name != nil {
		n := strings.TrimSpace(*p.Name)
		if n == "" {
			return fmt.Errorf("%w: name: required", ErrValidation)
		}
		u.Name = n
	}
	if p.Department != nil {
		d := strings.TrimSpace(*p.Department)
		if d == "" {
			return fmt.Errorf("%w: department: required", ErrValidation)
		}
		u.Department = d
	}
	if p.BusinessUnit != nil {
		u.BusinessUnit = strings.TrimSpace(*p.BusinessUnit)
	}
	if p.Role != nil {
		if !p.Role.Valid() {
			return fmt.Errorf("%w: role: unknown role %q", ErrValidation, *p.Role)
		}
		u.Role = *p.Role
	}
	if p.Band != nil {
		b := strings.ToUpper(strings.TrimSpace(*p.Band))
		if _, ok := models.BandRank(b); b != "" && !ok {
			return fmt.Errorf("%w: band: %q is not B<n>", ErrValidation, *p.Band)
		}
		u.Band = b
	}
	switch {
	case p.ClearManager:
		u.ManagerID = nil
	case p.ManagerID != nil:
		mid := *p.ManagerID
		if mid == u.ID {
			return fmt.Errorf("%w: a user cannot manage themselves", ErrManagerCycle)
		}
		if err := checkNoCycle(ctx, tx, u.ID, mid); err != nil {
			return err
		}
		u.ManagerID = &mid
	}
	return nil
}

// checkNoCycle поднимается по цепочке руководителей от managerID;
// если встречается userID, назначение замкнёт цикл.
func checkNoCycle(ctx context.Context, tx store.Store, userID, managerID string) error {
	seen := map[string]bool{}
	cur := managerID
	for cur != "" {
		if cur == userID {
			return fmt.Errorf("%w: %s already reports to %s", ErrManagerCycle, managerID, userID)
		}
		if seen[cur] {
			// цикл выше по цепочке, к userID не относится
			return nil
		}
		seen[cur] = true
		m, err := tx.GetUser(ctx, cur)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) && cur == managerID {
				return fmt.Errorf("%w: managerId: unknown user %s", ErrValidation, managerID)
			}
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}
		if m.ManagerID == nil {
			return nil
		}
		cur = *m.ManagerID
	}
	return nil
}
