// Package memstore — хранилище в памяти для режима без БД (database.driver = "").
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"claimflow/internal/models"
	"claimflow/internal/store"
)

type dataset struct {
	users     map[string]models.User
	userSeq   []string
	claims    map[string]models.Claim
	claimSeq  []string
	approvals map[string]models.Approval
	apprSeq   []string
}

func newDataset() *dataset {
	return &dataset{
		users:     make(map[string]models.User),
		claims:    make(map[string]models.Claim),
		approvals: make(map[string]models.Approval),
	}
}

// clone копирует карты; структуры хранятся по значению, поля-указатели
// никогда не меняются на месте, поэтому поверхностной копии достаточно.
func (d *dataset) clone() *dataset {
	c := &dataset{
		users:     make(map[string]models.User, len(d.users)),
		userSeq:   append([]string(nil), d.userSeq...),
		claims:    make(map[string]models.Claim, len(d.claims)),
		claimSeq:  append([]string(nil), d.claimSeq...),
		approvals: make(map[string]models.Approval, len(d.approvals)),
		apprSeq:   append([]string(nil), d.apprSeq...),
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.claims {
		c.claims[k] = v
	}
	for k, v := range d.approvals {
		c.approvals[k] = v
	}
	return c
}

// Store — потокобезопасное хранилище. Транзакция держит мьютекс целиком,
// так что конкурентные решения по одной заявке выполняются по очереди.
type Store struct {
	mu   sync.Mutex
	data *dataset
}

var _ store.Store = (*Store)(nil)

func New() *Store { return &Store{data: newDataset()} }

func (s *Store) WithTx(_ context.Context, fn func(tx store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.data.clone()
	if err := fn(&txView{data: s.data}); err != nil {
		s.data = snap
		return err
	}
	return nil
}

func (s *Store) view(fn func(v *txView) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&txView{data: s.data})
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return s.view(func(v *txView) error { return v.CreateUser(ctx, u) })
}

func (s *Store) GetUser(ctx context.Context, id string) (u *models.User, err error) {
	err = s.view(func(v *txView) error { u, err = v.GetUser(ctx, id); return err })
	return u, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (u *models.User, err error) {
	err = s.view(func(v *txView) error { u, err = v.GetUserByEmail(ctx, email); return err })
	return u, err
}

func (s *Store) ListUsers(ctx context.Context, f store.UserFilter) (out []models.User, err error) {
	err = s.view(func(v *txView) error { out, err = v.ListUsers(ctx, f); return err })
	return out, err
}

func (s *Store) SaveUser(ctx context.Context, u *models.User) error {
	return s.view(func(v *txView) error { return v.SaveUser(ctx, u) })
}

func (s *Store) CreateClaim(ctx context.Context, c *models.Claim) error {
	return s.view(func(v *txView) error { return v.CreateClaim(ctx, c) })
}

func (s *Store) GetClaim(ctx context.Context, id string) (c *models.Claim, err error) {
	err = s.view(func(v *txView) error { c, err = v.GetClaim(ctx, id); return err })
	return c, err
}

func (s *Store) GetClaimForUpdate(ctx context.Context, id string) (*models.Claim, error) {
	return s.GetClaim(ctx, id)
}

func (s *Store) ListClaims(ctx context.Context, f store.ClaimFilter) (out []models.Claim, err error) {
	err = s.view(func(v *txView) error { out, err = v.ListClaims(ctx, f); return err })
	return out, err
}

func (s *Store) SaveClaim(ctx context.Context, c *models.Claim) error {
	return s.view(func(v *txView) error { return v.SaveClaim(ctx, c) })
}

func (s *Store) CreateApproval(ctx context.Context, a *models.Approval) error {
	return s.view(func(v *txView) error { return v.CreateApproval(ctx, a) })
}

func (s *Store) GetApproval(ctx context.Context, id string) (a *models.Approval, err error) {
	err = s.view(func(v *txView) error { a, err = v.GetApproval(ctx, id); return err })
	return a, err
}

func (s *Store) ListApprovals(ctx context.Context, claimID string) (out []models.Approval, err error) {
	err = s.view(func(v *txView) error { out, err = v.ListApprovals(ctx, claimID); return err })
	return out, err
}

func (s *Store) SaveApproval(ctx context.Context, a *models.Approval) error {
	return s.view(func(v *txView) error { return v.SaveApproval(ctx, a) })
}

// txView работает с данными без блокировок: мьютекс уже взят снаружи.
type txView struct{ data *dataset }

func (v *txView) WithTx(_ context.Context, fn func(tx store.Store) error) error { return fn(v) }

func (v *txView) CreateUser(_ context.Context, u *models.User) error {
	if _, ok := v.data.users[u.ID]; ok {
		return store.ErrDuplicate
	}
	for _, existing := range v.data.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrDuplicate
		}
	}
	v.data.users[u.ID] = *u
	v.data.userSeq = append(v.data.userSeq, u.ID)
	return nil
}

func (v *txView) GetUser(_ context.Context, id string) (*models.User, error) {
	u, ok := v.data.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (v *txView) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, id := range v.data.userSeq {
		u := v.data.users[id]
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (v *txView) ListUsers(_ context.Context, f store.UserFilter) ([]models.User, error) {
	out := make([]models.User, 0)
	for _, id := range v.data.userSeq {
		u := v.data.users[id]
		if f.Department != "" && !models.SameDepartment(u.Department, f.Department) {
			continue
		}
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (v *txView) SaveUser(_ context.Context, u *models.User) error {
	if _, ok := v.data.users[u.ID]; !ok {
		return store.ErrNotFound
	}
	for id, existing := range v.data.users {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return store.ErrDuplicate
		}
	}
	v.data.users[u.ID] = *u
	return nil
}

func (v *txView) CreateClaim(_ context.Context, c *models.Claim) error {
	if _, ok := v.data.claims[c.ID]; ok {
		return store.ErrDuplicate
	}
	v.data.claims[c.ID] = *c
	v.data.claimSeq = append(v.data.claimSeq, c.ID)
	return nil
}

func (v *txView) GetClaim(_ context.Context, id string) (*models.Claim, error) {
	c, ok := v.data.claims[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (v *txView) GetClaimForUpdate(ctx context.Context, id string) (*models.Claim, error) {
	return v.GetClaim(ctx, id)
}

func (v *txView) ListClaims(_ context.Context, f store.ClaimFilter) ([]models.Claim, error) {
	out := make([]models.Claim, 0)
	for _, id := range v.data.claimSeq {
		c := v.data.claims[id]
		if f.UserID != "" && c.UserID != f.UserID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.CurrentApproverID != "" && (c.CurrentApproverID == nil || *c.CurrentApproverID != f.CurrentApproverID) {
			continue
		}
		if f.Unrouted && (c.Status != models.StatusSubmitted || c.CurrentApproverID != nil) {
			continue
		}
		out = append(out, c)
	}
	// новые сверху, как в repo
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (v *txView) SaveClaim(_ context.Context, c *models.Claim) error {
	if _, ok := v.data.claims[c.ID]; !ok {
		return store.ErrNotFound
	}
	v.data.claims[c.ID] = *c
	return nil
}

func (v *txView) CreateApproval(_ context.Context, a *models.Approval) error {
	if _, ok := v.data.approvals[a.ID]; ok {
		return store.ErrDuplicate
	}
	v.data.approvals[a.ID] = *a
	v.data.apprSeq = append(v.data.apprSeq, a.ID)
	return nil
}

func (v *txView) GetApproval(_ context.Context, id string) (*models.Approval, error) {
	a, ok := v.data.approvals[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (v *txView) ListApprovals(_ context.Context, claimID string) ([]models.Approval, error) {
	out := make([]models.Approval, 0)
	for _, id := range v.data.apprSeq {
		if a := v.data.approvals[id]; a.ClaimID == claimID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (v *txView) SaveApproval(_ context.Context, a *models.Approval) error {
	if _, ok := v.data.approvals[a.ID]; !ok {
		return store.ErrNotFound
	}
	v.data.approvals[a.ID] = *a
	return nil
}
