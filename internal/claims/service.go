// Package claims — жизненный цикл заявок и записей согласования.
// Каждая мутация выполняется в одной транзакции хранилища со строковой
// блокировкой заявки.
package claims

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"claimflow/internal/approval"
	"claimflow/internal/lifecycle"
	"claimflow/internal/models"
	"claimflow/internal/store"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrForbidden             = errors.New("forbidden")
	ErrPendingApprovalExists = errors.New("claim already has a pending approval")
	ErrReasonRequired        = errors.New("rejection reason is required")
)

type Service struct {
	store      store.Store
	policy     *approval.Policy
	fsm        *lifecycle.Machine
	log        logrus.FieldLogger
	now        func() time.Time
	newID      func() string
	multiLevel bool
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithIDs(next func() string) Option    { return func(s *Service) { s.newID = next } }

// WithMultiLevel: одобрение уровня продвигает заявку по цепочке,
// пока в ней остаются разрешённые уровни.
func WithMultiLevel(on bool) Option { return func(s *Service) { s.multiLevel = on } }

func NewService(st store.Store, policy *approval.Policy, log logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		store:  st,
		policy: policy,
		fsm:    lifecycle.New(),
		log:    log,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type CreateInput struct {
	UserID      string
	Type        models.ClaimType
	Title       string
	TotalAmount decimal.Decimal
	Details     json.RawMessage
	Status      models.ClaimStatus
}

type Filter struct {
	UserID string
	Status models.ClaimStatus
}

// Patch — частичное обновление. nil означает "не менять".
type Patch struct {
	Status         *models.ClaimStatus
	ApprovedAmount *decimal.Decimal
	Notes          *string
	Title          *string
	TotalAmount    *decimal.Decimal
	Type           *models.ClaimType
	Details        json.RawMessage
}

func (p Patch) editsFields() bool {
	return p.Title != nil || p.TotalAmount != nil || p.Type != nil || len(p.Details) > 0
}

func (s *Service) clock() time.Time { return s.now().UTC() }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func forbidden(err error) error {
	if errors.Is(err, lifecycle.ErrActorNotAllowed) {
		return fmt.Errorf("%w: %w", ErrForbidden, err)
	}
	return err
}

func checkAmount(field string, a decimal.Decimal) error {
	if a.IsNegative() {
		return invalid("%s: must not be negative", field)
	}
	if !a.Equal(a.Round(2)) {
		return invalid("%s: at most two decimal places", field)
	}
	return nil
}

// checkApproved — одобренная сумма лежит в 0..total и имеет не больше двух знаков.
func checkApproved(a, total decimal.Decimal) error {
	if a.IsNegative() || a.GreaterThan(total) {
		return invalid("approvedAmount: must be between 0 and %s", total.StringFixed(2))
	}
	return checkAmount("approvedAmount", a)
}

func encodeDetails(t models.ClaimType, raw json.RawMessage) ([]byte, error) {
	d, err := models.ParseDetails(t, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	enc, err := models.EncodeDetails(d)
	if err != nil {
		return nil, err
	}
	return enc, nil
}

func (s *Service) Create(ctx context.Context, actor models.Principal, in CreateInput) (*models.Claim, error) {
	owner := in.UserID
	if owner == "" {
		owner = actor.UserID
	}
	if owner != actor.UserID && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins may file claims for other users", ErrForbidden)
	}
	status := in.Status
	if status == "" {
		status = models.StatusDraft
	}
	if !lifecycle.Initial(status) {
		return nil, invalid("status: a new claim must be draft or submitted, got %q", status)
	}
	if !in.Type.Valid() {
		return nil, invalid("claimType: unknown type %q", in.Type)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title: required")
	}
	if err := checkAmount("totalAmount", in.TotalAmount); err != nil {
		return nil, err
	}
	details, err := encodeDetails(in.Type, in.Details)
	if err != nil {
		return nil, err
	}

	var out *models.Claim
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		user, err := tx.GetUser(ctx, owner)
		if err != nil {
			return fmt.Errorf("load owner %s: %w", owner, err)
		}
		now := s.clock()
		c := &models.Claim{
			ID:          s.newID(),
			UserID:      user.ID,
			Type:        in.Type,
			Status:      models.StatusDraft,
			Title:       title,
			TotalAmount: in.TotalAmount,
			Details:     details,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.CreateClaim(ctx, c); err != nil {
			return fmt.Errorf("create claim: %w", err)
		}
		if status == models.StatusSubmitted {
			if err := s.submit(ctx, tx, c, user, now); err != nil {
				return err
			}
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"claim_id": out.ID, "user_id": out.UserID, "status": out.Status}).Info("claim created")
	return out, nil
}

func visible(actor models.Principal, c *models.Claim) bool {
	if actor.CanSeeAll() || actor.UserID == c.UserID {
		return true
	}
	return c.CurrentApproverID != nil && *c.CurrentApproverID == actor.UserID
}

func (s *Service) load(ctx context.Context, st store.Store, actor models.Principal, id string) (*models.Claim, error) {
	c, err := st.GetClaim(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", id, err)
	}
	if !visible(actor, c) {
		return nil, fmt.Errorf("%w: claim %s belongs to another user", ErrForbidden, id)
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, actor models.Principal, id string) (*models.Claim, error) {
	return s.load(ctx, s.store, actor, id)
}

// List: сотрудник всегда видит только свои заявки, фильтр по userId игнорируется.
func (s *Service) List(ctx context.Context, actor models.Principal, f Filter) ([]models.Claim, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalid("status: unknown status %q", f.Status)
	}
	if !actor.CanSeeAll() {
		f.UserID = actor.UserID
	}
	return s.store.ListClaims(ctx, store.ClaimFilter{UserID: f.UserID, Status: f.Status})
}

// ListAwaitingApprover — submitted-заявки, где approverID текущий согласующий.
func (s *Service) ListAwaitingApprover(ctx context.Context, actor models.Principal, approverID string) ([]models.Claim, error) {
	if approverID == "" {
		approverID = actor.UserID
	}
	if approverID != actor.UserID && !actor.CanSeeAll() {
		return nil, fmt.Errorf("%w: cannot list another approver's queue", ErrForbidden)
	}
	return s.store.ListClaims(ctx, store.ClaimFilter{
		Status:            models.StatusSubmitted,
		CurrentApproverID: approverID,
	})
}

// ListUnrouted — отправленные заявки, для которых не нашлось согласующего.
func (s *Service) ListUnrouted(ctx context.Context, actor models.Principal) ([]models.Claim, error) {
	if actor.Role != models.RoleFinance && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: finance or admin only", ErrForbidden)
	}
	return s.store.ListClaims(ctx, store.ClaimFilter{Unrouted: true})
}

func (s *Service) Update(ctx context.Context, actor models.Principal, id string, p Patch) (*models.Claim, error) {
	if p.Status != nil && !p.Status.Valid() {
		return nil, invalid("status: unknown status %q", *p.Status)
	}
	var (
		out *models.Claim
		tr  lifecycle.Transition
	)
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		c, err := tx.GetClaimForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("claim %s: %w", id, err)
		}
		to := c.Status
		if p.Status != nil {
			to = *p.Status
		}
		tr, err = s.fsm.Authorize(actor, c, to)
		if err != nil {
			return forbidden(err)
		}
		if p.editsFields() && c.Status != models.StatusDraft {
			return fmt.Errorf("%w: claim %s is %s, fields are editable only in draft", lifecycle.ErrTransitionNotAllowed, c.ID, c.Status)
		}
		if p.ApprovedAmount != nil && tr.Effect != lifecycle.EffectApprove {
			return invalid("approvedAmount: only accepted when approving")
		}
		if p.Notes != nil && tr.Effect != lifecycle.EffectApprove && tr.Effect != lifecycle.EffectReject {
			return invalid("notes: only accepted when approving or rejecting")
		}

		now := s.clock()
		switch tr.Effect {
		case lifecycle.EffectEdit:
			if err := s.edit(c, p); err != nil {
				return err
			}
			c.UpdatedAt = now
			if err := tx.SaveClaim(ctx, c); err != nil {
				return fmt.Errorf("save claim: %w", err)
			}
		case lifecycle.EffectSubmit:
			if err := s.edit(c, p); err != nil {
				return err
			}
			owner, err := tx.GetUser(ctx, c.UserID)
			if err != nil {
				return fmt.Errorf("load owner %s: %w", c.UserID, err)
			}
			if err := s.submit(ctx, tx, c, owner, now); err != nil {
				return err
			}
		case lifecycle.EffectApprove:
			// при multi-level одобрение идёт по той же цепочке, что и DecideApproval
			advanced, err := s.advancePending(ctx, tx, c, Decision{
				Status:         models.ApprovalApproved,
				Notes:          p.Notes,
				ApprovedAmount: p.ApprovedAmount,
			}, now)
			if err != nil {
				return err
			}
			if advanced {
				break
			}
			if err := s.approve(ctx, tx, c, p.ApprovedAmount, p.Notes, now); err != nil {
				return err
			}
		case lifecycle.EffectReject:
			if err := s.reject(ctx, tx, c, p.Notes, now); err != nil {
				return err
			}
		case lifecycle.EffectProcess:
			c.Status = models.StatusProcessing
			c.UpdatedAt = now
			if err := tx.SaveClaim(ctx, c); err != nil {
				return fmt.Errorf("save claim: %w", err)
			}
		case lifecycle.EffectPay:
			c.Status = models.StatusPaid
			c.PaidAt = &now
			c.UpdatedAt = now
			if err := tx.SaveClaim(ctx, c); err != nil {
				return fmt.Errorf("save claim: %w", err)
			}
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"claim_id": out.ID,
		"actor":    actor.UserID,
		"effect":   tr.Effect.String(),
		"status":   out.Status,
	}).Info("claim updated")
	return out, nil
}

// edit применяет изменения полей черновика. Детали перепроверяются,
// если сменился тип или пришли новые детали.
func (s *Service) edit(c *models.Claim, p Patch) error {
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		if t == "" {
			return invalid("title: required")
		}
		c.Title = t
	}
	if p.TotalAmount != nil {
		if err := checkAmount("totalAmount", *p.TotalAmount); err != nil {
			return err
		}
		c.TotalAmount = *p.TotalAmount
	}
	if p.Type == nil && len(p.Details) == 0 {
		return nil
	}
	typ := c.Type
	if p.Type != nil {
		if !p.Type.Valid() {
			return invalid("claimType: unknown type %q", *p.Type)
		}
		typ = *p.Type
	}
	raw := json.RawMessage(c.Details)
	if len(p.Details) > 0 {
		raw = p.Details
	}
	enc, err := encodeDetails(typ, raw)
	if err != nil {
		return err
	}
	c.Type = typ
	c.Details = enc
	return nil
}

// Duplicate копирует отклонённую заявку в новый черновик того же владельца.
func (s *Service) Duplicate(ctx context.Context, actor models.Principal, id string) (*models.Claim, error) {
	var out *models.Claim
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		src, err := tx.GetClaim(ctx, id)
		if err != nil {
			return fmt.Errorf("claim %s: %w", id, err)
		}
		if !lifecycle.OwnerOrAdmin(actor, src) {
			return fmt.Errorf("%w: only the owner may duplicate claim %s", ErrForbidden, id)
		}
		if src.Status != models.StatusRejected {
			return fmt.Errorf("%w: only rejected claims can be duplicated, claim %s is %s", lifecycle.ErrTransitionNotAllowed, id, src.Status)
		}
		now := s.clock()
		c := &models.Claim{
			ID:          s.newID(),
			UserID:      src.UserID,
			Type:        src.Type,
			Status:      models.StatusDraft,
			Title:       src.Title,
			TotalAmount: src.TotalAmount,
			Details:     append([]byte(nil), src.Details...),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.CreateClaim(ctx, c); err != nil {
			return fmt.Errorf("create claim: %w", err)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"claim_id": out.ID, "source_id": id}).Info("claim duplicated")
	return out, nil
}

// ApprovalChain — полная цепочка для суммы заявки, включая уровни без согласующих.
func (s *Service) ApprovalChain(ctx context.Context, actor models.Principal, id string) (approval.Chain, error) {
	c, err := s.load(ctx, s.store, actor, id)
	if err != nil {
		return approval.Chain{}, err
	}
	owner, err := s.store.GetUser(ctx, c.UserID)
	if err != nil {
		return approval.Chain{}, fmt.Errorf("load owner %s: %w", c.UserID, err)
	}
	return s.policy.Chain(ctx, s.store, owner.Department, owner.BusinessUnit, c.TotalAmount)
}
