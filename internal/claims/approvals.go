package claims

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"claimflow/internal/approval"
	"claimflow/internal/lifecycle"
	"claimflow/internal/models"
	"claimflow/internal/store"
)

// ApprovalInput — ручная маршрутизация заявки без согласующего.
type ApprovalInput struct {
	ClaimID    string
	ApproverID string
	Level      models.ApprovalLevel
	Notes      *string
}

type Decision struct {
	Status         models.ApprovalStatus
	Notes          *string
	ApprovedAmount *decimal.Decimal
}

func (s *Service) ListApprovals(ctx context.Context, actor models.Principal, claimID string) ([]models.Approval, error) {
	if _, err := s.load(ctx, s.store, actor, claimID); err != nil {
		return nil, err
	}
	return s.store.ListApprovals(ctx, claimID)
}

func hasPending(list []models.Approval) bool {
	for _, a := range list {
		if a.Status == models.ApprovalPending {
			return true
		}
	}
	return false
}

// CreateApproval назначает согласующего отправленной заявке. Доступно финансам
// и админам; вторая pending-запись на заявку запрещена.
func (s *Service) CreateApproval(ctx context.Context, actor models.Principal, in ApprovalInput) (*models.Approval, error) {
	if actor.Role != models.RoleFinance && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only finance or admin may route claims", ErrForbidden)
	}
	if in.Level == 0 {
		in.Level = models.LevelManager
	}
	if !in.Level.Valid() {
		return nil, invalid("approvalLevel: must be 1..4")
	}
	if in.ClaimID == "" || in.ApproverID == "" {
		return nil, invalid("claimId and approverId are required")
	}

	var out *models.Approval
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		c, err := tx.GetClaimForUpdate(ctx, in.ClaimID)
		if err != nil {
			return fmt.Errorf("claim %s: %w", in.ClaimID, err)
		}
		if c.Status != models.StatusSubmitted {
			return fmt.Errorf("%w: claim %s is %s, only submitted claims can be routed", lifecycle.ErrTransitionNotAllowed, c.ID, c.Status)
		}
		list, err := tx.ListApprovals(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("list approvals: %w", err)
		}
		if hasPending(list) {
			return fmt.Errorf("%w: claim %s", ErrPendingApprovalExists, c.ID)
		}
		approver, err := tx.GetUser(ctx, in.ApproverID)
		if err != nil {
			return invalid("approverId: %v", err)
		}
		if approver.ID == c.UserID {
			return invalid("approverId: the owner cannot approve their own claim")
		}

		now := s.clock()
		a := &models.Approval{
			ID:         s.newID(),
			ClaimID:    c.ID,
			ApproverID: approver.ID,
			Level:      in.Level,
			Status:     models.ApprovalPending,
			Notes:      cleanNotes(in.Notes),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.CreateApproval(ctx, a); err != nil {
			return fmt.Errorf("create approval: %w", err)
		}
		id := approver.ID
		c.CurrentApproverID = &id
		c.UpdatedAt = now
		if err := tx.SaveClaim(ctx, c); err != nil {
			return fmt.Errorf("save claim: %w", err)
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"claim_id":    out.ClaimID,
		"approver_id": out.ApproverID,
		"level":       out.Level.String(),
		"actor":       actor.UserID,
	}).Info("claim routed manually")
	return out, nil
}

// DecideApproval — решение согласующего по своей записи. Отказ отклоняет
// заявку; одобрение либо передаёт её следующему уровню цепочки
// (multi-level), либо одобряет заявку целиком.
func (s *Service) DecideApproval(ctx context.Context, actor models.Principal, approvalID string, d Decision) (*models.Approval, error) {
	var to models.ClaimStatus
	switch d.Status {
	case models.ApprovalApproved:
		to = models.StatusApproved
	case models.ApprovalRejected:
		to = models.StatusRejected
	default:
		return nil, invalid("status: must be approved or rejected")
	}

	var out *models.Approval
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		a, err := tx.GetApproval(ctx, approvalID)
		if err != nil {
			return fmt.Errorf("approval %s: %w", approvalID, err)
		}
		c, err := tx.GetClaimForUpdate(ctx, a.ClaimID)
		if err != nil {
			return fmt.Errorf("claim %s: %w", a.ClaimID, err)
		}
		// перечитываем под блокировкой заявки
		if a, err = tx.GetApproval(ctx, approvalID); err != nil {
			return fmt.Errorf("approval %s: %w", approvalID, err)
		}
		if a.ApproverID != actor.UserID && !actor.IsAdmin() {
			return fmt.Errorf("%w: approval %s is assigned to another user", ErrForbidden, a.ID)
		}
		if a.Status != models.ApprovalPending {
			return fmt.Errorf("%w: approval %s is already %s", lifecycle.ErrTransitionNotAllowed, a.ID, a.Status)
		}
		if _, err := s.fsm.Lookup(c.Status, to); err != nil {
			return err
		}

		now := s.clock()
		if to == models.StatusRejected {
			if err := s.reject(ctx, tx, c, d.Notes, now); err != nil {
				return err
			}
		} else {
			advanced, err := s.advance(ctx, tx, c, a, d, now)
			if err != nil {
				return err
			}
			if !advanced {
				if err := s.approve(ctx, tx, c, d.ApprovedAmount, d.Notes, now); err != nil {
					return err
				}
			}
		}
		out, err = tx.GetApproval(ctx, approvalID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"approval_id": out.ID,
		"claim_id":    out.ClaimID,
		"status":      out.Status,
		"actor":       actor.UserID,
	}).Info("approval decided")
	return out, nil
}

// advance передаёт заявку следующему уровню цепочки. false — следующего
// уровня нет (или выключен multi-level), заявку нужно одобрить целиком.
func (s *Service) advance(ctx context.Context, tx store.Store, c *models.Claim, a *models.Approval, d Decision, now time.Time) (bool, error) {
	if !s.multiLevel {
		return false, nil
	}
	if d.ApprovedAmount != nil {
		if err := checkApproved(*d.ApprovedAmount, c.TotalAmount); err != nil {
			return false, err
		}
	}
	owner, err := tx.GetUser(ctx, c.UserID)
	if err != nil {
		return false, fmt.Errorf("load owner %s: %w", c.UserID, err)
	}
	chain, err := s.policy.Chain(ctx, tx, owner.Department, owner.BusinessUnit, c.TotalAmount)
	if err != nil {
		return false, fmt.Errorf("resolve chain for claim %s: %w", c.ID, err)
	}
	next, ok := nextStep(chain, a.Level, owner.ID, a.ApproverID)
	if !ok {
		return false, nil
	}

	a.Status = models.ApprovalApproved
	if n := cleanNotes(d.Notes); n != nil {
		a.Notes = n
	}
	a.DecidedAt = &now
	a.UpdatedAt = now
	if err := tx.SaveApproval(ctx, a); err != nil {
		return false, fmt.Errorf("save approval %s: %w", a.ID, err)
	}

	follow := &models.Approval{
		ID:         s.newID(),
		ClaimID:    c.ID,
		ApproverID: next.Approver.ID,
		Level:      next.Level,
		Status:     models.ApprovalPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if after, ok := nextStep(chain, next.Level, owner.ID, next.Approver.ID); ok {
		id := after.Approver.ID
		follow.NextApproverID = &id
	}
	if err := tx.CreateApproval(ctx, follow); err != nil {
		return false, fmt.Errorf("create approval: %w", err)
	}
	id := next.Approver.ID
	c.CurrentApproverID = &id
	c.UpdatedAt = now
	if err := tx.SaveClaim(ctx, c); err != nil {
		return false, fmt.Errorf("save claim: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"claim_id":    c.ID,
		"level":       next.Level.String(),
		"approver_id": next.Approver.ID,
	}).Info("claim advanced to next approval level")
	return true, nil
}

// advancePending — advance для pending-записи заявки, если она есть.
// Используется при одобрении через PATCH заявки.
func (s *Service) advancePending(ctx context.Context, tx store.Store, c *models.Claim, d Decision, now time.Time) (bool, error) {
	if !s.multiLevel {
		return false, nil
	}
	list, err := tx.ListApprovals(ctx, c.ID)
	if err != nil {
		return false, fmt.Errorf("list approvals: %w", err)
	}
	for i := range list {
		if list[i].Status == models.ApprovalPending {
			return s.advance(ctx, tx, c, &list[i], d, now)
		}
	}
	return false, nil
}

// nextStep — следующий шаг цепочки после level, пропуская владельца заявки
// и того, кто только что одобрил.
func nextStep(ch approval.Chain, level models.ApprovalLevel, ownerID, currentID string) (approval.Step, bool) {
	for {
		st, ok := ch.Next(level)
		if !ok {
			return approval.Step{}, false
		}
		if st.Approver.ID != ownerID && st.Approver.ID != currentID {
			return st, true
		}
		level = st.Level
	}
}
