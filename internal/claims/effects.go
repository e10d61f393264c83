package claims

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"claimflow/internal/models"
	"claimflow/internal/store"
)

// submit: draft -> submitted. Назначает первого согласующего и заводит
// pending-запись уровня 1. Если согласующего нет, заявка остаётся без маршрута.
func (s *Service) submit(ctx context.Context, tx store.Store, c *models.Claim, owner *models.User, now time.Time) error {
	route, err := s.policy.FirstApprover(ctx, tx, *owner, c.TotalAmount)
	if err != nil {
		return fmt.Errorf("resolve approver for claim %s: %w", c.ID, err)
	}
	c.Status = models.StatusSubmitted
	c.SubmittedAt = &now
	c.UpdatedAt = now
	c.CurrentApproverID = nil

	fields := logrus.Fields{"claim_id": c.ID, "department": owner.Department, "amount": c.TotalAmount.String()}
	if !route.Routed() {
		s.log.WithFields(fields).WithField("level", route.Level.String()).Warn("no approver found, claim left unrouted")
		if err := tx.SaveClaim(ctx, c); err != nil {
			return fmt.Errorf("save claim: %w", err)
		}
		return nil
	}

	chain, err := s.policy.Chain(ctx, tx, owner.Department, owner.BusinessUnit, c.TotalAmount)
	if err != nil {
		return fmt.Errorf("resolve chain for claim %s: %w", c.ID, err)
	}
	for _, gap := range chain.Missing {
		s.log.WithFields(fields).WithFields(logrus.Fields{
			"level":            gap.Level.String(),
			"level_department": gap.Department,
		}).Warn("approval chain level has no approver")
	}

	approverID := route.Approver.ID
	c.CurrentApproverID = &approverID
	if err := tx.SaveClaim(ctx, c); err != nil {
		return fmt.Errorf("save claim: %w", err)
	}
	a := &models.Approval{
		ID:         s.newID(),
		ClaimID:    c.ID,
		ApproverID: approverID,
		Level:      models.LevelManager,
		Status:     models.ApprovalPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if next, ok := nextStep(chain, models.LevelManager, c.UserID, approverID); ok {
		id := next.Approver.ID
		a.NextApproverID = &id
	}
	if err := tx.CreateApproval(ctx, a); err != nil {
		return fmt.Errorf("create approval: %w", err)
	}
	s.log.WithFields(fields).WithFields(logrus.Fields{
		"approver_id": approverID,
		"via_manager": route.ViaManager,
	}).Info("claim routed")
	return nil
}

// approve: submitted -> approved. approvedAmount по умолчанию равна сумме заявки.
func (s *Service) approve(ctx context.Context, tx store.Store, c *models.Claim, amount *decimal.Decimal, notes *string, now time.Time) error {
	approved := c.TotalAmount
	if amount != nil {
		approved = *amount
	}
	if err := checkApproved(approved, c.TotalAmount); err != nil {
		return err
	}
	c.Status = models.StatusApproved
	c.ApprovedAmount = decimal.NewNullDecimal(approved)
	c.ApprovedAt = &now
	c.UpdatedAt = now
	c.CurrentApproverID = nil
	if n := cleanNotes(notes); n != nil {
		c.Notes = n
	}
	if err := tx.SaveClaim(ctx, c); err != nil {
		return fmt.Errorf("save claim: %w", err)
	}
	return s.settlePending(ctx, tx, c.ID, models.ApprovalApproved, cleanNotes(notes), now)
}

// reject: submitted -> rejected. Причина обязательна; approvedAmount остаётся пустой.
func (s *Service) reject(ctx context.Context, tx store.Store, c *models.Claim, notes *string, now time.Time) error {
	reason := cleanNotes(notes)
	if reason == nil {
		return ErrReasonRequired
	}
	c.Status = models.StatusRejected
	c.RejectedAt = &now
	c.UpdatedAt = now
	c.CurrentApproverID = nil
	c.ApprovedAmount = decimal.NullDecimal{}
	c.Notes = reason
	if err := tx.SaveClaim(ctx, c); err != nil {
		return fmt.Errorf("save claim: %w", err)
	}
	return s.settlePending(ctx, tx, c.ID, models.ApprovalRejected, reason, now)
}

// settlePending закрывает все pending-записи заявки одним статусом.
func (s *Service) settlePending(ctx context.Context, tx store.Store, claimID string, status models.ApprovalStatus, notes *string, now time.Time) error {
	list, err := tx.ListApprovals(ctx, claimID)
	if err != nil {
		return fmt.Errorf("list approvals: %w", err)
	}
	for i := range list {
		a := &list[i]
		if a.Status != models.ApprovalPending {
			continue
		}
		a.Status = status
		if notes != nil {
			a.Notes = notes
		}
		a.DecidedAt = &now
		a.UpdatedAt = now
		if err := tx.SaveApproval(ctx, a); err != nil {
			return fmt.Errorf("save approval %s: %w", a.ID, err)
		}
	}
	return nil
}

func cleanNotes(n *string) *string {
	if n == nil {
		return nil
	}
	t := strings.TrimSpace(*n)
	if t == "" {
		return nil
	}
	return &t
}
