// Package lifecycle — конечный автомат статусов заявки.
// Любая пара (from, to), которой нет в таблице, запрещена.
package lifecycle

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"claimflow/internal/models"
)

var (
	ErrTransitionNotAllowed = errors.New("status transition not allowed")
	ErrActorNotAllowed      = errors.New("actor may not perform this transition")
)

// Effect — побочный эффект перехода, исполняется сервисом заявок.
type Effect int

const (
	EffectEdit Effect = iota + 1
	EffectSubmit
	EffectApprove
	EffectReject
	EffectProcess
	EffectPay
)

func (e Effect) String() string {
	switch e {
	case EffectEdit:
		return "edit"
	case EffectSubmit:
		return "submit"
	case EffectApprove:
		return "approve"
	case EffectReject:
		return "reject"
	case EffectProcess:
		return "process"
	case EffectPay:
		return "pay"
	}
	return fmt.Sprintf("effect(%d)", int(e))
}

// Rule решает, может ли actor двигать конкретную заявку.
type Rule func(actor models.Principal, c *models.Claim) bool

type Transition struct {
	From   models.ClaimStatus
	To     models.ClaimStatus
	Effect Effect
	Who    string
	allow  Rule
}

type key struct{ from, to models.ClaimStatus }

type Machine struct {
	table map[key]Transition
}

func OwnerOrAdmin(actor models.Principal, c *models.Claim) bool {
	return actor.IsAdmin() || actor.UserID == c.UserID
}

// Decider — текущий согласующий; для заявки без маршрута — финансы;
// админ всегда. Владелец (кроме админа) свою заявку не решает.
func Decider(actor models.Principal, c *models.Claim) bool {
	if actor.IsAdmin() {
		return true
	}
	if actor.UserID == c.UserID {
		return false
	}
	if c.CurrentApproverID == nil {
		return actor.Role == models.RoleFinance
	}
	return *c.CurrentApproverID == actor.UserID
}

func FinanceOrAdmin(actor models.Principal, _ *models.Claim) bool {
	return actor.IsAdmin() || actor.Role == models.RoleFinance
}

func New() *Machine {
	m := &Machine{table: make(map[key]Transition)}
	m.add(models.StatusDraft, models.StatusDraft, EffectEdit, "owner or admin", OwnerOrAdmin)
	m.add(models.StatusDraft, models.StatusSubmitted, EffectSubmit, "owner or admin", OwnerOrAdmin)
	m.add(models.StatusSubmitted, models.StatusApproved, EffectApprove, "current approver or admin", Decider)
	m.add(models.StatusSubmitted, models.StatusRejected, EffectReject, "current approver or admin", Decider)
	m.add(models.StatusApproved, models.StatusProcessing, EffectProcess, "finance or admin", FinanceOrAdmin)
	m.add(models.StatusProcessing, models.StatusPaid, EffectPay, "finance or admin", FinanceOrAdmin)
	return m
}

func (m *Machine) add(from, to models.ClaimStatus, e Effect, who string, allow Rule) {
	m.table[key{from, to}] = Transition{From: from, To: to, Effect: e, Who: who, allow: allow}
}

// Lookup находит переход без проверки прав.
func (m *Machine) Lookup(from, to models.ClaimStatus) (Transition, error) {
	t, ok := m.table[key{from, to}]
	if !ok {
		next := m.Next(from)
		if len(next) == 0 {
			return Transition{}, fmt.Errorf("%w: %s -> %s (%s is final)", ErrTransitionNotAllowed, from, to, from)
		}
		return Transition{}, fmt.Errorf("%w: %s -> %s (allowed: %s)", ErrTransitionNotAllowed, from, to, joinStatuses(next))
	}
	return t, nil
}

// Authorize — Lookup плюс проверка, что actor вправе выполнить переход для заявки c.
func (m *Machine) Authorize(actor models.Principal, c *models.Claim, to models.ClaimStatus) (Transition, error) {
	t, err := m.Lookup(c.Status, to)
	if err != nil {
		return Transition{}, err
	}
	if !t.allow(actor, c) {
		return Transition{}, fmt.Errorf("%w: %s on claim %s requires %s", ErrActorNotAllowed, t.Effect, c.ID, t.Who)
	}
	return t, nil
}

// Next — статусы, в которые можно перейти из from (кроме самого from).
func (m *Machine) Next(from models.ClaimStatus) []models.ClaimStatus {
	out := make([]models.ClaimStatus, 0, 2)
	for k := range m.table {
		if k.from == from && k.to != from {
			out = append(out, k.to)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Initial — с каких статусов разрешено создавать заявку.
func Initial(s models.ClaimStatus) bool {
	return s == models.StatusDraft || s == models.StatusSubmitted
}

func joinStatuses(ss []models.ClaimStatus) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
