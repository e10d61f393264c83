package approval_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"claimflow/internal/approval"
	"claimflow/internal/memstore"
	"claimflow/internal/models"
)

type org struct {
	st  *memstore.Store
	seq int
}

func newOrg() *org { return &org{st: memstore.New()} }

func (o *org) add(t *testing.T, id, dept string, role models.Role, band string, manager *string) models.User {
	t.Helper()
	o.seq++
	u := models.User{
		ID:         id,
		Email:      id + "@example.com",
		Name:       id,
		Department: dept,
		Role:       role,
		Band:       band,
		ManagerID:  manager,
		CreatedAt:  time.Date(2024, 1, 1, 0, 0, o.seq, 0, time.UTC),
	}
	if err := o.st.CreateUser(context.Background(), &u); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	return u
}

func ptr(s string) *string { return &s }

func newPolicy(t *testing.T) *approval.Policy {
	t.Helper()
	p, err := approval.New(approval.DefaultConfig())
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	return p
}

func levels(ch approval.Chain) []models.ApprovalLevel {
	out := make([]models.ApprovalLevel, 0, len(ch.Steps))
	for _, s := range ch.Steps {
		out = append(out, s.Level)
	}
	return out
}

func equalLevels(a, b []models.ApprovalLevel) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func fullOrg(t *testing.T) *org {
	o := newOrg()
	o.add(t, "mgr", "Sales", models.RoleManager, "B3", nil)
	o.add(t, "dir", "Sales", models.RoleManager, "B5", nil)
	o.add(t, "fin", "Finance", models.RoleFinance, "B3", nil)
	o.add(t, "ceo", "Administration", models.RoleAdmin, "B6", nil)
	return o
}

func TestBrackets(t *testing.T) {
	b := approval.DefaultBrackets()
	if err := b.Validate(); err != nil {
		t.Fatalf("default brackets invalid: %v", err)
	}

	cases := []struct {
		amount string
		want   []models.ApprovalLevel
	}{
		{"0", []models.ApprovalLevel{models.LevelManager}},
		{"5000", []models.ApprovalLevel{models.LevelManager}},
		{"5000.01", []models.ApprovalLevel{models.LevelManager, models.LevelFinance}},
		{"10000", []models.ApprovalLevel{models.LevelManager, models.LevelFinance}},
		{"12500", []models.ApprovalLevel{models.LevelManager, models.LevelFinance, models.LevelDirector}},
		{"25000.5", []models.ApprovalLevel{models.LevelManager, models.LevelFinance, models.LevelDirector, models.LevelCXO}},
	}
	for _, tc := range cases {
		t.Run(tc.amount, func(t *testing.T) {
			got := b.LevelsFor(decimal.RequireFromString(tc.amount))
			if !equalLevels(got, tc.want) {
				t.Fatalf("levels for %s = %v, want %v", tc.amount, got, tc.want)
			}
			if lvl := b.LevelFor(decimal.RequireFromString(tc.amount)); lvl != tc.want[len(tc.want)-1] {
				t.Fatalf("bracket level = %s, want %s", lvl, tc.want[len(tc.want)-1])
			}
		})
	}
}

func TestBracketsValidate(t *testing.T) {
	bad := map[string]approval.Brackets{
		"empty":           {},
		"first not zero":  {{Level: models.LevelManager, Above: decimal.NewFromInt(1)}},
		"first not mgr":   {{Level: models.LevelFinance, Above: decimal.Zero}},
		"level backwards": {{Level: models.LevelManager}, {Level: models.LevelDirector, Above: decimal.NewFromInt(10)}, {Level: models.LevelFinance, Above: decimal.NewFromInt(20)}},
		"threshold equal": {{Level: models.LevelManager}, {Level: models.LevelFinance, Above: decimal.Zero}},
		"unknown level":   {{Level: models.LevelManager}, {Level: models.ApprovalLevel(9), Above: decimal.NewFromInt(5)}},
	}
	for name, b := range bad {
		t.Run(name, func(t *testing.T) {
			if err := b.Validate(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestChainManagerOnlyBelowThreshold(t *testing.T) {
	o := fullOrg(t)
	p := newPolicy(t)

	for _, amount := range []string{"0", "1", "4999.99", "5000"} {
		ch, err := p.Chain(context.Background(), o.st, "Sales", "EMEA", decimal.RequireFromString(amount))
		if err != nil {
			t.Fatalf("chain: %v", err)
		}
		if !equalLevels(levels(ch), []models.ApprovalLevel{models.LevelManager}) {
			t.Fatalf("amount %s: levels = %v, want [manager]", amount, levels(ch))
		}
		if ch.Steps[0].Approver.ID != "mgr" {
			t.Fatalf("manager step approver = %s, want mgr", ch.Steps[0].Approver.ID)
		}
	}
}

func TestChainManagerAndFinance(t *testing.T) {
	o := fullOrg(t)
	p := newPolicy(t)

	for _, amount := range []string{"5000.01", "7500", "9999.99"} {
		ch, err := p.Chain(context.Background(), o.st, "sales ", "EMEA", decimal.RequireFromString(amount))
		if err != nil {
			t.Fatalf("chain: %v", err)
		}
		want := []models.ApprovalLevel{models.LevelManager, models.LevelFinance}
		if !equalLevels(levels(ch), want) {
			t.Fatalf("amount %s: levels = %v, want %v", amount, levels(ch), want)
		}
		if ch.Steps[1].Approver.ID != "fin" {
			t.Fatalf("finance resolved to %s, want fin", ch.Steps[1].Approver.ID)
		}
		if !ch.Complete() {
			t.Fatalf("chain unexpectedly incomplete: %+v", ch.Missing)
		}
	}
}

func TestChainFullAndDirectorBand(t *testing.T) {
	o := fullOrg(t)
	p := newPolicy(t)

	ch, err := p.Chain(context.Background(), o.st, "Sales", "EMEA", decimal.NewFromInt(30000))
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	ids := make([]string, 0)
	for _, u := range ch.Approvers() {
		ids = append(ids, u.ID)
	}
	want := []string{"mgr", "fin", "dir", "ceo"}
	if len(ids) != len(want) {
		t.Fatalf("approvers = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("approvers = %v, want %v", ids, want)
		}
	}
	next, ok := ch.Next(models.LevelManager)
	if !ok || next.Level != models.LevelFinance {
		t.Fatalf("next after manager = %+v %v", next, ok)
	}
	if _, ok := ch.Next(models.LevelCXO); ok {
		t.Fatal("nothing should follow cxo")
	}
}

func TestChainReportsMissingLevels(t *testing.T) {
	o := newOrg()
	o.add(t, "mgr", "Sales", models.RoleManager, "B2", nil)
	p := newPolicy(t)

	ch, err := p.Chain(context.Background(), o.st, "Sales", "", decimal.NewFromInt(12000))
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if ch.Complete() {
		t.Fatal("chain should be incomplete")
	}
	if len(ch.Steps) != 1 || ch.Steps[0].Approver.ID != "mgr" {
		t.Fatalf("steps = %+v", ch.Steps)
	}
	if len(ch.Missing) != 2 {
		t.Fatalf("missing = %+v, want finance and director", ch.Missing)
	}
	if ch.Missing[0].Level != models.LevelFinance || ch.Missing[0].Department != "Finance" {
		t.Fatalf("first gap = %+v", ch.Missing[0])
	}
	if ch.Missing[1].Level != models.LevelDirector || ch.Missing[1].Department != "Sales" {
		t.Fatalf("second gap = %+v", ch.Missing[1])
	}
}

func TestFirstApproverManagerOverridesAmount(t *testing.T) {
	o := fullOrg(t)
	boss := o.add(t, "boss", "Marketing", models.RoleEmployee, "B1", nil)
	sub := o.add(t, "sub", "Sales", models.RoleEmployee, "B2", ptr(boss.ID))
	p := newPolicy(t)

	for _, amount := range []string{"1", "7000", "12500", "1000000"} {
		r, err := p.FirstApprover(context.Background(), o.st, sub, decimal.RequireFromString(amount))
		if err != nil {
			t.Fatalf("first approver: %v", err)
		}
		if !r.Routed() || r.Approver.ID != boss.ID || !r.ViaManager {
			t.Fatalf("amount %s: route = %+v, want manager %s", amount, r, boss.ID)
		}
		if r.Level != models.LevelManager {
			t.Fatalf("level = %s, want manager", r.Level)
		}
	}
}

func TestFirstApproverFallsBackToBracket(t *testing.T) {
	o := fullOrg(t)
	sub := o.add(t, "sub", "Sales", models.RoleEmployee, "B2", ptr("ghost"))
	p := newPolicy(t)

	r, err := p.FirstApprover(context.Background(), o.st, sub, decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("first approver: %v", err)
	}
	if !r.Routed() || r.Approver.ID != "mgr" || r.ViaManager {
		t.Fatalf("route = %+v, want department manager", r)
	}

	r, err = p.FirstApprover(context.Background(), o.st, sub, decimal.NewFromInt(12000))
	if err != nil {
		t.Fatalf("first approver: %v", err)
	}
	if !r.Routed() || r.Approver.ID != "dir" || r.Level != models.LevelDirector {
		t.Fatalf("route = %+v, want director", r)
	}
}

func TestFirstApproverSkipsSubmitterAndReportsGap(t *testing.T) {
	o := newOrg()
	self := o.add(t, "self", "Ops", models.RoleManager, "B3", nil)
	p := newPolicy(t)

	r, err := p.FirstApprover(context.Background(), o.st, self, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("first approver: %v", err)
	}
	if r.Routed() {
		t.Fatalf("submitter must not approve own claim, got %+v", r.Approver)
	}
	if r.Level != models.LevelManager {
		t.Fatalf("level = %s", r.Level)
	}
}

func TestApproversForTieBreakIsStoreOrder(t *testing.T) {
	o := newOrg()
	o.add(t, "m1", "Sales", models.RoleManager, "B2", nil)
	o.add(t, "m2", "SALES", models.RoleManager, "B2", nil)
	o.add(t, "other", "Support", models.RoleManager, "B2", nil)
	p := newPolicy(t)

	got, err := p.ApproversFor(context.Background(), o.st, "Sales", models.LevelManager)
	if err != nil {
		t.Fatalf("approvers: %v", err)
	}
	if len(got) != 2 || got[0].ID != "m1" || got[1].ID != "m2" {
		t.Fatalf("approvers = %+v", got)
	}
}

func TestQualifies(t *testing.T) {
	p := newPolicy(t)
	cases := []struct {
		name  string
		user  models.User
		level models.ApprovalLevel
		want  bool
	}{
		{"manager at manager", models.User{Role: models.RoleManager, Band: "B1"}, models.LevelManager, true},
		{"employee at manager", models.User{Role: models.RoleEmployee}, models.LevelManager, false},
		{"finance at finance", models.User{Role: models.RoleFinance}, models.LevelFinance, true},
		{"low band director", models.User{Role: models.RoleManager, Band: "B3"}, models.LevelDirector, false},
		{"high band director", models.User{Role: models.RoleManager, Band: "B4"}, models.LevelDirector, true},
		{"garbage band director", models.User{Role: models.RoleManager, Band: "X9"}, models.LevelDirector, false},
		{"admin at cxo", models.User{Role: models.RoleAdmin}, models.LevelCXO, true},
		{"finance at cxo", models.User{Role: models.RoleFinance}, models.LevelCXO, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.Qualifies(tc.user, tc.level); got != tc.want {
				t.Fatalf("Qualifies = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := approval.DefaultConfig()
	cfg.DirectorBand = "top"
	if _, err := approval.New(cfg); err == nil {
		t.Fatal("expected error for bad director band")
	}
	cfg = approval.DefaultConfig()
	cfg.FinanceDepartment = " "
	if _, err := approval.New(cfg); err == nil {
		t.Fatal("expected error for empty finance department")
	}
}
