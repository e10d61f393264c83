package lifecycle

import (
	"errors"
	"testing"

	"claimflow/internal/models"
)

var allStatuses = []models.ClaimStatus{
	models.StatusDraft,
	models.StatusSubmitted,
	models.StatusApproved,
	models.StatusRejected,
	models.StatusProcessing,
	models.StatusPaid,
}

func TestLookupTable(t *testing.T) {
	allowed := map[[2]models.ClaimStatus]Effect{
		{models.StatusDraft, models.StatusDraft}:         EffectEdit,
		{models.StatusDraft, models.StatusSubmitted}:     EffectSubmit,
		{models.StatusSubmitted, models.StatusApproved}:  EffectApprove,
		{models.StatusSubmitted, models.StatusRejected}:  EffectReject,
		{models.StatusApproved, models.StatusProcessing}: EffectProcess,
		{models.StatusProcessing, models.StatusPaid}:     EffectPay,
	}
	m := New()
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			tr, err := m.Lookup(from, to)
			want, ok := allowed[[2]models.ClaimStatus{from, to}]
			if ok {
				if err != nil {
					t.Errorf("%s -> %s: unexpected error %v", from, to, err)
					continue
				}
				if tr.Effect != want {
					t.Errorf("%s -> %s: effect %s, want %s", from, to, tr.Effect, want)
				}
				continue
			}
			if !errors.Is(err, ErrTransitionNotAllowed) {
				t.Errorf("%s -> %s: err = %v, want ErrTransitionNotAllowed", from, to, err)
			}
		}
	}
}

func TestBackwardMovesRejected(t *testing.T) {
	m := New()
	back := [][2]models.ClaimStatus{
		{models.StatusApproved, models.StatusSubmitted},
		{models.StatusSubmitted, models.StatusDraft},
		{models.StatusPaid, models.StatusProcessing},
		{models.StatusRejected, models.StatusSubmitted},
		{models.StatusProcessing, models.StatusApproved},
	}
	for _, p := range back {
		if _, err := m.Lookup(p[0], p[1]); !errors.Is(err, ErrTransitionNotAllowed) {
			t.Errorf("%s -> %s should be rejected, got %v", p[0], p[1], err)
		}
	}
}

func strp(s string) *string { return &s }

func TestAuthorize(t *testing.T) {
	m := New()
	owner := models.Principal{UserID: "u1", Role: models.RoleEmployee}
	stranger := models.Principal{UserID: "u2", Role: models.RoleEmployee}
	approver := models.Principal{UserID: "m1", Role: models.RoleManager}
	otherMgr := models.Principal{UserID: "m2", Role: models.RoleManager}
	fin := models.Principal{UserID: "f1", Role: models.RoleFinance}
	admin := models.Principal{UserID: "a1", Role: models.RoleAdmin}

	draft := &models.Claim{ID: "c1", UserID: "u1", Status: models.StatusDraft}
	routed := &models.Claim{ID: "c2", UserID: "u1", Status: models.StatusSubmitted, CurrentApproverID: strp("m1")}
	unrouted := &models.Claim{ID: "c3", UserID: "u1", Status: models.StatusSubmitted}
	approved := &models.Claim{ID: "c4", UserID: "u1", Status: models.StatusApproved}
	finOwned := &models.Claim{ID: "c5", UserID: "f1", Status: models.StatusSubmitted}

	cases := []struct {
		name  string
		actor models.Principal
		claim *models.Claim
		to    models.ClaimStatus
		ok    bool
	}{
		{"owner submits", owner, draft, models.StatusSubmitted, true},
		{"stranger submits", stranger, draft, models.StatusSubmitted, false},
		{"admin edits draft", admin, draft, models.StatusDraft, true},
		{"current approver approves", approver, routed, models.StatusApproved, true},
		{"other manager approves", otherMgr, routed, models.StatusApproved, false},
		{"owner approves own claim", owner, routed, models.StatusApproved, false},
		{"finance rejects routed claim", fin, routed, models.StatusRejected, false},
		{"finance approves unrouted claim", fin, unrouted, models.StatusApproved, true},
		{"manager decides unrouted claim", otherMgr, unrouted, models.StatusApproved, false},
		{"finance approves own unrouted claim", fin, finOwned, models.StatusApproved, false},
		{"finance rejects own unrouted claim", fin, finOwned, models.StatusRejected, false},
		{"admin rejects", admin, routed, models.StatusRejected, true},
		{"finance processes", fin, approved, models.StatusProcessing, true},
		{"owner processes", owner, approved, models.StatusProcessing, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Authorize(tc.actor, tc.claim, tc.to)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrActorNotAllowed) {
				t.Fatalf("err = %v, want ErrActorNotAllowed", err)
			}
		})
	}
}

func TestNextAndInitial(t *testing.T) {
	m := New()
	next := m.Next(models.StatusSubmitted)
	if len(next) != 2 || next[0] != models.StatusApproved || next[1] != models.StatusRejected {
		t.Fatalf("next(submitted) = %v", next)
	}
	if len(m.Next(models.StatusPaid)) != 0 || len(m.Next(models.StatusRejected)) != 0 {
		t.Fatal("paid and rejected must be final")
	}
	if !Initial(models.StatusDraft) || !Initial(models.StatusSubmitted) || Initial(models.StatusApproved) {
		t.Fatal("only draft and submitted are initial")
	}
}
