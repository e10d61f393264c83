package directory_test

import (
	"context"
	"errors"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/crypto/bcrypt"

	"claimflow/internal/auth"
	"claimflow/internal/directory"
	"claimflow/internal/memstore"
	"claimflow/internal/models"
	"claimflow/internal/store"
)

func newService(t *testing.T) *directory.Service {
	t.Helper()
	auth.BcryptCost = bcrypt.MinCost
	log, _ := logtest.NewNullLogger()
	return directory.NewService(memstore.New(), log, []string{"Boss@Example.com"})
}

func register(t *testing.T, svc *directory.Service, email string, manager *string) *models.User {
	t.Helper()
	u, err := svc.Register(context.Background(), directory.RegisterInput{
		Email:      email,
		Name:       "Name " + email,
		Password:   "correct horse",
		Department: "Sales",
		Band:       "b2",
		ManagerID:  manager,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return u
}

func strp(s string) *string { return &s }

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	u := register(t, svc, "  Ann@Example.com ", nil)
	if u.Email != "ann@example.com" || u.Role != models.RoleEmployee || u.Band != "B2" {
		t.Fatalf("user = %+v", u)
	}
	if u.PasswordHash == "" || u.PasswordHash == "correct horse" {
		t.Fatal("password must be stored hashed")
	}

	got, err := svc.Authenticate(ctx, "ANN@example.com", "correct horse")
	if err != nil || got.ID != u.ID {
		t.Fatalf("authenticate = %v %v", got, err)
	}
	if _, err := svc.Authenticate(ctx, "ann@example.com", "nope"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("wrong password: err = %v", err)
	}
	if _, err := svc.Authenticate(ctx, "ghost@example.com", "correct horse"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("unknown email: err = %v", err)
	}

	_, err = svc.Register(ctx, directory.RegisterInput{
		Email: "ann@example.com", Name: "Dup", Password: "12345678", Department: "Sales",
	})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("duplicate email: err = %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newService(t)
	cases := map[string]directory.RegisterInput{
		"bad email":      {Email: "nope", Name: "x", Password: "12345678", Department: "Sales"},
		"short password": {Email: "a@b.co", Name: "x", Password: "123", Department: "Sales"},
		"no department":  {Email: "a@b.co", Name: "x", Password: "12345678"},
		"bad band":       {Email: "a@b.co", Name: "x", Password: "12345678", Department: "Sales", Band: "senior"},
		"unknown boss":   {Email: "a@b.co", Name: "x", Password: "12345678", Department: "Sales", ManagerID: strp("ghost")},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), in); !errors.Is(err, directory.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestAdminEmailsGetAdminRole(t *testing.T) {
	svc := newService(t)
	u := register(t, svc, "boss@example.com", nil)
	if u.Role != models.RoleAdmin {
		t.Fatalf("role = %s, want admin", u.Role)
	}
}

func TestUpdatePermissions(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	admin := register(t, svc, "boss@example.com", nil)
	ann := register(t, svc, "ann@example.com", nil)
	bob := register(t, svc, "bob@example.com", nil)

	annP := models.Principal{UserID: ann.ID, Role: ann.Role}
	adminP := models.Principal{UserID: admin.ID, Role: admin.Role}

	if _, err := svc.Update(ctx, annP, ann.ID, directory.UserPatch{Name: strp("Ann B.")}); err != nil {
		t.Fatalf("self rename: %v", err)
	}
	role := models.RoleAdmin
	if _, err := svc.Update(ctx, annP, ann.ID, directory.UserPatch{Role: &role}); !errors.Is(err, directory.ErrForbidden) {
		t.Fatalf("self promotion: err = %v", err)
	}
	if _, err := svc.Update(ctx, annP, bob.ID, directory.UserPatch{Name: strp("Bobby")}); !errors.Is(err, directory.ErrForbidden) {
		t.Fatalf("renaming others: err = %v", err)
	}

	mgr := models.RoleManager
	got, err := svc.Update(ctx, adminP, bob.ID, directory.UserPatch{Role: &mgr, Band: strp("b4")})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if got.Role != models.RoleManager || got.Band != "B4" {
		t.Fatalf("user = %+v", got)
	}
	bad := models.Role("owner")
	if _, err := svc.Update(ctx, adminP, bob.ID, directory.UserPatch{Role: &bad}); !errors.Is(err, directory.ErrValidation) {
		t.Fatalf("unknown role: err = %v", err)
	}
}

func TestManagerCycle(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	admin := register(t, svc, "boss@example.com", nil)
	adminP := models.Principal{UserID: admin.ID, Role: models.RoleAdmin}

	a := register(t, svc, "a@example.com", nil)
	b := register(t, svc, "b@example.com", &a.ID)
	c := register(t, svc, "c@example.com", &b.ID)

	if _, err := svc.Update(ctx, adminP, a.ID, directory.UserPatch{ManagerID: &c.ID}); !errors.Is(err, directory.ErrManagerCycle) {
		t.Fatalf("a -> c cycle: err = %v", err)
	}
	if _, err := svc.Update(ctx, adminP, a.ID, directory.UserPatch{ManagerID: &a.ID}); !errors.Is(err, directory.ErrManagerCycle) {
		t.Fatalf("self manager: err = %v", err)
	}
	if _, err := svc.Update(ctx, adminP, a.ID, directory.UserPatch{ManagerID: strp("ghost")}); !errors.Is(err, directory.ErrValidation) {
		t.Fatalf("unknown manager: err = %v", err)
	}
	got, err := svc.Update(ctx, adminP, c.ID, directory.UserPatch{ManagerID: &a.ID})
	if err != nil || got.ManagerID == nil || *got.ManagerID != a.ID {
		t.Fatalf("re-parent c under a: %+v %v", got, err)
	}
	got, err = svc.Update(ctx, adminP, c.ID, directory.UserPatch{ClearManager: true})
	if err != nil || got.ManagerID != nil {
		t.Fatalf("clear manager: %+v %v", got, err)
	}
}

func TestPrincipalReflectsStoredRole(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	admin := register(t, svc, "boss@example.com", nil)
	ann := register(t, svc, "ann@example.com", nil)

	mgr := models.RoleManager
	if _, err := svc.Update(ctx, models.Principal{UserID: admin.ID, Role: models.RoleAdmin}, ann.ID, directory.UserPatch{Role: &mgr}); err != nil {
		t.Fatalf("promote: %v", err)
	}
	p, err := svc.Principal(ctx, ann.ID)
	if err != nil || p.Role != models.RoleManager || p.UserID != ann.ID {
		t.Fatalf("principal = %+v %v", p, err)
	}
	if _, err := svc.Principal(ctx, "ghost"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("unknown user: err = %v", err)
	}
}

func TestList(t *testing.T) {
	svc := newService(t)
	register(t, svc, "a@example.com", nil)
	register(t, svc, "boss@example.com", nil)

	all, err := svc.List(context.Background(), directory.Filter{Department: "sales"})
	if err != nil || len(all) != 2 {
		t.Fatalf("list = %d %v", len(all), err)
	}
	admins, err := svc.List(context.Background(), directory.Filter{Role: models.RoleAdmin})
	if err != nil || len(admins) != 1 {
		t.Fatalf("admins = %d %v", len(admins), err)
	}
	if _, err := svc.List(context.Background(), directory.Filter{Role: "pope"}); !errors.Is(err, directory.ErrValidation) {
		t.Fatalf("bad role: err = %v", err)
	}
}
