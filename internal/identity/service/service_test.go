package service

import (
	"context"
	"errors"
	"testing"

	"identity-core/internal/availability"
	"identity-core/internal/platform/apperr"
	"identity-core/internal/security"
	sessiondomain "identity-core/internal/session/domain"
	sessionrepo "identity-core/internal/session/repository"
	sessionservice "identity-core/internal/session/service"
	userdomain "identity-core/internal/user/domain"
	userrepo "identity-core/internal/user/repository"
)

const strongPassword = "Corr3ct-Horse-Battery"

type harness struct {
	dir      *userrepo.Directory
	checker  *availability.Checker
	sessions *sessionservice.Store
	tokens   *security.TokenService
	reg      *Registration
	auth     *AuthService
}

func newHarness() *harness {
	dir := userrepo.NewDirectory(
		userrepo.NewMemoryRepository(userdomain.RoleClient),
		userrepo.NewMemoryRepository(userdomain.RoleEmployee),
		userrepo.NewMemoryRepository(userdomain.RoleAdmin),
	)
	hasher := security.NewBcryptHasher(4)
	checker := availability.NewChecker(dir, availability.Config{})
	tokens := security.NewTestTokenService()
	sessions := sessionservice.NewStore(sessionrepo.NewMemoryRepository(), nil, sessionservice.Config{})
	return &harness{
		dir:      dir,
		checker:  checker,
		sessions: sessions,
		tokens:   tokens,
		reg:      NewRegistration(dir, checker, hasher, nil),
		auth:     NewAuthService(dir, hasher, tokens, sessions, nil),
	}
}

func (h *harness) register(t *testing.T, role userdomain.Role, email string) *userdomain.User {
	t.Helper()
	u, err := h.reg.Start(context.Background(), RegisterInput{Role: role, Email: email, Name: "Test User", Password: strongPassword})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return u
}

func TestRegistration_AvailabilityLifecycle(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.checker.Check(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Exists || !res.Available {
		t.Fatalf("before registration: %+v", res)
	}

	u := h.register(t, userdomain.RoleClient, "A@B.com")
	if u.Status != userdomain.UserStatusPendingVerification || u.IsActive {
		t.Fatalf("new client = %+v", u)
	}
	res, err = h.checker.Check(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Exists || res.IsActive || !res.Available || res.FromCache {
		t.Fatalf("after registration: %+v", res)
	}

	if _, err := h.reg.Activate(ctx, userdomain.RoleClient, u.ID); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	res, err = h.checker.Check(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Exists || !res.IsActive || res.Available {
		t.Fatalf("after activation: %+v", res)
	}

	if _, err := h.reg.Start(ctx, RegisterInput{Role: userdomain.RoleEmployee, Email: "a@b.com", Password: strongPassword}); !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Errorf("duplicate registration err = %v, want ErrEmailAlreadyRegistered", err)
	}
}

func TestRegistration_ReplacesPendingRecord(t *testing.T) {
	h := newHarness()
	first := h.register(t, userdomain.RoleClient, "again@x.com")
	second := h.register(t, userdomain.RoleEmployee, "again@x.com")

	if first.ID == second.ID {
		t.Fatal("replacement should create a new record")
	}
	store, _ := h.dir.Store(userdomain.RoleClient)
	if u, _ := store.GetByID(context.Background(), first.ID); u != nil {
		t.Error("old pending record should be gone")
	}
	if second.SubRole != "support" || second.Title != "Support Specialist" || second.Status != userdomain.UserStatusOnboarding {
		t.Errorf("employee profile not applied: %+v", second)
	}
}

func TestRegistration_SettledInactiveAccountBlocks(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	u := h.register(t, userdomain.RoleClient, "gone@x.com")
	if _, err := h.reg.SoftDelete(ctx, userdomain.RoleClient, u.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	_, err := h.reg.Start(ctx, RegisterInput{Role: userdomain.RoleClient, Email: "gone@x.com", Password: strongPassword})
	if !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Fatalf("err = %v, want ErrEmailAlreadyRegistered", err)
	}

	restored, err := h.reg.Restore(ctx, userdomain.RoleClient, u.ID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.Status != userdomain.UserStatusActive || !restored.IsActive {
		t.Errorf("restored = %+v", restored)
	}
}

func TestRegistration_Validation(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	testCases := []struct {
		name string
		in   RegisterInput
	}{
		{"weak password", RegisterInput{Role: userdomain.RoleClient, Email: "w@x.com", Password: "short"}},
		{"unknown role", RegisterInput{Role: "guest", Email: "w@x.com", Password: strongPassword}},
		{"unknown sub-role", RegisterInput{Role: userdomain.RoleAdmin, Email: "w@x.com", Password: strongPassword, SubRole: "owner"}},
		{"sub-role on client", RegisterInput{Role: userdomain.RoleClient, Email: "w@x.com", Password: strongPassword, SubRole: "vip"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := h.reg.Start(ctx, tc.in); err == nil {
				t.Fatal("Start should fail")
			}
		})
	}
	_, err := h.reg.Start(ctx, RegisterInput{Role: userdomain.RoleClient, Email: "not-an-email", Password: strongPassword})
	if !errors.Is(err, apperr.ErrInvalidFormat) {
		t.Errorf("bad email err = %v, want InvalidFormat", err)
	}
}

func TestChangeStatus_UnknownUser(t *testing.T) {
	h := newHarness()
	_, err := h.reg.ChangeStatus(context.Background(), userdomain.RoleAdmin, "missing", userdomain.UserStatusSuspended)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestLoginRefreshAuthenticateLogout(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	u := h.register(t, userdomain.RoleAdmin, "root@x.com")

	if _, err := h.auth.Login(ctx, "root@x.com", strongPassword, sessionservice.RequestInfo{}); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("pending login err = %v, want ErrAccountInactive", err)
	}
	if _, err := h.reg.Activate(ctx, userdomain.RoleAdmin, u.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.auth.Login(ctx, "root@x.com", "Wrong-Passw0rd!", sessionservice.RequestInfo{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("bad password err = %v", err)
	}

	login, err := h.auth.Login(ctx, " ROOT@x.com ", strongPassword, sessionservice.RequestInfo{IP: "10.1.1.1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := h.tokens.Verify(login.Tokens.AccessToken, security.TokenTypeAccess)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.SessionID != login.Session.ID || claims.Subject != u.ID || claims.Role != "admin" || claims.SubRole != "admin" {
		t.Errorf("claims = %+v", claims)
	}
	if login.Session.RefreshToken != login.Tokens.RefreshToken {
		t.Error("session should store the issued refresh token")
	}

	refreshed, err := h.auth.Refresh(ctx, login.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.SessionID != login.Session.ID || refreshed.ExpiresIn != login.Tokens.ExpiresIn {
		t.Errorf("refresh = %+v", refreshed)
	}
	if _, err := h.auth.Refresh(ctx, login.Tokens.AccessToken); !errors.Is(err, apperr.ErrMalformed) {
		t.Errorf("refresh with access token err = %v, want Malformed", err)
	}

	if _, err := h.auth.Authenticate(ctx, refreshed.AccessToken); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	sess, _ := h.sessions.Get(ctx, login.Session.ID)
	if sess.ActivityCount != 3 {
		t.Errorf("ActivityCount = %d, want 3 (login, refresh, request)", sess.ActivityCount)
	}

	out, err := h.auth.Logout(ctx, login.Tokens.AccessToken, "")
	if err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if out.Status != sessiondomain.StatusOffline {
		t.Errorf("status = %q, want offline", out.Status)
	}
	if _, err := h.auth.Authenticate(ctx, login.Tokens.AccessToken); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("Authenticate after logout err = %v, want ErrSessionEnded", err)
	}
	if _, err := h.auth.Refresh(ctx, login.Tokens.RefreshToken); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("Refresh after logout err = %v, want ErrSessionEnded", err)
	}
	if _, err := h.auth.Logout(ctx, "garbage", ""); !errors.Is(err, apperr.ErrMalformed) {
		t.Errorf("Logout garbage err = %v, want Malformed", err)
	}
}

func TestLogin_OnboardingEmployeeAllowed(t *testing.T) {
	h := newHarness()
	h.register(t, userdomain.RoleEmployee, "staff@x.com")

	login, err := h.auth.Login(context.Background(), "staff@x.com", strongPassword, sessionservice.RequestInfo{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.Session.UserRole != "employee" {
		t.Errorf("UserRole = %q", login.Session.UserRole)
	}
}
