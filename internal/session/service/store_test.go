package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	auditdomain "identity-core/internal/audit/domain"
	"identity-core/internal/platform/apperr"
	"identity-core/internal/session/domain"
	sessionrepo "identity-core/internal/session/repository"
)

type recorded struct {
	sessionID string
	action    auditdomain.Action
	details   map[string]any
}

type captureRecorder struct {
	mu      sync.Mutex
	entries []recorded
}

func (c *captureRecorder) Record(_ context.Context, sessionID, _ string, action auditdomain.Action, details map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, recorded{sessionID: sessionID, action: action, details: details})
}

func (c *captureRecorder) actions(sessionID string) []auditdomain.Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []auditdomain.Action
	for _, e := range c.entries {
		if e.sessionID == sessionID {
			out = append(out, e.action)
		}
	}
	return out
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestStore() (*Store, *captureRecorder, *testClock) {
	rec := &captureRecorder{}
	clock := &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	s := NewStore(sessionrepo.NewMemoryRepository(), rec, Config{})
	s.now = clock.now
	return s, rec, clock
}

var testUser = UserInfo{ID: "user-1", Role: "client", Email: "a@b.com", Name: "Ada"}

func open(t *testing.T, s *Store, expiresIn int64) *domain.Session {
	t.Helper()
	sess, err := s.Create(context.Background(), testUser,
		TokenInfo{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: expiresIn},
		RequestInfo{IP: "10.0.0.1", UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return sess
}

func TestCreate(t *testing.T) {
	s, rec, clock := newTestStore()
	sess := open(t, s, 900)

	if sess.ID == "" {
		t.Error("session id should be generated")
	}
	if sess.Status != domain.StatusOnline || sess.ActivityCount != 1 {
		t.Errorf("status=%q activity=%d", sess.Status, sess.ActivityCount)
	}
	if want := clock.now().Add(900 * time.Second); !sess.TokenExpiresAt.Equal(want) {
		t.Errorf("TokenExpiresAt = %v, want %v", sess.TokenExpiresAt, want)
	}
	if sess.Location.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC", sess.Location.Timezone)
	}
	if sess.AccessToken != "access" || sess.RefreshToken != "refresh" {
		t.Error("raw tokens should be stored")
	}
	if sess.LogoutAt != nil || sess.Duration != nil {
		t.Error("new session must not carry logout fields")
	}
	if got := rec.actions(sess.ID); len(got) != 1 || got[0] != auditdomain.ActionLogin {
		t.Errorf("activity = %v, want [login]", got)
	}
}

func TestCreate_UsesSuppliedSessionID(t *testing.T) {
	s, _, _ := newTestStore()
	sess, err := s.Create(context.Background(), testUser, TokenInfo{SessionID: "fixed-id", ExpiresIn: 60}, RequestInfo{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.ID != "fixed-id" {
		t.Errorf("ID = %q, want fixed-id", sess.ID)
	}
	if sess.Device.Type != domain.DeviceUnknown || sess.Device.Browser != "Unknown" {
		t.Errorf("device = %+v, want unknown defaults", sess.Device)
	}
}

func TestCreate_ThenActiveThenLogout(t *testing.T) {
	s, rec, clock := newTestStore()
	ctx := context.Background()
	sess := open(t, s, 900)

	active, err := s.ActiveSessions(ctx, testUser.ID)
	if err != nil {
		t.Fatalf("ActiveSessions: %v", err)
	}
	if len(active) != 1 || active[0].ID != sess.ID || active[0].Status != domain.StatusOnline {
		t.Fatalf("ActiveSessions = %+v", active)
	}

	clock.advance(2*time.Minute + 30*time.Second)
	out, err := s.Logout(ctx, sess.ID, nil)
	if err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if out.Status != domain.StatusOffline || out.LogoutAt == nil {
		t.Errorf("logout fields not set: %+v", out)
	}
	if out.Duration == nil || *out.Duration != 2 {
		t.Errorf("Duration = %v, want 2", out.Duration)
	}

	active, _ = s.ActiveSessions(ctx, testUser.ID)
	if len(active) != 0 {
		t.Errorf("ActiveSessions after logout = %d, want 0", len(active))
	}

	actions := rec.actions(sess.ID)
	if len(actions) != 2 || actions[1] != auditdomain.ActionLogout {
		t.Fatalf("activity = %v", actions)
	}
	if reason := rec.entries[len(rec.entries)-1].details["reason"]; reason != ReasonManual {
		t.Errorf("reason = %v, want manual", reason)
	}
}

func TestLogout_AlreadyOfflineUnchanged(t *testing.T) {
	s, rec, clock := newTestStore()
	ctx := context.Background()
	sess := open(t, s, 900)

	first, err := s.Logout(ctx, sess.ID, map[string]any{"reason": "user_request"})
	if err != nil {
		t.Fatalf("Logout: %v", err)
	}
	clock.advance(time.Hour)
	second, err := s.Logout(ctx, sess.ID, nil)
	if err != nil {
		t.Fatalf("second Logout: %v", err)
	}
	if !second.LogoutAt.Equal(*first.LogoutAt) || *second.Duration != *first.Duration {
		t.Errorf("second logout changed the record: %+v vs %+v", second, first)
	}
	if n := len(rec.actions(sess.ID)); n != 2 {
		t.Errorf("activity entries = %d, want 2", n)
	}
}

func TestLogout_UnknownIsNotFound(t *testing.T) {
	s, _, _ := newTestStore()
	_, err := s.Logout(context.Background(), "missing", nil)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

func TestTouch(t *testing.T) {
	s, rec, clock := newTestStore()
	ctx := context.Background()
	sess := open(t, s, 900)

	clock.advance(time.Minute)
	got, err := s.Touch(ctx, sess.ID, map[string]any{"path": "/profile"})
	if err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if got.ActivityCount != 2 || !got.LastActivity.Equal(clock.now()) || got.Status != domain.StatusOnline {
		t.Errorf("Touch result = %+v", got)
	}
	if actions := rec.actions(sess.ID); actions[len(actions)-1] != auditdomain.ActionActivity {
		t.Errorf("last activity = %v", actions)
	}

	missing, err := s.Touch(ctx, "missing", nil)
	if err != nil || missing != nil {
		t.Errorf("Touch unknown = %v, %v; want nil, nil", missing, err)
	}
}

func TestTerminateAll(t *testing.T) {
	s, _, _ := newTestStore()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		open(t, s, 900)
	}

	res, err := s.TerminateAll(ctx, testUser.ID, "password_changed")
	if err != nil {
		t.Fatalf("TerminateAll: %v", err)
	}
	if res.TerminatedCount != 3 {
		t.Errorf("TerminatedCount = %d, want 3", res.TerminatedCount)
	}
	active, _ := s.ActiveSessions(ctx, testUser.ID)
	if len(active) != 0 {
		t.Errorf("ActiveSessions = %d, want 0", len(active))
	}

	res, err = s.TerminateAll(ctx, testUser.ID, "")
	if err != nil || res.TerminatedCount != 0 {
		t.Errorf("second TerminateAll = %+v, %v; want 0", res, err)
	}
}

func TestReapExpired(t *testing.T) {
	s, rec, clock := newTestStore()
	ctx := context.Background()

	short := open(t, s, 60)
	long := open(t, s, 3600)
	gone := open(t, s, 60)
	if _, err := s.Logout(ctx, gone.ID, nil); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	goneBefore, _ := s.repo.GetByID(ctx, gone.ID)

	clock.advance(10 * time.Minute)
	res, err := s.ReapExpired(ctx)
	if err != nil {
		t.Fatalf("ReapExpired: %v", err)
	}
	if res.ReapedCount != 1 {
		t.Errorf("ReapedCount = %d, want 1", res.ReapedCount)
	}

	got, _ := s.repo.GetByID(ctx, short.ID)
	if got.Status != domain.StatusOffline {
		t.Errorf("expired session status = %q, want offline", got.Status)
	}
	got, _ = s.repo.GetByID(ctx, long.ID)
	if got.Status != domain.StatusOnline {
		t.Errorf("live session status = %q, want online", got.Status)
	}
	got, _ = s.repo.GetByID(ctx, gone.ID)
	if !got.LogoutAt.Equal(*goneBefore.LogoutAt) {
		t.Error("reaper must not touch sessions already offline")
	}
	last := rec.entries[len(rec.entries)-1]
	if last.sessionID != short.ID || last.details["reason"] != ReasonTokenExpired {
		t.Errorf("reap activity = %+v", last)
	}
}

func TestHistory(t *testing.T) {
	s, _, clock := newTestStore()
	ctx := context.Background()
	var ids []string
	for i := 0; i < 4; i++ {
		ids = append(ids, open(t, s, 900).ID)
		clock.advance(time.Minute)
	}
	if _, err := s.Logout(ctx, ids[0], nil); err != nil {
		t.Fatal(err)
	}

	got, err := s.History(ctx, testUser.ID, 3)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("History len = %d, want 3", len(got))
	}
	for i, want := range []string{ids[3], ids[2], ids[1]} {
		if got[i].ID != want {
			t.Errorf("History[%d] = %s, want %s", i, got[i].ID, want)
		}
	}
}

func TestStats(t *testing.T) {
	s, _, clock := newTestStore()
	ctx := context.Background()

	ended := open(t, s, 3600)
	idle := open(t, s, 3600)
	clock.advance(10 * time.Minute)
	if _, err := s.Logout(ctx, ended.ID, nil); err != nil {
		t.Fatal(err)
	}
	clock.advance(25 * time.Minute)
	fresh := open(t, s, 3600)
	if _, err := s.Touch(ctx, fresh.ID, nil); err != nil {
		t.Fatal(err)
	}

	st, err := s.Stats(ctx, testUser.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalSessions != 3 || st.ActiveSessions != 2 || st.IdleSessions != 1 {
		t.Errorf("counts = %+v", st)
	}
	if st.AverageDurationMinutes != 10 {
		t.Errorf("AverageDurationMinutes = %v, want 10", st.AverageDurationMinutes)
	}
	if st.TotalActivity != 4 {
		t.Errorf("TotalActivity = %d, want 4", st.TotalActivity)
	}

	got, _ := s.repo.GetByID(ctx, idle.ID)
	if s.StateAt(got) != domain.StatusIdle {
		t.Errorf("StateAt = %q, want idle", s.StateAt(got))
	}

	all, err := s.Stats(ctx, "")
	if err != nil || all.TotalSessions != 3 {
		t.Errorf("global Stats = %+v, %v", all, err)
	}
}

type failingMarkRepo struct {
	*sessionrepo.MemoryRepository
	failID string
}

func (f *failingMarkRepo) MarkOffline(ctx context.Context, id string, at time.Time) (*domain.Session, bool, error) {
	if id == f.failID {
		return nil, false, fmt.Errorf("write conflict on %s", id)
	}
	return f.MemoryRepository.MarkOffline(ctx, id, at)
}

func TestTerminateAll_PartialFailure(t *testing.T) {
	repo := &failingMarkRepo{MemoryRepository: sessionrepo.NewMemoryRepository()}
	s := NewStore(repo, nil, Config{Concurrency: 2})
	ctx := context.Background()
	var last *domain.Session
	for i := 0; i < 3; i++ {
		sess, err := s.Create(ctx, testUser, TokenInfo{ExpiresIn: 60}, RequestInfo{})
		if err != nil {
			t.Fatal(err)
		}
		last = sess
	}
	repo.failID = last.ID

	res, err := s.TerminateAll(ctx, testUser.ID, "")
	if err == nil {
		t.Fatal("TerminateAll should report the failed logout")
	}
	if res.TerminatedCount != 2 {
		t.Errorf("TerminatedCount = %d, want 2", res.TerminatedCount)
	}
}

func TestStartStop(t *testing.T) {
	repo := sessionrepo.NewMemoryRepository()
	s := NewStore(repo, nil, Config{ReapInterval: time.Millisecond})
	ctx := context.Background()
	sess, err := s.Create(ctx, testUser, TokenInfo{ExpiresIn: 0}, RequestInfo{})
	if err != nil {
		t.Fatal(err)
	}

	s.Start(ctx)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, _ := repo.GetByID(ctx, sess.ID)
		if got.Status == domain.StatusOffline {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	got, _ := repo.GetByID(ctx, sess.ID)
	if got.Status != domain.StatusOffline {
		t.Error("background reaper should log out the expired session")
	}
}
