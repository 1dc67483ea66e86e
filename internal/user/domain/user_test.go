package domain

import "testing"

func TestUserStatus_IsActive(t *testing.T) {
	testCases := []struct {
		status UserStatus
		raw    bool
		want   bool
	}{
		{UserStatusActive, false, true},
		{UserStatusVerified, false, true},
		{UserStatusOnboarding, false, true},
		{UserStatusProfileSetup, false, true},
		{UserStatusTrial, false, true},
		{UserStatusPendingVerification, false, false},
		{UserStatusPendingVerification, true, true},
		{UserStatusSuspended, false, false},
		{UserStatus("made_up"), true, true},
		{UserStatus("made_up"), false, false},
	}
	for _, tc := range testCases {
		if got := tc.status.IsActive(tc.raw); got != tc.want {
			t.Errorf("%q.IsActive(%v) = %v, want %v", tc.status, tc.raw, got, tc.want)
		}
	}
}

func TestUserStatus_IsPending(t *testing.T) {
	for _, s := range PendingStatuses {
		if !s.IsPending() {
			t.Errorf("%q should be pending", s)
		}
	}
	for _, s := range []UserStatus{UserStatusActive, UserStatusVerified, UserStatusDeleted, UserStatusTrial} {
		if s.IsPending() {
			t.Errorf("%q should not be pending", s)
		}
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole(" Employee "); err != nil || r != RoleEmployee {
		t.Errorf("ParseRole = %q, %v", r, err)
	}
	if _, err := ParseRole("guest"); err == nil {
		t.Error("ParseRole(guest) should fail")
	}
}

func TestRoleProfile_ResolveSubRole(t *testing.T) {
	emp, err := ProfileFor(RoleEmployee)
	if err != nil {
		t.Fatalf("ProfileFor: %v", err)
	}
	sub, title, err := emp.ResolveSubRole("")
	if err != nil || sub != "support" || title != "Support Specialist" {
		t.Errorf("default sub-role = %q %q %v", sub, title, err)
	}
	if _, _, err := emp.ResolveSubRole("janitor"); err == nil {
		t.Error("unknown sub-role should fail")
	}

	client, _ := ProfileFor(RoleClient)
	if _, _, err := client.ResolveSubRole("vip"); err == nil {
		t.Error("client has no sub-roles")
	}
	if client.InitialStatus != UserStatusPendingVerification {
		t.Errorf("client InitialStatus = %q", client.InitialStatus)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  A@B.Com "); got != "a@b.com" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}
