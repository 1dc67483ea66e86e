package domain

import "fmt"

// RoleProfile captures what differs between the role-specific user stores.
// Everything else is shared by one generic engine.
type RoleProfile struct {
	Role          Role
	Table         string
	InitialStatus UserStatus
	// Titles maps an allowed sub-role to its display title. Empty means no sub-roles.
	Titles         map[string]string
	DefaultSubRole string
}

var profiles = map[Role]RoleProfile{
	RoleClient: {
		Role:          RoleClient,
		Table:         "clients",
		InitialStatus: UserStatusPendingVerification,
	},
	RoleEmployee: {
		Role:          RoleEmployee,
		Table:         "employees",
		InitialStatus: UserStatusOnboarding,
		Titles: map[string]string{
			"support":    "Support Specialist",
			"operations": "Operations Associate",
			"manager":    "Team Manager",
		},
		DefaultSubRole: "support",
	},
	RoleAdmin: {
		Role:          RoleAdmin,
		Table:         "admins",
		InitialStatus: UserStatusPendingVerification,
		Titles: map[string]string{
			"admin":       "Administrator",
			"super_admin": "Super Administrator",
		},
		DefaultSubRole: "admin",
	},
}

// ProfileFor returns the profile for role.
func ProfileFor(role Role) (RoleProfile, error) {
	p, ok := profiles[role]
	if !ok {
		return RoleProfile{}, fmt.Errorf("no profile for role %q", role)
	}
	return p, nil
}

// ResolveSubRole returns the sub-role to store and its title. An empty
// subRole selects the profile default.
func (p RoleProfile) ResolveSubRole(subRole string) (string, string, error) {
	if len(p.Titles) == 0 {
		if subRole != "" {
			return "", "", fmt.Errorf("role %q has no sub-roles", p.Role)
		}
		return "", "", nil
	}
	if subRole == "" {
		subRole = p.DefaultSubRole
	}
	title, ok := p.Titles[subRole]
	if !ok {
		return "", "", fmt.Errorf("unknown %s sub-role %q", p.Role, subRole)
	}
	return subRole, title, nil
}
