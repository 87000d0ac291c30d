// internal/models/roles.go

package models

// UserRole is the role carried in access tokens.
type UserRole string

const (
	RoleCitizen    UserRole = "citizen"
	RoleGovernment UserRole = "government"
	RoleAdmin      UserRole = "admin"
)

func (r UserRole) IsValid() bool {
	switch r {
	case RoleCitizen, RoleGovernment, RoleAdmin:
		return true
	}
	return false
}

// IsHigherOrEqual compares roles in the hierarchy citizen < government < admin.
func (r UserRole) IsHigherOrEqual(target UserRole) bool {
	roleHierarchy := map[UserRole]int{
		RoleCitizen:    0,
		RoleGovernment: 1,
		RoleAdmin:      2,
	}

	currentLevel, exists1 := roleHierarchy[r]
	targetLevel, exists2 := roleHierarchy[target]

	if !exists1 || !exists2 {
		return false
	}

	return currentLevel >= targetLevel
}

// IsOfficial reports whether the role may triage, assign and resolve issues.
func (r UserRole) IsOfficial() bool {
	return r.IsHigherOrEqual(RoleGovernment)
}

func (r UserRole) String() string {
	return string(r)
}

func AllRoles() []UserRole {
	return []UserRole{RoleCitizen, RoleGovernment, RoleAdmin}
}

// FromString converts a string into a UserRole.
func FromString(role string) (UserRole, bool) {
	r := UserRole(role)
	if r.IsValid() {
		return r, true
	}
	return "", false
}
