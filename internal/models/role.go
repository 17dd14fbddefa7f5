package models

// Role is the primary role derived for an identity.
type Role string

const (
	RoleStudent        Role = "student"
	RoleTeacher        Role = "teacher"
	RoleDepartmentHead Role = "department-head"
	RoleReviewer       Role = "reviewer"
	RoleCommission     Role = "commission"
	RoleAdmin          Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleDepartmentHead, RoleReviewer, RoleCommission, RoleAdmin:
		return true
	}
	return false
}

// Capabilities are the non-exclusive access flags attached to a resolved role.
type Capabilities struct {
	IsTeacher        bool `json:"isTeacher"`
	IsDepartmentHead bool `json:"isDepartmentHead"`
	IsReviewer       bool `json:"isReviewer"`
	IsStudent        bool `json:"isStudent"`
	IsCommission     bool `json:"isCommission"`
	IsAdmin          bool `json:"isAdmin"`
}

// Principal is the fully resolved view of a session user. It is published
// as a whole and never modified afterwards.
type Principal struct {
	Identity     Identity     `json:"identity"`
	Role         Role         `json:"role"`
	Capabilities Capabilities `json:"capabilities"`
}

// TemporaryGrant is what a session keeps after a valid access code: the
// department only, no identity and no role.
type TemporaryGrant struct {
	Department string `json:"department"`
}

// RoleAssignment is an administrator-maintained role for a specific address.
// It takes precedence over e-mail classification.
type RoleAssignment struct {
	Email      string `db:"email" json:"email"`
	Role       Role   `db:"role" json:"role"`
	AssignedBy string `db:"assigned_by" json:"assignedBy"`
}
