package service

import (
	"strings"

	"github.com/noah-isme/thesis-workflow-api/internal/models"
	"github.com/noah-isme/thesis-workflow-api/pkg/config"
)

// roleRule maps one predicate over a parsed address to a role.
type roleRule struct {
	name  string
	match func(addr emailAddress) bool
	role  models.Role
}

type emailAddress struct {
	full   string
	local  string
	domain string
}

func parseEmail(email string) emailAddress {
	full := models.NormalizeEmail(email)
	at := strings.LastIndex(full, "@")
	if at < 0 {
		return emailAddress{full: full, local: full}
	}
	return emailAddress{full: full, local: full[:at], domain: full[at+1:]}
}

// RoleResolver classifies e-mail addresses into roles. Rules are evaluated
// in order and the first match wins; the resolver never fails.
type RoleResolver struct {
	rules         []roleRule
	fallback      models.Role
	lecturerTitle string
}

// NewRoleResolver builds the classifier from configuration.
func NewRoleResolver(cfg config.RoleConfig) *RoleResolver {
	guests := make(map[string]struct{}, len(cfg.StudentGuestAddresses))
	for _, addr := range cfg.StudentGuestAddresses {
		guests[models.NormalizeEmail(addr)] = struct{}{}
	}
	staffDomain := strings.ToLower(cfg.StaffDomain)
	excluded := strings.ToLower(cfg.StaffExcludedMarker)
	generalStaff := strings.ToLower(cfg.GeneralStaffDomain)
	guestDomain := strings.ToLower(cfg.GuestDomain)
	studentDomain := strings.ToLower(cfg.StudentDomain)

	rules := []roleRule{
		{name: "admin-marker", role: models.RoleAdmin, match: func(a emailAddress) bool {
			return strings.Contains(a.local, "admin") || strings.Contains(a.local, "super")
		}},
		{name: "head-marker", role: models.RoleDepartmentHead, match: func(a emailAddress) bool {
			return strings.Contains(a.local, "head")
		}},
		{name: "teacher-marker", role: models.RoleTeacher, match: func(a emailAddress) bool {
			return strings.Contains(a.local, "teacher")
		}},
		{name: "student-marker", role: models.RoleStudent, match: func(a emailAddress) bool {
			return strings.Contains(a.local, "student")
		}},
		{name: "staff-domain", role: models.RoleTeacher, match: func(a emailAddress) bool {
			if !domainWithin(a.domain, staffDomain) {
				return false
			}
			return excluded == "" || !strings.Contains(a.domain, excluded)
		}},
		{name: "general-staff-domain", role: models.RoleTeacher, match: func(a emailAddress) bool {
			return domainWithin(a.domain, generalStaff)
		}},
		{name: "guest-tenant", role: models.RoleReviewer, match: func(a emailAddress) bool {
			return guestDomain != "" && a.domain == guestDomain
		}},
		{name: "student-domain", role: models.RoleStudent, match: func(a emailAddress) bool {
			if _, ok := guests[a.full]; ok {
				return true
			}
			return domainWithin(a.domain, studentDomain)
		}},
	}

	return &RoleResolver{rules: rules, fallback: models.RoleReviewer, lecturerTitle: cfg.LecturerTitle}
}

// Resolve returns the primary role for email.
func (r *RoleResolver) Resolve(email string) models.Role {
	role, _ := r.resolve(email)
	return role
}

// resolve also reports the name of the rule that matched, for logging.
func (r *RoleResolver) resolve(email string) (models.Role, string) {
	addr := parseEmail(email)
	if addr.full == "" {
		return r.fallback, "fallback"
	}
	for _, rule := range r.rules {
		if rule.match(addr) {
			return rule.role, rule.name
		}
	}
	return r.fallback, "fallback"
}

// Capabilities derives the access flags for a role. Teacher capability is the
// OR of the role itself, the lecturer job title and department-head status.
func (r *RoleResolver) Capabilities(role models.Role, jobTitle string, isDepartmentHead bool) models.Capabilities {
	caps := models.Capabilities{
		IsDepartmentHead: role == models.RoleDepartmentHead || isDepartmentHead,
		IsReviewer:       role == models.RoleReviewer,
		IsStudent:        role == models.RoleStudent,
		IsCommission:     role == models.RoleCommission,
		IsAdmin:          role == models.RoleAdmin,
	}
	caps.IsTeacher = role == models.RoleTeacher ||
		caps.IsDepartmentHead ||
		r.isLecturer(jobTitle)
	return caps
}

func (r *RoleResolver) isLecturer(jobTitle string) bool {
	title := strings.TrimSpace(jobTitle)
	return r.lecturerTitle != "" && title != "" && strings.EqualFold(title, r.lecturerTitle)
}

func domainWithin(domain, parent string) bool {
	if domain == "" || parent == "" {
		return false
	}
	return domain == parent || strings.HasSuffix(domain, "."+parent)
}
