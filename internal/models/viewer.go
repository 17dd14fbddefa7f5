package models

// Viewer is the caller as seen by the document services: either a resolved
// principal or, for access-code sessions, only the granted department.
type Viewer struct {
	Email           string
	DisplayName     string
	Capabilities    Capabilities
	GrantDepartment string
}

// ViewerFromPrincipal builds a viewer for a standing user.
func ViewerFromPrincipal(p *Principal) Viewer {
	if p == nil {
		return Viewer{}
	}
	return Viewer{Email: p.Identity.NormalizedEmail(), DisplayName: p.Identity.DisplayName, Capabilities: p.Capabilities}
}

// ViewerFromGrant builds a viewer for an access-code session.
func ViewerFromGrant(g *TemporaryGrant) Viewer {
	if g == nil {
		return Viewer{}
	}
	return Viewer{GrantDepartment: g.Department}
}

// AuditName identifies the viewer in audit records.
func (v Viewer) AuditName() string {
	if v.Email != "" {
		return v.Email
	}
	if v.GrantDepartment != "" {
		return "access-code:" + v.GrantDepartment
	}
	return "anonymous"
}
