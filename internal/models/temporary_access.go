package models

import "time"

// TemporaryAccess is a time-boxed, code based grant for commission reviewers
// without standing accounts. Only a bcrypt hash of the code is stored.
type TemporaryAccess struct {
	ID         string    `db:"id" json:"id"`
	CodePrefix string    `db:"code_prefix" json:"codePrefix"`
	CodeHash   string    `db:"code_hash" json:"-"`
	Department string    `db:"department" json:"department"`
	IsActive   bool      `db:"is_active" json:"isActive"`
	ExpiresAt  time.Time `db:"expires_at" json:"expiresAt"`
	CreatedBy  string    `db:"created_by" json:"createdBy"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// ValidAt reports whether the grant can be used at now.
func (t TemporaryAccess) ValidAt(now time.Time) bool {
	return t.IsActive && now.Before(t.ExpiresAt)
}

// TemporaryAccessFilter constrains admin listings.
type TemporaryAccessFilter struct {
	Department string
	ActiveOnly bool
	Limit      int
	Offset     int
}
