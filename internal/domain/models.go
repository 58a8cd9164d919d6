// Package domain defines the persistence models for the organization
// directory and the value types produced by website metadata enrichment.
// Organizations are mapped with GORM; metadata records are plain values
// that are never persisted.
package domain

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Organization review states. Approval semantics are owned by the admin
// workflow; enrichment only reads the website field.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Organization is a catalogued climate-advocacy organization.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - OrgName: display name; used by fallback banners when no domain resolves.
//   - Website: optional raw URL as entered by an admin (may lack a scheme).
//   - Status: review state (pending, approved, rejected).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
type Organization struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	OrgName   string         `json:"org_name"   gorm:"type:varchar(255);not null;index:idx_org_name"`
	Website   string         `json:"website,omitempty" gorm:"type:varchar(2048)"`
	Status    string         `json:"status"     gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','approved','rejected')"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"index"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Organization.
func (Organization) TableName() string { return "organizations" }

// HasWebsite reports whether the organization carries a non-blank website.
func (o Organization) HasWebsite() bool { return strings.TrimSpace(o.Website) != "" }

// ValidStatus reports whether s is a known review state.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}
