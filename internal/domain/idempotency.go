package domain

import "time"

// IdempotencyScopeCreateOrganization scopes keys sent with POST /organizations.
const IdempotencyScopeCreateOrganization = "organizations.create"

// Idempotency records the outcome of a keyed write so that a client retry
// (for example an import script re-posting after a timeout) replays the
// original organization instead of creating a duplicate. Keys are unique per
// (scope, key) and expire after ExpiresAt.
type Idempotency struct {
	ID         string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Scope      string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_idem_scope_key,priority:1"`
	Key        string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_idem_scope_key,priority:2"`
	ResourceID string    `gorm:"type:TEXT NOT NULL"`
	Status     int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt  time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

// Live reports whether the record is still replayable at now.
func (i Idempotency) Live(now time.Time) bool { return now.Before(i.ExpiresAt) }
