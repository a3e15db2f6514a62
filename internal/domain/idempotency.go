// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// Idempotency represents a recorded result of a previously processed
// patient-link mutation, keyed by (link_id, key). It enables safe
// retries for the refresh/verify POST endpoints by letting handlers
// detect a replay instead of re-executing side effects. Patient-link
// endpoints carry no user identity, so the link id itself scopes the
// key.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	LinkID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_link_key,priority:1"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_link_key,priority:2"`
	Operation string    `gorm:"type:TEXT NOT NULL"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
