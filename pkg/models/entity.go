// Package models contains the domain entities and value objects for
// vigilo-engine: companies, establishments, users, inspections and their
// corrective action plans. This layer holds every business rule and invariant
// of the inspection workflow and performs no I/O of its own.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Entity is the embedded base for all domain entities. Entities have
// identity and are mutable; two entities are equal iff their IDs match,
// regardless of other field values. Identity is immutable once set.
type Entity struct {
	ID        uuid.UUID  `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Version increases on every MarkUpdated call. The persistence layer
	// uses it for optimistic concurrency between concurrent writers.
	Version int64 `json:"version"`
}

// NewEntity creates a base with a fresh identity and creation timestamp.
func NewEntity() Entity {
	return Entity{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
	}
}

// RehydrateEntity reconstructs a base from persisted state. Only the
// persistence layer constructs entities with a pre-existing identity.
func RehydrateEntity(id uuid.UUID, createdAt time.Time, updatedAt *time.Time, version int64) Entity {
	return Entity{
		ID:        id,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		Version:   version,
	}
}

// MarkUpdated stamps the entity with the current time and bumps its version.
func (e *Entity) MarkUpdated() {
	now := time.Now().UTC()
	e.UpdatedAt = &now
	e.Version++
}

// Equals reports identity equality.
func (e *Entity) Equals(other *Entity) bool {
	if other == nil {
		return false
	}
	return e.ID == other.ID
}
