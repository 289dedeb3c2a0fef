package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewEntity(t *testing.T) {
	e := NewEntity()
	if e.ID == uuid.Nil {
		t.Error("NewEntity() produced nil id")
	}
	if e.CreatedAt.IsZero() {
		t.Error("NewEntity() produced zero CreatedAt")
	}
	if e.UpdatedAt != nil {
		t.Error("NewEntity() should not set UpdatedAt")
	}
	if e.Version != 0 {
		t.Errorf("NewEntity() Version = %d, want 0", e.Version)
	}
}

func TestEntity_MarkUpdated(t *testing.T) {
	e := NewEntity()
	e.MarkUpdated()
	if e.UpdatedAt == nil {
		t.Fatal("MarkUpdated() did not set UpdatedAt")
	}
	if e.Version != 1 {
		t.Errorf("Version = %d, want 1", e.Version)
	}
	first := *e.UpdatedAt

	e.MarkUpdated()
	if e.Version != 2 {
		t.Errorf("Version = %d, want 2", e.Version)
	}
	if e.UpdatedAt.Before(first) {
		t.Error("UpdatedAt moved backwards")
	}
}

func TestEntity_EqualityByIdentity(t *testing.T) {
	a := NewEntity()
	b := NewEntity()
	if a.Equals(&b) {
		t.Error("entities with different ids should not be equal")
	}

	// Same id, different field values: still equal.
	now := time.Now().UTC()
	c := RehydrateEntity(a.ID, now, &now, 7)
	if !a.Equals(&c) {
		t.Error("entities with the same id should be equal regardless of other fields")
	}

	if a.Equals(nil) {
		t.Error("Equals(nil) should be false")
	}
}

func TestRehydrateEntity(t *testing.T) {
	id := uuid.New()
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	e := RehydrateEntity(id, created, &updated, 3)
	if e.ID != id {
		t.Error("RehydrateEntity() did not preserve id")
	}
	if !e.CreatedAt.Equal(created) {
		t.Error("RehydrateEntity() did not preserve CreatedAt")
	}
	if e.UpdatedAt == nil || !e.UpdatedAt.Equal(updated) {
		t.Error("RehydrateEntity() did not preserve UpdatedAt")
	}
	if e.Version != 3 {
		t.Errorf("Version = %d, want 3", e.Version)
	}
}
