package entitymanager_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/annelo/driftsync/internal/entitymanager"
	"github.com/annelo/driftsync/internal/netsync"
)

func TestEntityManager_AddGetRemove(t *testing.T) {
	em := entitymanager.NewEntityManager()
	crate := netsync.NewEntity("crate", mgl64.Vec3{2, 2, 0}, netsync.Dependencies{})

	// Add
	if err := em.Add(crate); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}

	// Duplicate add should error
	if err := em.Add(netsync.NewEntity("crate", mgl64.Vec3{}, netsync.Dependencies{})); err != entitymanager.ErrExists {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	// Get
	e, err := em.Get("crate")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if e != crate {
		t.Fatalf("entity mismatch: got %v", e.ID())
	}

	// All is sorted by id
	if err := em.Add(netsync.NewEntity("barrel", mgl64.Vec3{3, 3, 0}, netsync.Dependencies{})); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	all := em.All()
	if len(all) != 2 || all[0].ID() != "barrel" || all[1].ID() != "crate" {
		t.Fatalf("unexpected order")
	}

	// Remove
	if err := em.Remove("crate"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if _, err := em.Get("crate"); err != entitymanager.ErrNotFound {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
	if err := em.Remove("crate"); err == nil {
		t.Fatalf("expected error removing twice")
	}
	if em.Len() != 1 {
		t.Fatalf("expected 1 entity, got %d", em.Len())
	}
}
