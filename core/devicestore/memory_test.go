package devicestore

import (
	"errors"
	"testing"

	"github.com/savelife/rescue/core/model"
)

func TestMemoryStore_GetUnknown(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get("ghost"); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
}

func TestMemoryStore_UpsertAndGet(t *testing.T) {
	s := NewMemoryStore()
	pos := model.Position{Lat: 1, Lon: 2}
	s.Upsert(model.Device{Token: "d1", Role: model.RoleDriver, Position: &pos})
	d, err := s.Get("d1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.Role != model.RoleDriver || d.Position == nil || d.Position.Lat != 1 {
		t.Fatalf("unexpected device %+v", d)
	}
	if d.LastUpdated.IsZero() {
		t.Fatalf("upsert should stamp LastUpdated")
	}
}

func TestMemoryStore_UpsertReport(t *testing.T) {
	s := NewMemoryStore()

	// First contact creates the record available.
	s.UpsertReport("d1", model.RoleDriver, &model.Position{Lat: 1, Lon: 2})
	d, err := s.Get("d1")
	if err != nil || d.Role != model.RoleDriver || d.State != model.StateAvailable {
		t.Fatalf("unexpected record %+v (%v)", d, err)
	}

	// A report after a commit moves the position but keeps the state.
	if ok, _ := s.CompareAndSetState("d1", model.StateAvailable, model.StateResponding); !ok {
		t.Fatalf("setup transition failed")
	}
	s.UpsertReport("d1", model.RoleDriver, &model.Position{Lat: 3, Lon: 4})
	d, _ = s.Get("d1")
	if d.State != model.StateResponding {
		t.Fatalf("report overwrote the committed state: %v", d.State)
	}
	if d.Position == nil || d.Position.Lat != 3 {
		t.Fatalf("position not updated: %+v", d.Position)
	}

	// Role is fixed at creation.
	s.UpsertReport("d1", model.RolePerson, nil)
	d, _ = s.Get("d1")
	if d.Role != model.RoleDriver {
		t.Fatalf("report changed the role: %v", d.Role)
	}

	// A report without a position keeps the last known one.
	if d.Position == nil || d.Position.Lat != 3 {
		t.Fatalf("position lost on empty report: %+v", d.Position)
	}
}

func TestMemoryStore_CompareAndSetState(t *testing.T) {
	s := NewMemoryStore()
	s.Upsert(model.Device{Token: "d1", Role: model.RoleDriver})

	ok, err := s.CompareAndSetState("d1", model.StateAvailable, model.StateResponding)
	if err != nil || !ok {
		t.Fatalf("expected transition to apply, got ok=%v err=%v", ok, err)
	}
	d, _ := s.Get("d1")
	if d.State != model.StateResponding {
		t.Fatalf("state not updated: %v", d.State)
	}

	// Second transition with a stale expectation must lose.
	ok, err = s.CompareAndSetState("d1", model.StateAvailable, model.StateResponding)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("stale compare-and-set should fail")
	}

	if _, err := s.CompareAndSetState("ghost", model.StateAvailable, model.StateResponding); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
}

func TestMemoryStore_ResetAllResponding(t *testing.T) {
	s := NewMemoryStore()
	s.Upsert(model.Device{Token: "d1", Role: model.RoleDriver, State: model.StateResponding})
	s.Upsert(model.Device{Token: "d2", Role: model.RoleDriver, State: model.StateResponding})
	s.Upsert(model.Device{Token: "d3", Role: model.RoleDriver})

	if n := s.ResetAllResponding(); n != 2 {
		t.Fatalf("expected 2 resets, got %d", n)
	}
	for _, tok := range []string{"d1", "d2", "d3"} {
		d, _ := s.Get(tok)
		if d.State != model.StateAvailable {
			t.Fatalf("%s still %v after reset", tok, d.State)
		}
	}
	// Reset is idempotent.
	if n := s.ResetAllResponding(); n != 0 {
		t.Fatalf("second reset should release nothing, got %d", n)
	}
}

func TestMemoryStore_ListSorted(t *testing.T) {
	s := NewMemoryStore()
	for _, tok := range []string{"c", "a", "b"} {
		s.Upsert(model.Device{Token: tok})
	}
	list := s.List()
	if len(list) != 3 || list[0].Token != "a" || list[2].Token != "c" {
		t.Fatalf("unexpected listing order: %v", list)
	}
}
