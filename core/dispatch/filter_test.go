package dispatch

import (
	"testing"

	"github.com/savelife/rescue/core/model"
)

func TestRoleFilter_Select(t *testing.T) {
	devices := []model.Device{
		{Token: "amb", Role: model.RoleAmbulance},
		{Token: "d1", Role: model.RoleDriver},
		{Token: "d2", Role: model.RoleDriver, State: model.StateResponding},
		{Token: "p1", Role: model.RolePerson},
	}

	got := RoleFilter{}.Select(devices, "amb", model.RoleDriver)
	if len(got) != 1 || got[0].Token != "d1" {
		t.Fatalf("driver selection should exclude responding drivers, got %v", got)
	}

	got = RoleFilter{}.Select(devices, "p1", model.RoleAny)
	if len(got) != 3 {
		t.Fatalf("any-role selection should only exclude the originator, got %v", got)
	}
	for _, d := range got {
		if d.Token == "p1" {
			t.Fatalf("originator must never be selected")
		}
	}
}

func TestRoleFilter_RespondingNonDriverStillEligible(t *testing.T) {
	// The responding exclusion only applies to driver selection.
	devices := []model.Device{{Token: "d2", Role: model.RoleDriver, State: model.StateResponding}}
	got := RoleFilter{}.Select(devices, "x", model.RoleAny)
	if len(got) != 1 {
		t.Fatalf("any-role selection should keep responding drivers, got %v", got)
	}
}

func TestPayloadBuilder_Build(t *testing.T) {
	data := map[string]string{"kind": "help"}
	p := PayloadBuilder{}.Build(model.Device{Token: "d1"}, "hello", data)
	if p.Recipient != "d1" || p.Body != "hello" {
		t.Fatalf("unexpected payload %+v", p)
	}
	if p.ID == "" {
		t.Fatalf("payload should carry a generated ID")
	}
	data["kind"] = "mutated"
	if p.Data["kind"] != "help" {
		t.Fatalf("builder must copy the data map")
	}
}
