package model

import "time"

// Role identifies the kind of actor behind a tracked device.
type Role int

const (
	// RoleAny matches every role when used as a selection criterion. It is
	// never stored on a device record.
	RoleAny Role = iota
	RoleAmbulance
	RoleDriver
	RolePerson
)

// String returns the wire representation of the role.
func (r Role) String() string {
	switch r {
	case RoleAmbulance:
		return "ambulance"
	case RoleDriver:
		return "driver"
	case RolePerson:
		return "person"
	default:
		return "any"
	}
}

// RoleFromString parses the wire representation of a role.
func RoleFromString(s string) (Role, bool) {
	switch s {
	case "ambulance":
		return RoleAmbulance, true
	case "driver":
		return RoleDriver, true
	case "person":
		return RolePerson, true
	default:
		return RoleAny, false
	}
}

// ResponderState tracks whether a driver device is currently assigned to an
// incident. It is only meaningful for RoleDriver; ambulances and persons stay
// StateAvailable.
type ResponderState int

const (
	StateAvailable ResponderState = iota
	StateResponding
)

func (s ResponderState) String() string {
	if s == StateResponding {
		return "responding"
	}
	return "available"
}

// Device represents one tracked mobile device. Records are keyed by their
// opaque push token, which is immutable after creation.
type Device struct {
	Token       string
	Role        Role
	Position    *Position
	State       ResponderState
	LastUpdated time.Time
}

// HasPosition reports whether the device ever reported a location. A device
// without a position never matches a geo query.
func (d Device) HasPosition() bool { return d.Position != nil }
