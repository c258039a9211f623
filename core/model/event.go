package model

// EventKind discriminates the inbound event variants.
type EventKind int

const (
	KindAmbulance EventKind = iota
	KindPerson
	KindDriverReport
)

func (k EventKind) String() string {
	switch k {
	case KindAmbulance:
		return "ambulance"
	case KindPerson:
		return "person"
	case KindDriverReport:
		return "driver_report"
	default:
		return "unknown"
	}
}

// Event is the tagged union of the three inbound event shapes. Events are
// transient: they are built per request and discarded once dispatched.
type Event interface {
	Kind() EventKind
	Originator() string
}

// AmbulanceEvent is emitted by an ambulance client. Enable=false requests a
// global reset releasing every responding driver; Enable=true dispatches the
// reroute prompt to available drivers near Position.
type AmbulanceEvent struct {
	Token    string
	Enable   bool
	Position *Position
}

func (AmbulanceEvent) Kind() EventKind      { return KindAmbulance }
func (e AmbulanceEvent) Originator() string { return e.Token }

// PersonEvent is a bystander help request. The originator record is always
// upserted; the help broadcast only runs when Message, Position and Token are
// all present.
type PersonEvent struct {
	Token    string
	Message  string
	Position *Position
}

func (PersonEvent) Kind() EventKind      { return KindPerson }
func (e PersonEvent) Originator() string { return e.Token }

// DriverReportEvent is a driver position self-report. It upserts the device
// record and triggers no selection or delivery.
type DriverReportEvent struct {
	Token    string
	Position *Position
}

func (DriverReportEvent) Kind() EventKind      { return KindDriverReport }
func (e DriverReportEvent) Originator() string { return e.Token }
