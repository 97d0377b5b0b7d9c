package domain

// Status is the order lifecycle state.
type Status string

const (
	StatusDraft          Status = "draft"
	StatusSubmitted      Status = "submitted"
	StatusPendingPayment Status = "pending_payment"
	StatusShipped        Status = "shipped"
	StatusCancelled      Status = "cancelled"
)

// Event is a lifecycle action requested by a dealer or staff member.
type Event string

const (
	EventSubmit  Event = "submit"
	EventConfirm Event = "confirm"
	EventCancel  Event = "cancel"
	EventShip    Event = "ship"
	// EventDelete is not a state transition but shares the error shape.
	EventDelete Event = "delete"
)

var validNext = map[Event]map[Status]Status{
	EventSubmit:  {StatusDraft: StatusSubmitted},
	EventConfirm: {StatusSubmitted: StatusPendingPayment},
	EventCancel:  {StatusSubmitted: StatusCancelled, StatusPendingPayment: StatusCancelled},
	EventShip:    {StatusPendingPayment: StatusShipped},
}

// staffOnly marks events reserved for staff actors.
var staffOnly = map[Event]bool{
	EventConfirm: true,
	EventCancel:  true,
	EventShip:    true,
}

// Next resolves the target status for an event, or InvalidTransitionError
// when the event is not allowed from the current status.
func Next(from Status, ev Event) (Status, error) {
	to, ok := validNext[ev][from]
	if !ok {
		return "", &InvalidTransitionError{From: from, Event: ev}
	}
	return to, nil
}

func CanTransition(from Status, ev Event) bool {
	_, ok := validNext[ev][from]
	return ok
}

func StaffOnly(ev Event) bool { return staffOnly[ev] }

// Terminal reports whether no further lifecycle event applies.
func Terminal(s Status) bool {
	return s == StatusShipped || s == StatusCancelled
}

// ReservationHeld reports whether an order in this status still owns its
// stock reservation. Only cancel hands the stock back; shipping consumes
// the reservation without releasing it.
func ReservationHeld(s Status) bool {
	return s == StatusSubmitted || s == StatusPendingPayment || s == StatusShipped
}

// Deletable statuses carry no live reservation: drafts never reserved,
// cancelled orders already released.
func Deletable(s Status) bool {
	return s == StatusDraft || s == StatusCancelled
}
