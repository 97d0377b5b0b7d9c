package domain

import (
	"errors"
	"testing"
)

func TestNext(t *testing.T) {
	cases := []struct {
		from Status
		ev   Event
		want Status
		ok   bool
	}{
		{StatusDraft, EventSubmit, StatusSubmitted, true},
		{StatusSubmitted, EventConfirm, StatusPendingPayment, true},
		{StatusSubmitted, EventCancel, StatusCancelled, true},
		{StatusPendingPayment, EventCancel, StatusCancelled, true},
		{StatusPendingPayment, EventShip, StatusShipped, true},

		{StatusDraft, EventConfirm, "", false},
		{StatusDraft, EventCancel, "", false},
		{StatusDraft, EventShip, "", false},
		{StatusSubmitted, EventSubmit, "", false},
		{StatusSubmitted, EventShip, "", false},
		{StatusPendingPayment, EventSubmit, "", false},
		{StatusPendingPayment, EventConfirm, "", false},
		{StatusShipped, EventCancel, "", false},
		{StatusShipped, EventShip, "", false},
		{StatusCancelled, EventCancel, "", false},
		{StatusCancelled, EventSubmit, "", false},
	}

	for _, c := range cases {
		got, err := Next(c.from, c.ev)
		if c.ok {
			if err != nil {
				t.Errorf("Next(%s, %s): unexpected error %v", c.from, c.ev, err)
				continue
			}
			if got != c.want {
				t.Errorf("Next(%s, %s) = %s, want %s", c.from, c.ev, got, c.want)
			}
			continue
		}
		var inv *InvalidTransitionError
		if !errors.As(err, &inv) {
			t.Errorf("Next(%s, %s): want InvalidTransitionError, got %v", c.from, c.ev, err)
			continue
		}
		if inv.From != c.from || inv.Event != c.ev {
			t.Errorf("Next(%s, %s): error carries (%s, %s)", c.from, c.ev, inv.From, inv.Event)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []Status{StatusShipped, StatusCancelled} {
		if !Terminal(s) {
			t.Errorf("Terminal(%s) = false", s)
		}
		for _, ev := range []Event{EventSubmit, EventConfirm, EventCancel, EventShip} {
			if CanTransition(s, ev) {
				t.Errorf("CanTransition(%s, %s) = true", s, ev)
			}
		}
	}
	for _, s := range []Status{StatusDraft, StatusSubmitted, StatusPendingPayment} {
		if Terminal(s) {
			t.Errorf("Terminal(%s) = true", s)
		}
	}
}

func TestReservationHeld(t *testing.T) {
	for _, s := range []Status{StatusSubmitted, StatusPendingPayment, StatusShipped} {
		if !ReservationHeld(s) {
			t.Errorf("ReservationHeld(%s) = false", s)
		}
	}
	for _, s := range []Status{StatusDraft, StatusCancelled} {
		if ReservationHeld(s) {
			t.Errorf("ReservationHeld(%s) = true", s)
		}
	}
}

func TestStaffOnly(t *testing.T) {
	if StaffOnly(EventSubmit) {
		t.Error("submit must be available to dealers")
	}
	for _, ev := range []Event{EventConfirm, EventCancel, EventShip} {
		if !StaffOnly(ev) {
			t.Errorf("StaffOnly(%s) = false", ev)
		}
	}
}

func TestDeletable(t *testing.T) {
	cases := map[Status]bool{
		StatusDraft:          true,
		StatusCancelled:      true,
		StatusSubmitted:      false,
		StatusPendingPayment: false,
		StatusShipped:        false,
	}
	for s, want := range cases {
		if got := Deletable(s); got != want {
			t.Errorf("Deletable(%s) = %v, want %v", s, got, want)
		}
	}
}
