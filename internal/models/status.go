package models

import "fmt"

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusUpcoming  BookingStatus = "upcoming"
	StatusOngoing   BookingStatus = "ongoing"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
	StatusRejected  BookingStatus = "rejected"
)

// NonTerminalStatuses still occupy the car's calendar.
var NonTerminalStatuses = []BookingStatus{StatusPending, StatusUpcoming, StatusOngoing}

var allStatuses = map[BookingStatus]bool{
	StatusPending:   false,
	StatusUpcoming:  false,
	StatusOngoing:   false,
	StatusCompleted: true,
	StatusCancelled: true,
	StatusRejected:  true,
}

func (s BookingStatus) IsValid() bool {
	_, ok := allStatuses[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible.
// Unknown statuses are treated as terminal.
func (s BookingStatus) IsTerminal() bool {
	terminal, ok := allStatuses[s]
	return !ok || terminal
}

func (s BookingStatus) String() string {
	return string(s)
}

func ParseBookingStatus(raw string) (BookingStatus, error) {
	s := BookingStatus(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", raw)
	}
	return s, nil
}

// StatusStrings converts statuses to driver-friendly values.
func StatusStrings(statuses []BookingStatus) []any {
	out := make([]any, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
