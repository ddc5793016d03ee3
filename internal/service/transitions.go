package service

import (
	"time"

	"carshare/internal/domain"
	"carshare/internal/models"
)

type Action string

const (
	ActionCreate   Action = "create"
	ActionConfirm  Action = "confirm"
	ActionReject   Action = "reject"
	ActionCancel   Action = "cancel"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
)

type Actor string

const (
	ActorCustomer Actor = models.RoleCustomer
	ActorOwner    Actor = models.RoleOwner
	ActorSystem   Actor = "system"
)

type transitionRule struct {
	Actor Actor
	From  []models.BookingStatus
	To    models.BookingStatus
}

// transitionRules is the only place that says who may move a booking where.
// Extra preconditions (cancel window, rejection reason, ownership) are applied
// by the caller on top of these.
var transitionRules = map[Action]transitionRule{
	ActionCreate:   {Actor: ActorCustomer, To: models.StatusPending},
	ActionConfirm:  {Actor: ActorOwner, From: []models.BookingStatus{models.StatusPending}, To: models.StatusUpcoming},
	ActionReject:   {Actor: ActorOwner, From: []models.BookingStatus{models.StatusPending}, To: models.StatusRejected},
	ActionCancel:   {Actor: ActorCustomer, From: []models.BookingStatus{models.StatusPending, models.StatusUpcoming}, To: models.StatusCancelled},
	ActionStart:    {Actor: ActorSystem, From: []models.BookingStatus{models.StatusUpcoming}, To: models.StatusOngoing},
	ActionComplete: {Actor: ActorSystem, From: []models.BookingStatus{models.StatusOngoing}, To: models.StatusCompleted},
}

// CanTransition reports whether any action moves a booking from one status to another.
func CanTransition(from, to models.BookingStatus) bool {
	for _, rule := range transitionRules {
		if rule.To != to {
			continue
		}
		for _, f := range rule.From {
			if f == from {
				return true
			}
		}
	}
	return false
}

// authorize checks the caller's role against the actor of the action.
func authorize(action Action, caller models.Caller) error {
	rule, ok := transitionRules[action]
	if !ok || rule.Actor == ActorSystem {
		return domain.ErrWrongRole
	}
	if string(rule.Actor) != caller.Role {
		return domain.ErrWrongRole
	}
	return nil
}

// cancelSources narrows the cancel rule to the statuses cancelable at now:
// upcoming bookings only while more than window remains before start.
func cancelSources(start, now time.Time, window time.Duration) []models.BookingStatus {
	var out []models.BookingStatus
	for _, s := range transitionRules[ActionCancel].From {
		if s == models.StatusUpcoming && !cancelWindowOpen(start, now, window) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func cancelWindowOpen(start, now time.Time, window time.Duration) bool {
	return start.Sub(now) > window
}
