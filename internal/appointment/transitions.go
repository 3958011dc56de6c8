package appointment

import "fmt"

var allowedTransitions = map[Status][]Status{
	StatusPending:                   {StatusConfirmed, StatusCancelled},
	StatusConfirmed:                 {StatusCancelled, StatusDoctorRescheduledPending, StatusPatientRescheduledPending, StatusCompleted},
	StatusDoctorRescheduledPending:  {StatusConfirmed, StatusCancelled},
	StatusPatientRescheduledPending: {StatusConfirmed, StatusCancelled},
	StatusCancelled:                 {},
	StatusCompleted:                 {},
}

// ValidateTransition reports whether moving from current to requested is legal.
// When it is not, reason explains why. The table is closed: any pair it does not
// list is rejected.
func ValidateTransition(current, requested Status) (valid bool, reason string) {
	next, ok := allowedTransitions[current]
	if !ok {
		return false, fmt.Sprintf("unknown status %q", current)
	}
	if !requested.Valid() {
		return false, fmt.Sprintf("unknown status %q", requested)
	}
	for _, s := range next {
		if s == requested {
			return true, ""
		}
	}
	if current.Terminal() {
		return false, fmt.Sprintf("appointment is %s and cannot change status", current)
	}
	return false, fmt.Sprintf("cannot change status from %s to %s", current, requested)
}

func checkTransition(current, requested Status) error {
	if ok, reason := ValidateTransition(current, requested); !ok {
		return &Error{Kind: KindInvalidState, Message: reason}
	}
	return nil
}
