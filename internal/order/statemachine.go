package order

// StateMachine is the order status graph:
//
//	placed -> confirmed -> preparing -> ready -> completed
//	placed, confirmed -> cancelled
//
// CancelFromPreparing additionally allows preparing -> cancelled.
type StateMachine struct {
	CancelFromPreparing bool
}

var forward = map[Status]Status{
	StatusPlaced:    StatusConfirmed,
	StatusConfirmed: StatusPreparing,
	StatusPreparing: StatusReady,
	StatusReady:     StatusCompleted,
}

// Cancellable reports whether an order in status from may still be cancelled.
func (m StateMachine) Cancellable(from Status) bool {
	switch from {
	case StatusPlaced, StatusConfirmed:
		return true
	case StatusPreparing:
		return m.CancelFromPreparing
	}
	return false
}

// CanTransition reports whether to is a legal successor of from.
func (m StateMachine) CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return m.Cancellable(from)
	}
	return forward[from] == to
}

// Successors lists the legal next statuses of from.
func (m StateMachine) Successors(from Status) []Status {
	var out []Status
	if next, ok := forward[from]; ok {
		out = append(out, next)
	}
	if m.Cancellable(from) {
		out = append(out, StatusCancelled)
	}
	return out
}

// queuePriority ranks statuses for the kitchen queue; unknown ones sort last.
func queuePriority(s Status) int {
	for i, a := range ActiveStatuses {
		if a == s {
			return i
		}
	}
	return len(ActiveStatuses)
}
