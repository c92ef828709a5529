// Package order holds the order lifecycle state machine and the pure
// aggregate math shared by every surface that reads or mutates orders.
package order

// Status is the order lifecycle state. Orders are created in
// StatusPendingWhatsApp and move forward one step at a time until a terminal
// state; cancellation is reachable from any non-terminal state.
type Status string

const (
	StatusPendingWhatsApp Status = "pending_whatsapp"
	StatusConfirmed       Status = "confirmed"
	StatusPreparing       Status = "preparing"
	StatusShipped         Status = "shipped"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

// Actor identifies who is attempting an operation. Customers get a stricter
// cancellation window than staff.
type Actor string

const (
	ActorStaff    Actor = "staff"
	ActorCustomer Actor = "customer"
)

// forward maps each status to its single next forward state.
var forward = map[Status]Status{
	StatusPendingWhatsApp: StatusConfirmed,
	StatusConfirmed:       StatusPreparing,
	StatusPreparing:       StatusShipped,
	StatusShipped:         StatusCompleted,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingWhatsApp, StatusConfirmed, StatusPreparing,
		StatusShipped, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Next returns the next forward state, if any.
func (s Status) Next() (Status, bool) {
	next, ok := forward[s]
	return next, ok
}

// CanTransition reports whether moving from -> to is legal: the single next
// forward state, or cancellation from any non-terminal state. Skipping
// intermediate states is not permitted.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	next, ok := forward[from]
	return ok && next == to
}

// Editable reports whether items and shipping cost may be mutated at this
// status. Once shipped, the order is read-only apart from forward
// transitions and cancellation.
func Editable(s Status) bool {
	switch s {
	case StatusPendingWhatsApp, StatusConfirmed, StatusPreparing:
		return true
	}
	return false
}

// CanCancel reports whether the given actor may cancel an order at this
// status. Customers may only back out before staff has started processing.
func CanCancel(s Status, actor Actor) bool {
	if s.Terminal() {
		return false
	}
	if actor == ActorCustomer {
		return s == StatusPendingWhatsApp
	}
	return true
}

// CanConfirm reports whether the order can be confirmed from this status.
func CanConfirm(s Status) bool {
	return s == StatusPendingWhatsApp
}
