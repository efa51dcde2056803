package models

// Order statuses. pending is the initial state, or for_verification when a
// payment proof is attached at checkout.
const (
	OrderStatusPending         = "pending"
	OrderStatusForVerification = "for_verification"
	OrderStatusApproved        = "approved"
	OrderStatusPreparing       = "preparing"
	OrderStatusReadyForPickup  = "ready_for_pickup"
	OrderStatusWaitingForRider = "waiting_for_rider"
	OrderStatusPickedUp        = "picked_up"
	OrderStatusInTransit       = "in_transit"
	OrderStatusDelivered       = "delivered"
	OrderStatusCompleted       = "completed"
	OrderStatusRejected        = "rejected"
	OrderStatusCancelled       = "cancelled"
)

// orderTransitions lists every legal status edge. The delivery/pickup fork out
// of preparing is resolved against the order type in CanTransition.
var orderTransitions = map[string][]string{
	OrderStatusPending:         {OrderStatusForVerification, OrderStatusApproved, OrderStatusRejected, OrderStatusCancelled},
	OrderStatusForVerification: {OrderStatusApproved, OrderStatusRejected, OrderStatusCancelled},
	OrderStatusApproved:        {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing:       {OrderStatusReadyForPickup, OrderStatusWaitingForRider},
	OrderStatusReadyForPickup:  {OrderStatusCompleted},
	OrderStatusWaitingForRider: {OrderStatusPickedUp},
	OrderStatusPickedUp:        {OrderStatusInTransit},
	OrderStatusInTransit:       {OrderStatusDelivered},
	OrderStatusDelivered:       {OrderStatusCompleted},
}

// CanTransition reports whether an order of the given type may move from one
// status to another.
func CanTransition(from, to, orderType string) bool {
	if to == OrderStatusWaitingForRider && orderType != OrderTypeDelivery {
		return false
	}
	if to == OrderStatusReadyForPickup && orderType == OrderTypeDelivery {
		return false
	}
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the legal successors for an order, filtered by type.
func NextStatuses(from, orderType string) []string {
	var out []string
	for _, next := range orderTransitions[from] {
		if CanTransition(from, next, orderType) {
			out = append(out, next)
		}
	}
	return out
}

// IsTerminalStatus reports whether no further transitions exist.
func IsTerminalStatus(status string) bool {
	return len(orderTransitions[status]) == 0
}
