package orders

import "github.com/marketsideco/marketside-backend/pkg/enums"

// allowedTransitions is the single source of truth for the order lifecycle.
// Anything absent here is rejected, whatever the caller's role.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusPaid, enums.OrderStatusCancelled},
	enums.OrderStatusPaid:       {enums.OrderStatusProcessing, enums.OrderStatusCancelled, enums.OrderStatusRefunded},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCancelled, enums.OrderStatusRefunded},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered, enums.OrderStatusRefunded},
	enums.OrderStatusDelivered:  {enums.OrderStatusRefunded},
}

// vendorAdvances are the moves a vendor may make on orders carrying their
// items. Everything else stays with the platform or the payment pipeline.
var vendorAdvances = map[enums.OrderStatus]enums.OrderStatus{
	enums.OrderStatusPaid:       enums.OrderStatusProcessing,
	enums.OrderStatusProcessing: enums.OrderStatusShipped,
	enums.OrderStatusShipped:    enums.OrderStatusDelivered,
}

// CanTransition reports whether the lifecycle permits moving from one
// status to another.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// CanCancel reports whether a customer may still void the order. Once a
// vendor ships, cancellation closes and the refund path takes over.
func CanCancel(status enums.OrderStatus) bool {
	return status == enums.OrderStatusPending ||
		status == enums.OrderStatusPaid ||
		status == enums.OrderStatusProcessing
}

// NextVendorStatus returns the single forward move a vendor may make from
// the given status, or false when the vendor has nothing to advance.
func NextVendorStatus(from enums.OrderStatus) (enums.OrderStatus, bool) {
	next, ok := vendorAdvances[from]
	return next, ok
}

// CanRequestRefund reports whether the order is in a state where the
// customer may open a refund request. Before payment there is nothing to
// refund; after a refund or cancellation there is nothing left to claim.
func CanRequestRefund(status enums.OrderStatus) bool {
	return status == enums.OrderStatusPaid ||
		status == enums.OrderStatusProcessing ||
		status == enums.OrderStatusShipped
}

// NeedsRestock reports whether cancelling from the given status must
// return stock to listings. Pending orders already hold decremented stock
// too, so every cancellable status restocks.
func NeedsRestock(status enums.OrderStatus) bool {
	return CanCancel(status)
}
