package orders

import (
	"github.com/marketsideco/marketside-backend/pkg/db/models"
	"github.com/marketsideco/marketside-backend/pkg/enums"
)

// Authorization predicates. Each one combines ownership with the lifecycle
// table so handlers never compare role strings inline.

// CanActorView reports whether the actor may read the order at all.
func CanActorView(order *models.Order, actor Actor) bool {
	if actor.Role == enums.UserRoleAdmin {
		return true
	}
	return order.CustomerID == actor.ID || order.VendorID == actor.ID
}

// CanActorCancel reports whether the actor may void the order. Only the
// owning customer cancels; vendors and admins go through the refund path.
func CanActorCancel(order *models.Order, actor Actor) bool {
	return order.CustomerID == actor.ID &&
		actor.Role == enums.UserRoleCustomer &&
		CanCancel(order.Status)
}

// CanActorAdvance reports whether the actor may push the order forward.
func CanActorAdvance(order *models.Order, actor Actor) bool {
	if order.VendorID != actor.ID || actor.Role != enums.UserRoleVendor {
		return false
	}
	_, ok := NextVendorStatus(order.Status)
	return ok
}

// CanActorRequestRefund reports whether the actor may open a refund request.
func CanActorRequestRefund(order *models.Order, actor Actor) bool {
	return order.CustomerID == actor.ID &&
		actor.Role == enums.UserRoleCustomer &&
		CanRequestRefund(order.Status)
}

// CanActorDecideRefund reports whether the actor may rule on refund requests.
func CanActorDecideRefund(actor Actor) bool {
	return actor.Role == enums.UserRoleAdmin
}
