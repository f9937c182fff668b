package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeOrderConfirmation NotificationType = "order_confirmation"
	NotificationTypeVendorNewOrder    NotificationType = "vendor_new_order"
	NotificationTypeOrderStatusChange NotificationType = "order_status_change"
	NotificationTypePaymentFailed     NotificationType = "payment_failed"
	NotificationTypeRefundUpdate      NotificationType = "refund_update"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderConfirmation,
	NotificationTypeVendorNewOrder,
	NotificationTypeOrderStatusChange,
	NotificationTypePaymentFailed,
	NotificationTypeRefundUpdate,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

// NotificationChannel is how a notification reaches the recipient.
type NotificationChannel string

const (
	NotificationChannelEmail NotificationChannel = "email"
	NotificationChannelInApp NotificationChannel = "in_app"
)

var validNotificationChannels = []NotificationChannel{
	NotificationChannelEmail,
	NotificationChannelInApp,
}

// IsValid checks whether the channel matches the canonical enum.
func (n NotificationChannel) IsValid() bool {
	for _, candidate := range validNotificationChannels {
		if candidate == n {
			return true
		}
	}
	return false
}
