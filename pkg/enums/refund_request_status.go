package enums

import "fmt"

// RefundRequestStatus tracks the review state of a refund request.
type RefundRequestStatus string

const (
	RefundRequestStatusPending  RefundRequestStatus = "PENDING"
	RefundRequestStatusApproved RefundRequestStatus = "APPROVED"
	RefundRequestStatusRejected RefundRequestStatus = "REJECTED"
)

var validRefundRequestStatuses = []RefundRequestStatus{
	RefundRequestStatusPending,
	RefundRequestStatusApproved,
	RefundRequestStatusRejected,
}

// String implements fmt.Stringer.
func (r RefundRequestStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RefundRequestStatus.
func (r RefundRequestStatus) IsValid() bool {
	for _, candidate := range validRefundRequestStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRefundRequestStatus converts raw input into a RefundRequestStatus.
func ParseRefundRequestStatus(value string) (RefundRequestStatus, error) {
	for _, candidate := range validRefundRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid refund request status %q", value)
}
