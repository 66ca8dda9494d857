package payment

import "strings"

// OrderStatus is the provider-side lifecycle state of a payment order.
// Values follow the provider's documentation.
type OrderStatus string

const (
	StatusCreated    OrderStatus = "created"
	StatusPending    OrderStatus = "pending"
	StatusAuthorised OrderStatus = "authorised"
	StatusCompleted  OrderStatus = "completed"
	StatusFailed     OrderStatus = "failed"
	StatusCancelled  OrderStatus = "cancelled"
	StatusUnknown    OrderStatus = "unknown"
)

// ParseOrderStatus normalizes a raw provider state. Matching is
// case-insensitive; unrecognized values map to StatusUnknown.
func ParseOrderStatus(raw string) OrderStatus {
	switch OrderStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusCreated:
		return StatusCreated
	case StatusPending:
		return StatusPending
	case StatusAuthorised:
		return StatusAuthorised
	case StatusCompleted:
		return StatusCompleted
	case StatusFailed:
		return StatusFailed
	case StatusCancelled:
		return StatusCancelled
	default:
		return StatusUnknown
	}
}

// Terminal reports whether the order has reached a final state.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) String() string { return string(s) }
