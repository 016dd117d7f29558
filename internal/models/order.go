package models

import "strings"

// OrderID identifies an order within one engine run
type OrderID int64

// OrderClass is the priority class of an order
type OrderClass string

const (
	ClassStandard OrderClass = "STANDARD"
	ClassPriority OrderClass = "PRIORITY"
)

// OrderStatus represents the state of an order
type OrderStatus string

const (
	StatusPending  OrderStatus = "PENDING"
	StatusAssigned OrderStatus = "ASSIGNED"
	StatusDone     OrderStatus = "DONE"
)

// Order represents an order in the system
type Order struct {
	ID     OrderID     `json:"id"`
	Class  OrderClass  `json:"class"`
	Status OrderStatus `json:"status"`
}

// ParseOrderClass accepts the canonical class names and the legacy
// NORMAL/VIP labels, case-insensitively.
func ParseOrderClass(s string) (OrderClass, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "STANDARD", "NORMAL":
		return ClassStandard, true
	case "PRIORITY", "VIP":
		return ClassPriority, true
	}
	return "", false
}
