package queue

import (
	"errors"
	"fmt"
	"sort"

	"order-dispatch/internal/models"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// OrderQueue holds every order of a run. Pending orders live in two FIFO
// sub-queues and the priority one is always drained first.
//
// OrderQueue is not safe for concurrent use; the engine serializes access.
type OrderQueue struct {
	nextID   models.OrderID
	orders   map[models.OrderID]*models.Order
	priority []*models.Order
	standard []*models.Order
	// every order in submission order, retained for snapshots
	history []*models.Order
}

// NewOrderQueue creates an empty queue whose first order id is 1
func NewOrderQueue() *OrderQueue {
	return &OrderQueue{
		nextID: 1,
		orders: make(map[models.OrderID]*models.Order),
	}
}

// Submit appends a new PENDING order of the given class and returns its id
func (q *OrderQueue) Submit(class models.OrderClass) models.OrderID {
	order := &models.Order{
		ID:     q.nextID,
		Class:  class,
		Status: models.StatusPending,
	}
	q.nextID++

	q.orders[order.ID] = order
	q.history = append(q.history, order)

	if class == models.ClassPriority {
		q.priority = append(q.priority, order)
	} else {
		q.standard = append(q.standard, order)
	}

	return order.ID
}

// Pending returns all PENDING orders in dispatch order
func (q *OrderQueue) Pending() []models.Order {
	result := make([]models.Order, 0, len(q.priority)+len(q.standard))
	for _, o := range q.priority {
		result = append(result, *o)
	}
	for _, o := range q.standard {
		result = append(result, *o)
	}
	return result
}

// Get returns a copy of the order with the given id
func (q *OrderQueue) Get(id models.OrderID) (models.Order, bool) {
	order, ok := q.orders[id]
	if !ok {
		return models.Order{}, false
	}
	return *order, true
}

// MarkAssigned moves a PENDING order to ASSIGNED
func (q *OrderQueue) MarkAssigned(id models.OrderID) error {
	order, ok := q.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
	}
	if order.Status != models.StatusPending {
		return fmt.Errorf("order %d %s -> %s: %w", id, order.Status, models.StatusAssigned, ErrInvalidTransition)
	}

	if order.Class == models.ClassPriority {
		q.priority = removeOrder(q.priority, id)
	} else {
		q.standard = removeOrder(q.standard, id)
	}
	order.Status = models.StatusAssigned
	return nil
}

// MarkDone moves an ASSIGNED order to DONE
func (q *OrderQueue) MarkDone(id models.OrderID) error {
	order, ok := q.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
	}
	if order.Status != models.StatusAssigned {
		return fmt.Errorf("order %d %s -> %s: %w", id, order.Status, models.StatusDone, ErrInvalidTransition)
	}
	order.Status = models.StatusDone
	return nil
}

// ByStatus returns every order in the given status, PRIORITY class first and
// then by id
func (q *OrderQueue) ByStatus(status models.OrderStatus) []models.Order {
	if status == models.StatusPending {
		return q.Pending()
	}

	result := make([]models.Order, 0)
	for _, o := range q.history {
		if o.Status == status {
			result = append(result, *o)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Class != result[j].Class {
			return result[i].Class == models.ClassPriority
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func removeOrder(orders []*models.Order, id models.OrderID) []*models.Order {
	for i, o := range orders {
		if o.ID == id {
			return append(orders[:i], orders[i+1:]...)
		}
	}
	return orders
}
