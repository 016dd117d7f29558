package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-dispatch/internal/models"
)

func pendingIDs(q *OrderQueue) []models.OrderID {
	ids := make([]models.OrderID, 0)
	for _, o := range q.Pending() {
		ids = append(ids, o.ID)
	}
	return ids
}

func TestOrderQueue_Submit_IDsStrictlyIncrease(t *testing.T) {
	q := NewOrderQueue()

	var last models.OrderID
	for i := 0; i < 20; i++ {
		class := models.ClassStandard
		if i%3 == 0 {
			class = models.ClassPriority
		}
		id := q.Submit(class)
		assert.Greater(t, id, last)
		last = id
	}
	assert.Equal(t, models.OrderID(20), last)
	assert.Len(t, q.Pending(), 20)

	seen := make(map[models.OrderID]bool)
	for _, id := range pendingIDs(q) {
		assert.False(t, seen[id], "duplicate order id %d", id)
		seen[id] = true
	}
}

func TestOrderQueue_Pending_PriorityOvertakesStandard(t *testing.T) {
	q := NewOrderQueue()

	standard := q.Submit(models.ClassStandard)
	priority := q.Submit(models.ClassPriority)

	pending := q.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, priority, pending[0].ID)
	assert.Equal(t, models.ClassPriority, pending[0].Class)
	assert.Equal(t, standard, pending[1].ID)
	assert.Equal(t, models.ClassStandard, pending[1].Class)
}

func TestOrderQueue_Pending_PriorityKeepsFIFO(t *testing.T) {
	q := NewOrderQueue()
	q.Submit(models.ClassStandard) // 1
	q.Submit(models.ClassStandard) // 2
	q.Submit(models.ClassPriority) // 3
	q.Submit(models.ClassPriority) // 4
	q.Submit(models.ClassPriority) // 5

	assert.Equal(t, []models.OrderID{3, 4, 5, 1, 2}, pendingIDs(q))
}

func TestOrderQueue_Pending_StandardAppendsAfterAll(t *testing.T) {
	q := NewOrderQueue()
	q.Submit(models.ClassPriority) // 1
	q.Submit(models.ClassStandard) // 2
	q.Submit(models.ClassPriority) // 3
	q.Submit(models.ClassStandard) // 4

	assert.Equal(t, []models.OrderID{1, 3, 2, 4}, pendingIDs(q))
}

func TestOrderQueue_Pending_DoesNotMutate(t *testing.T) {
	q := NewOrderQueue()
	q.Submit(models.ClassStandard)

	pending := q.Pending()
	pending[0].Status = models.StatusDone

	order, ok := q.Get(pending[0].ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Len(t, q.Pending(), 1)
}

func TestOrderQueue_MarkAssigned_RemovesFromPending(t *testing.T) {
	q := NewOrderQueue()
	first := q.Submit(models.ClassPriority)
	second := q.Submit(models.ClassPriority)

	require.NoError(t, q.MarkAssigned(first))

	assert.Equal(t, []models.OrderID{second}, pendingIDs(q))
	order, _ := q.Get(first)
	assert.Equal(t, models.StatusAssigned, order.Status)
}

func TestOrderQueue_MarkAssigned_NotFound(t *testing.T) {
	q := NewOrderQueue()

	err := q.MarkAssigned(42)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderQueue_MarkAssigned_Twice(t *testing.T) {
	q := NewOrderQueue()
	id := q.Submit(models.ClassStandard)
	require.NoError(t, q.MarkAssigned(id))

	err := q.MarkAssigned(id)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOrderQueue_MarkDone_RequiresAssigned(t *testing.T) {
	q := NewOrderQueue()
	id := q.Submit(models.ClassStandard)

	assert.ErrorIs(t, q.MarkDone(id), ErrInvalidTransition)

	require.NoError(t, q.MarkAssigned(id))
	require.NoError(t, q.MarkDone(id))

	order, _ := q.Get(id)
	assert.Equal(t, models.StatusDone, order.Status)

	// no regression out of DONE
	assert.ErrorIs(t, q.MarkDone(id), ErrInvalidTransition)
	assert.ErrorIs(t, q.MarkAssigned(id), ErrInvalidTransition)
	assert.ErrorIs(t, q.MarkDone(99), ErrOrderNotFound)
}

func TestOrderQueue_ByStatus_ClassThenID(t *testing.T) {
	q := NewOrderQueue()
	s1 := q.Submit(models.ClassStandard)
	p2 := q.Submit(models.ClassPriority)
	s3 := q.Submit(models.ClassStandard)
	p4 := q.Submit(models.ClassPriority)

	for _, id := range []models.OrderID{s3, s1, p4, p2} {
		require.NoError(t, q.MarkAssigned(id))
	}

	assigned := q.ByStatus(models.StatusAssigned)
	ids := make([]models.OrderID, 0, len(assigned))
	for _, o := range assigned {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []models.OrderID{p2, p4, s1, s3}, ids)
	assert.Empty(t, q.ByStatus(models.StatusDone))
	assert.Empty(t, q.ByStatus(models.StatusPending))
}
