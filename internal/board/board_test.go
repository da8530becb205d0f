package board

import (
	"errors"
	"testing"

	"github.com/iurnickita/orderexport/internal/model"
	"github.com/stretchr/testify/require"
)

func testOrders() []model.Order {
	return []model.Order{
		{ID: 1, Number: "1", Status: model.OrderStatusCanBeExported},
		{ID: 2, Number: "2", Status: model.OrderStatusError},
		{ID: 3, Number: "3", Status: model.OrderStatusCanBeExported},
	}
}

func TestBoardPublishRejectsStaleGeneration(t *testing.T) {
	b := New()
	b.Load(testOrders())

	oldGen, _, err := b.BeginValidation()
	require.NoError(t, err)

	// пользователь перезагрузил список во время прохода
	newGen := b.Load(testOrders())
	require.NotEqual(t, oldGen, newGen)

	require.False(t, b.Publish(oldGen, model.Order{ID: 1, Status: model.OrderStatusExported}))
	b.Finish(oldGen, errors.New("late"))

	snapshot := b.Snapshot()
	require.Equal(t, model.OrderStatusCanBeExported, snapshot.Orders[0].Status)
	require.False(t, snapshot.IsValidatingData)
	require.Empty(t, snapshot.LastError)
}

func TestBoardValidationFlags(t *testing.T) {
	b := New()
	b.Load(testOrders())

	gen, orders, err := b.BeginValidation()
	require.NoError(t, err)
	require.Len(t, orders, 3)
	require.True(t, b.Snapshot().IsValidatingData)

	_, _, err = b.BeginValidation()
	require.ErrorIs(t, err, ErrBusy)
	_, _, err = b.BeginExport([]int64{1})
	require.ErrorIs(t, err, ErrBusy)

	require.True(t, b.Publish(gen, model.Order{ID: 2, Number: "2", Status: model.OrderStatusStockEnough}))
	b.Finish(gen, nil)

	snapshot := b.Snapshot()
	require.False(t, snapshot.IsValidatingData)
	require.Equal(t, model.OrderStatusStockEnough, snapshot.Orders[1].Status)
}

func TestBoardBeginExport(t *testing.T) {
	b := New()
	b.Load(testOrders())

	_, _, err := b.BeginExport(nil)
	require.ErrorIs(t, err, ErrEmptySelection)
	_, _, err = b.BeginExport([]int64{42})
	require.ErrorIs(t, err, ErrEmptySelection)

	gen, orders, err := b.BeginExport([]int64{3, 1})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 3}, []int64{orders[0].ID, orders[1].ID})
	require.True(t, b.Snapshot().IsSubmitting)

	// повторная отправка того же выбора
	_, _, err = b.BeginExport([]int64{3, 1})
	require.ErrorIs(t, err, ErrBusy)

	b.Finish(gen, nil)
	require.False(t, b.Snapshot().IsSubmitting)
}

func TestBoardSnapshotIsCopy(t *testing.T) {
	b := New()
	b.Load(testOrders())

	snapshot := b.Snapshot()
	snapshot.Orders[0].Status = model.OrderStatusError

	require.Equal(t, model.OrderStatusCanBeExported, b.Snapshot().Orders[0].Status)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	b := r.Get("a")
	require.Same(t, b, r.Get("a"))

	r.Drop("a")
	require.NotSame(t, b, r.Get("a"))
}
