package tables

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/orlcnr/mesa-core/pkg/db/models"
	"github.com/orlcnr/mesa-core/pkg/enums"
	pkgerrors "github.com/orlcnr/mesa-core/pkg/errors"
	"github.com/orlcnr/mesa-core/pkg/outbox"
	"github.com/orlcnr/mesa-core/pkg/types"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeEmitter struct {
	events []outbox.DomainEvent
}

func (f *fakeEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEmitter) tablePayloads() []outbox.TablePayload {
	var out []outbox.TablePayload
	for _, e := range f.events {
		if payload, ok := e.Data.(outbox.TablePayload); ok {
			out = append(out, payload)
		}
	}
	return out
}

type fakeRepo struct {
	orders map[uuid.UUID]*models.Order
	tables map[uuid.UUID]*models.DiningTable
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders: map[uuid.UUID]*models.Order{},
		tables: map[uuid.UUID]*models.DiningTable{},
	}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) FindOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", id)
	}
	row := *order
	return &row, nil
}

func (f *fakeRepo) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	order := f.orders[id]
	if v, ok := updates["table_id"].(uuid.UUID); ok {
		tableID := v
		order.TableID = &tableID
	}
	return nil
}

func (f *fakeRepo) FindTable(ctx context.Context, id uuid.UUID) (*models.DiningTable, error) {
	return f.FindTableForUpdate(ctx, id)
}

func (f *fakeRepo) FindTableForUpdate(ctx context.Context, id uuid.UUID) (*models.DiningTable, error) {
	table, ok := f.tables[id]
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "table %s not found", id)
	}
	row := *table
	return &row, nil
}

func (f *fakeRepo) UpdateTableStatus(ctx context.Context, id uuid.UUID, status enums.TableStatus) error {
	table, ok := f.tables[id]
	if !ok {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "table %s not found", id)
	}
	table.Status = status
	return nil
}

func (f *fakeRepo) CountActiveByTable(ctx context.Context, tableID uuid.UUID, excludeOrderID uuid.UUID) (int64, error) {
	var count int64
	for _, order := range f.orders {
		if order.TableID == nil || *order.TableID != tableID || order.ID == excludeOrderID {
			continue
		}
		if order.Status.IsTerminal() {
			continue
		}
		count++
	}
	return count, nil
}

type fixture struct {
	repo    *fakeRepo
	emitter *fakeEmitter
	svc     Service
	actor   types.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:    newFakeRepo(),
		emitter: &fakeEmitter{},
		actor:   types.Actor{UserID: uuid.New(), RestaurantID: uuid.New(), Role: "waiter"},
	}
	svc, err := NewService(f.repo, f.emitter, fakeTxRunner{}, nil, nil)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) seedTable(number int, status enums.TableStatus) *models.DiningTable {
	table := &models.DiningTable{
		ID:           uuid.New(),
		RestaurantID: f.actor.RestaurantID,
		Number:       number,
		Status:       status,
	}
	f.repo.tables[table.ID] = table
	return table
}

func (f *fixture) seedOrder(status enums.OrderStatus, tableID *uuid.UUID) *models.Order {
	order := &models.Order{
		ID:           uuid.New(),
		RestaurantID: f.actor.RestaurantID,
		TableID:      tableID,
		Status:       status,
		TotalAmount:  decimal.RequireFromString("45.00"),
	}
	f.repo.orders[order.ID] = order
	return order
}

func TestTransferMovesOrderAndSwapsTables(t *testing.T) {
	f := newFixture(t)
	source := f.seedTable(1, enums.TableStatusOccupied)
	target := f.seedTable(2, enums.TableStatusAvailable)
	order := f.seedOrder(enums.OrderStatusPreparing, &source.ID)

	moved, err := f.svc.Transfer(context.Background(), f.actor, order.ID, target.ID)
	require.NoError(t, err)
	require.NotNil(t, moved.TableID)
	assert.Equal(t, target.ID, *moved.TableID)

	assert.Equal(t, enums.TableStatusAvailable, f.repo.tables[source.ID].Status)
	assert.Equal(t, enums.TableStatusOccupied, f.repo.tables[target.ID].Status)

	payloads := f.emitter.tablePayloads()
	require.Len(t, payloads, 2)
	assert.Equal(t, source.ID, payloads[0].TableID)
	assert.Equal(t, enums.TableStatusAvailable, payloads[0].Status)
	assert.Equal(t, target.ID, payloads[1].TableID)
	assert.Equal(t, enums.TableStatusOccupied, payloads[1].Status)
}

func TestTransferKeepsBusySourceOccupied(t *testing.T) {
	f := newFixture(t)
	source := f.seedTable(1, enums.TableStatusOccupied)
	target := f.seedTable(2, enums.TableStatusAvailable)
	order := f.seedOrder(enums.OrderStatusPending, &source.ID)
	f.seedOrder(enums.OrderStatusPreparing, &source.ID)

	_, err := f.svc.Transfer(context.Background(), f.actor, order.ID, target.ID)
	require.NoError(t, err)

	assert.Equal(t, enums.TableStatusOccupied, f.repo.tables[source.ID].Status)
	payloads := f.emitter.tablePayloads()
	require.Len(t, payloads, 2)
	assert.Equal(t, enums.TableStatusOccupied, payloads[0].Status, "source event reflects the kept occupancy")
}

func TestTransferFromTablelessOrder(t *testing.T) {
	f := newFixture(t)
	target := f.seedTable(2, enums.TableStatusAvailable)
	order := f.seedOrder(enums.OrderStatusPending, nil)

	moved, err := f.svc.Transfer(context.Background(), f.actor, order.ID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, target.ID, *moved.TableID)
	require.Len(t, f.emitter.tablePayloads(), 1, "only the target table changes")
}

func TestTransferPreconditions(t *testing.T) {
	f := newFixture(t)
	source := f.seedTable(1, enums.TableStatusOccupied)
	target := f.seedTable(2, enums.TableStatusAvailable)

	paid := f.seedOrder(enums.OrderStatusPaid, &source.ID)
	_, err := f.svc.Transfer(context.Background(), f.actor, paid.ID, target.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict), "terminal orders do not move")

	order := f.seedOrder(enums.OrderStatusPending, &source.ID)

	_, err = f.svc.Transfer(context.Background(), f.actor, order.ID, uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound), "unknown target table")

	outOfService := f.seedTable(3, enums.TableStatusOutOfService)
	_, err = f.svc.Transfer(context.Background(), f.actor, order.ID, outOfService.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	_, err = f.svc.Transfer(context.Background(), f.actor, order.ID, source.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
	assert.Contains(t, err.Error(), "already on table 1")

	busy := f.seedTable(4, enums.TableStatusOccupied)
	f.seedOrder(enums.OrderStatusPreparing, &busy.ID)
	_, err = f.svc.Transfer(context.Background(), f.actor, order.ID, busy.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
	assert.Contains(t, err.Error(), "active order")

	assert.Equal(t, source.ID, *f.repo.orders[order.ID].TableID, "failed transfers leave the order in place")
}

func TestTransferForeignRestaurant(t *testing.T) {
	f := newFixture(t)
	target := f.seedTable(2, enums.TableStatusAvailable)
	order := f.seedOrder(enums.OrderStatusPending, nil)

	other := types.Actor{UserID: uuid.New(), RestaurantID: uuid.New()}
	_, err := f.svc.Transfer(context.Background(), other, order.ID, target.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
