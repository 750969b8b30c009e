package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/orlcnr/mesa-core/internal/menu"
	"github.com/orlcnr/mesa-core/internal/rules"
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

func (f *fakeEmitter) byType(eventType enums.OutboxEventType) []outbox.DomainEvent {
	var out []outbox.DomainEvent
	for _, e := range f.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeRules struct {
	deny map[string]string
}

func (f *fakeRules) Check(ctx context.Context, tx *gorm.DB, restaurantID uuid.UUID, key string, ruleCtx map[string]any) error {
	if reason, ok := f.deny[key]; ok {
		return pkgerrors.New(pkgerrors.CodePolicyDenied, reason)
	}
	return nil
}

type fakeMenu struct {
	items map[uuid.UUID]*models.MenuItem
}

func (f *fakeMenu) WithTx(tx *gorm.DB) menu.Provider { return f }

func (f *fakeMenu) MenuItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "menu item %s not found", id)
	}
	row := *item
	return &row, nil
}

func (f *fakeMenu) RecipeFor(ctx context.Context, menuItemID uuid.UUID) ([]models.Recipe, error) {
	return nil, nil
}

type fakeItem struct {
	models.OrderItem
	deleted bool
}

type fakeRepo struct {
	orders map[uuid.UUID]*models.Order
	items  []*fakeItem
	tables map[uuid.UUID]*models.DiningTable
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders: map[uuid.UUID]*models.Order{},
		tables: map[uuid.UUID]*models.DiningTable{},
	}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Insert(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	stored := *order
	f.orders[order.ID] = &stored
	return nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	stored, ok := f.orders[id]
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", id)
	}
	order := *stored
	items, _ := f.ListItems(ctx, id)
	order.Items = items
	return &order, nil
}

func (f *fakeRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	stored, ok := f.orders[id]
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", id)
	}
	order := *stored
	return &order, nil
}

func (f *fakeRepo) ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var out []models.OrderItem
	for _, item := range f.items {
		if item.deleted || item.OrderID != orderID {
			continue
		}
		out = append(out, item.OrderItem)
	}
	return out, nil
}

func (f *fakeRepo) InsertItem(ctx context.Context, item *models.OrderItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	f.items = append(f.items, &fakeItem{OrderItem: *item})
	return nil
}

func (f *fakeRepo) UpdateItem(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	for _, item := range f.items {
		if item.ID != id || item.deleted {
			continue
		}
		if v, ok := updates["quantity"].(int); ok {
			item.Quantity = v
		}
		if v, ok := updates["total_price"].(decimal.Decimal); ok {
			item.TotalPrice = v
		}
		if v, ok := updates["status"].(enums.OrderItemStatus); ok {
			item.Status = v
		}
	}
	return nil
}

func (f *fakeRepo) DeleteItem(ctx context.Context, id uuid.UUID) error {
	for _, item := range f.items {
		if item.ID == id {
			item.deleted = true
		}
	}
	return nil
}

func (f *fakeRepo) SyncItemStatuses(ctx context.Context, orderID uuid.UUID, status enums.OrderItemStatus) error {
	for _, item := range f.items {
		if item.deleted || item.OrderID != orderID {
			continue
		}
		if item.Status == enums.OrderItemStatusServed ||
			item.Status == enums.OrderItemStatusReady ||
			item.Status == enums.OrderItemStatusCancelled {
			continue
		}
		item.Status = status
	}
	return nil
}

func (f *fakeRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	order, ok := f.orders[id]
	if !ok {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", id)
	}
	if v, ok := updates["status"].(enums.OrderStatus); ok {
		order.Status = v
	}
	if v, ok := updates["total_amount"].(decimal.Decimal); ok {
		order.TotalAmount = v
	}
	if v, ok := updates["notes"].(string); ok {
		order.Notes = &v
	}
	return nil
}

func (f *fakeRepo) CountActiveByTable(ctx context.Context, tableID uuid.UUID, excludeOrderID uuid.UUID) (int64, error) {
	var count int64
	for _, order := range f.orders {
		if order.TableID == nil || *order.TableID != tableID {
			continue
		}
		if order.ID == excludeOrderID {
			continue
		}
		if order.Status.IsTerminal() {
			continue
		}
		count++
	}
	return count, nil
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

type fixture struct {
	repo    *fakeRepo
	menu    *fakeMenu
	rules   *fakeRules
	emitter *fakeEmitter
	svc     Service
	actor   types.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:    newFakeRepo(),
		menu:    &fakeMenu{items: map[uuid.UUID]*models.MenuItem{}},
		rules:   &fakeRules{deny: map[string]string{}},
		emitter: &fakeEmitter{},
		actor:   types.Actor{UserID: uuid.New(), RestaurantID: uuid.New(), Role: "waiter"},
	}
	svc, err := NewService(f.repo, f.menu, f.rules, f.emitter, fakeTxRunner{}, nil, nil)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) seedMenuItem(price string) *models.MenuItem {
	item := &models.MenuItem{
		ID:           uuid.New(),
		RestaurantID: f.actor.RestaurantID,
		Name:         "dish",
		Price:        decimal.RequireFromString(price),
		Available:    true,
	}
	f.menu.items[item.ID] = item
	return item
}

func (f *fixture) seedTable(status enums.TableStatus) *models.DiningTable {
	table := &models.DiningTable{
		ID:           uuid.New(),
		RestaurantID: f.actor.RestaurantID,
		Number:       7,
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
		Type:         enums.OrderTypeDineIn,
		Source:       enums.OrderSourcePOS,
		TotalAmount:  decimal.Zero,
	}
	f.repo.orders[order.ID] = order
	return order
}

func (f *fixture) seedItem(orderID, menuItemID uuid.UUID, qty int, unitPrice string, status enums.OrderItemStatus) *fakeItem {
	price := decimal.RequireFromString(unitPrice)
	item := &fakeItem{OrderItem: models.OrderItem{
		ID:         uuid.New(),
		OrderID:    orderID,
		MenuItemID: menuItemID,
		Quantity:   qty,
		UnitPrice:  price,
		TotalPrice: price.Mul(decimal.NewFromInt(int64(qty))),
		Status:     status,
	}}
	f.repo.items = append(f.repo.items, item)
	return item
}

func TestCreateOccupiesTable(t *testing.T) {
	f := newFixture(t)
	table := f.seedTable(enums.TableStatusAvailable)

	order, err := f.svc.Create(context.Background(), f.actor, CreateInput{
		TableID: &table.ID,
		Type:    enums.OrderTypeDineIn,
		Source:  enums.OrderSourcePOS,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.True(t, order.TotalAmount.IsZero())
	assert.Equal(t, enums.TableStatusOccupied, f.repo.tables[table.ID].Status)
}

func TestCreateRejectsOutOfServiceTable(t *testing.T) {
	f := newFixture(t)
	table := f.seedTable(enums.TableStatusOutOfService)

	_, err := f.svc.Create(context.Background(), f.actor, CreateInput{
		TableID: &table.ID,
		Type:    enums.OrderTypeDineIn,
		Source:  enums.OrderSourcePOS,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestCreateDineInWithoutTableRuleDeny(t *testing.T) {
	f := newFixture(t)
	f.rules.deny[rules.KeyDineInRequiresTable] = "dine-in orders need a table"

	_, err := f.svc.Create(context.Background(), f.actor, CreateInput{
		Type:   enums.OrderTypeDineIn,
		Source: enums.OrderSourcePOS,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePolicyDenied))

	// takeaway without a table never consults the rule
	_, err = f.svc.Create(context.Background(), f.actor, CreateInput{
		Type:   enums.OrderTypeTakeaway,
		Source: enums.OrderSourcePOS,
	})
	require.NoError(t, err)
}

func TestUpdateItemsAddsSnapshotRows(t *testing.T) {
	f := newFixture(t)
	item := f.seedMenuItem("10.50")
	order := f.seedOrder(enums.OrderStatusPending, nil)

	result, err := f.svc.UpdateItems(context.Background(), f.actor, order.ID, []ItemTarget{
		{MenuItemID: item.ID, Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.True(t, result.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.50")))
	assert.True(t, result.TotalAmount.Equal(decimal.RequireFromString("21.00")), "got %s", result.TotalAmount)

	// the menu price moves; raising the quantity adds a new row at the new
	// price and leaves the old snapshot untouched
	f.menu.items[item.ID].Price = decimal.RequireFromString("12.00")
	result, err = f.svc.UpdateItems(context.Background(), f.actor, order.ID, []ItemTarget{
		{MenuItemID: item.ID, Quantity: 3},
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.True(t, result.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.50")))
	assert.True(t, result.Items[1].UnitPrice.Equal(decimal.RequireFromString("12.00")))
	assert.Equal(t, 1, result.Items[1].Quantity)
	assert.True(t, result.TotalAmount.Equal(decimal.RequireFromString("33.00")), "got %s", result.TotalAmount)
}

func TestUpdateItemsReducesNewestFirst(t *testing.T) {
	f := newFixture(t)
	item := f.seedMenuItem("10.00")
	order := f.seedOrder(enums.OrderStatusPending, nil)
	older := f.seedItem(order.ID, item.ID, 3, "10.00", enums.OrderItemStatusPending)
	newer := f.seedItem(order.ID, item.ID, 2, "11.00", enums.OrderItemStatusPending)

	result, err := f.svc.UpdateItems(context.Background(), f.actor, order.ID, []ItemTarget{
		{MenuItemID: item.ID, Quantity: 4},
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, 3, result.Items[0].Quantity)
	assert.Equal(t, 1, result.Items[1].Quantity)
	assert.False(t, older.deleted)
	assert.Equal(t, 1, newer.Quantity)
	assert.True(t, result.TotalAmount.Equal(decimal.RequireFromString("41.00")), "got %s", result.TotalAmount)
}

func TestUpdateItemsFrozenRowsSurvive(t *testing.T) {
	f := newFixture(t)
	item := f.seedMenuItem("10.00")
	order := f.seedOrder(enums.OrderStatusServed, nil)
	served := f.seedItem(order.ID, item.ID, 2, "10.00", enums.OrderItemStatusServed)
	pending := f.seedItem(order.ID, item.ID, 1, "10.00", enums.OrderItemStatusPending)

	// target zero: the pending row goes, the served row caps the reduction
	result, err := f.svc.UpdateItems(context.Background(), f.actor, order.ID, []ItemTarget{
		{MenuItemID: item.ID, Quantity: 0},
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, served.ID, result.Items[0].ID)
	assert.Equal(t, 2, result.Items[0].Quantity)
	assert.True(t, pending.deleted)
	assert.True(t, result.TotalAmount.Equal(decimal.RequireFromString("20.00")), "got %s", result.TotalAmount)

	// editing a served order knocks it back to pending
	assert.Equal(t, enums.OrderStatusPending, result.Status)
	assert.Len(t, f.emitter.byType(enums.EventOrderUpdated), 1)
}

func TestUpdateItemsValidation(t *testing.T) {
	f := newFixture(t)
	item := f.seedMenuItem("10.00")
	order := f.seedOrder(enums.OrderStatusPending, nil)

	_, err := f.svc.UpdateItems(context.Background(), f.actor, order.ID, []ItemTarget{
		{MenuItemID: item.ID, Quantity: 1},
		{MenuItemID: item.ID, Quantity: 2},
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "duplicate targets must be rejected")

	_, err = f.svc.UpdateItems(context.Background(), f.actor, order.ID, []ItemTarget{
		{MenuItemID: item.ID, Quantity: -1},
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestUpdateItemsUnavailableMenuItem(t *testing.T) {
	f := newFixture(t)
	item := f.seedMenuItem("10.00")
	item.Available = false
	order := f.seedOrder(enums.OrderStatusPending, nil)

	_, err := f.svc.UpdateItems(context.Background(), f.actor, order.ID, []ItemTarget{
		{MenuItemID: item.ID, Quantity: 1},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestUpdateItemsTerminalOrder(t *testing.T) {
	f := newFixture(t)
	item := f.seedMenuItem("10.00")
	order := f.seedOrder(enums.OrderStatusPaid, nil)

	_, err := f.svc.UpdateItems(context.Background(), f.actor, order.ID, []ItemTarget{
		{MenuItemID: item.ID, Quantity: 1},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestUpdateStatusForwardOnly(t *testing.T) {
	f := newFixture(t)
	item := f.seedMenuItem("10.00")
	order := f.seedOrder(enums.OrderStatusPending, nil)
	f.seedItem(order.ID, item.ID, 1, "10.00", enums.OrderItemStatusPending)
	served := f.seedItem(order.ID, item.ID, 1, "10.00", enums.OrderItemStatusServed)

	result, err := f.svc.UpdateStatus(context.Background(), f.actor, order.ID, enums.OrderStatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPreparing, result.Status)
	assert.Equal(t, enums.OrderItemStatusPreparing, result.Items[0].Status)
	assert.Equal(t, enums.OrderItemStatusServed, served.Status, "frozen rows are excluded from the sync")

	_, err = f.svc.UpdateStatus(context.Background(), f.actor, order.ID, enums.OrderStatusPreparing)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict), "no lateral moves")

	_, err = f.svc.UpdateStatus(context.Background(), f.actor, order.ID, enums.OrderStatusPending)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "pending is not a target")

	_, err = f.svc.UpdateStatus(context.Background(), f.actor, order.ID, enums.OrderStatusPaid)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "paid belongs to payments")
}

func TestCancelFreesTable(t *testing.T) {
	f := newFixture(t)
	table := f.seedTable(enums.TableStatusOccupied)
	item := f.seedMenuItem("10.00")
	order := f.seedOrder(enums.OrderStatusPending, &table.ID)
	f.seedItem(order.ID, item.ID, 1, "10.00", enums.OrderItemStatusPending)

	result, err := f.svc.Cancel(context.Background(), f.actor, order.ID, "customer left")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, result.Status)
	assert.Equal(t, enums.OrderItemStatusCancelled, result.Items[0].Status)
	assert.Equal(t, enums.TableStatusAvailable, f.repo.tables[table.ID].Status)
	assert.Len(t, f.emitter.byType(enums.EventTableStatusChanged), 1)
	assert.Len(t, f.emitter.byType(enums.EventOrderUpdated), 1)
	require.NotNil(t, result.Notes)
	assert.Contains(t, *result.Notes, "customer left")
}

func TestCancelKeepsTableWithOtherActiveOrder(t *testing.T) {
	f := newFixture(t)
	table := f.seedTable(enums.TableStatusOccupied)
	order := f.seedOrder(enums.OrderStatusPending, &table.ID)
	f.seedOrder(enums.OrderStatusPreparing, &table.ID)

	_, err := f.svc.Cancel(context.Background(), f.actor, order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, enums.TableStatusOccupied, f.repo.tables[table.ID].Status)
	assert.Empty(t, f.emitter.byType(enums.EventTableStatusChanged))
}

func TestCancelAfterPreparationRuleDeny(t *testing.T) {
	f := newFixture(t)
	f.rules.deny[rules.KeyCancelAfterPreparation] = "kitchen already started"
	order := f.seedOrder(enums.OrderStatusPreparing, nil)

	_, err := f.svc.Cancel(context.Background(), f.actor, order.ID, "changed mind")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePolicyDenied))
	assert.Equal(t, enums.OrderStatusPreparing, f.repo.orders[order.ID].Status)

	// pending orders cancel without consulting the rule
	pending := f.seedOrder(enums.OrderStatusPending, nil)
	_, err = f.svc.Cancel(context.Background(), f.actor, pending.ID, "")
	require.NoError(t, err)
}

func TestCancelTerminalOrder(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(enums.OrderStatusCancelled, nil)

	_, err := f.svc.Cancel(context.Background(), f.actor, order.ID, "")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestGetForeignRestaurant(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(enums.OrderStatusPending, nil)

	other := types.Actor{UserID: uuid.New(), RestaurantID: uuid.New()}
	_, err := f.svc.Get(context.Background(), other, order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
