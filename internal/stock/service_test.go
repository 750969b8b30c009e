package stock

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/orlcnr/mesa-core/internal/menu"
	"github.com/orlcnr/mesa-core/pkg/db/models"
	"github.com/orlcnr/mesa-core/pkg/enums"
	pkgerrors "github.com/orlcnr/mesa-core/pkg/errors"
	"github.com/orlcnr/mesa-core/pkg/types"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeRepo struct {
	ingredients map[uuid.UUID]*models.Ingredient
	stocks      map[uuid.UUID]*models.Stock
	movements   []models.StockMovement
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		ingredients: map[uuid.UUID]*models.Ingredient{},
		stocks:      map[uuid.UUID]*models.Stock{},
	}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) FindIngredientForUpdate(ctx context.Context, id uuid.UUID) (*models.Ingredient, error) {
	ingredient, ok := f.ingredients[id]
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "ingredient %s not found", id)
	}
	row := *ingredient
	return &row, nil
}

func (f *fakeRepo) FindStockForUpdate(ctx context.Context, ingredientID uuid.UUID) (*models.Stock, error) {
	stockRow, ok := f.stocks[ingredientID]
	if !ok {
		stockRow = &models.Stock{IngredientID: ingredientID, Quantity: decimal.Zero}
		f.stocks[ingredientID] = stockRow
	}
	row := *stockRow
	return &row, nil
}

func (f *fakeRepo) UpdateIngredient(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	ingredient := f.ingredients[id]
	if v, ok := updates["average_cost"].(decimal.Decimal); ok {
		ingredient.AverageCost = &v
	}
	if v, ok := updates["last_price"].(decimal.Decimal); ok {
		ingredient.LastPrice = &v
	}
	if v, ok := updates["previous_price"].(*decimal.Decimal); ok {
		ingredient.PreviousPrice = v
	}
	return nil
}

func (f *fakeRepo) UpdateStockQuantity(ctx context.Context, ingredientID uuid.UUID, quantity decimal.Decimal) error {
	stockRow, ok := f.stocks[ingredientID]
	if !ok {
		stockRow = &models.Stock{IngredientID: ingredientID}
		f.stocks[ingredientID] = stockRow
	}
	stockRow.Quantity = quantity
	return nil
}

func (f *fakeRepo) InsertMovement(ctx context.Context, movement *models.StockMovement) error {
	if movement.ID == uuid.Nil {
		movement.ID = uuid.New()
	}
	f.movements = append(f.movements, *movement)
	return nil
}

func (f *fakeRepo) ListMovementsByIngredient(ctx context.Context, ingredientID uuid.UUID) ([]models.StockMovement, error) {
	var out []models.StockMovement
	for _, m := range f.movements {
		if m.IngredientID == ingredientID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeMenu struct {
	items   map[uuid.UUID]*models.MenuItem
	recipes map[uuid.UUID][]models.Recipe
}

func (f *fakeMenu) WithTx(tx *gorm.DB) menu.Provider { return f }

func (f *fakeMenu) MenuItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "menu item %s not found", id)
	}
	return item, nil
}

func (f *fakeMenu) RecipeFor(ctx context.Context, menuItemID uuid.UUID) ([]models.Recipe, error) {
	return f.recipes[menuItemID], nil
}

func testActor() types.Actor {
	return types.Actor{UserID: uuid.New(), RestaurantID: uuid.New()}
}

func seedIngredient(t *testing.T, repo *fakeRepo, restaurantID uuid.UUID, quantity string) *models.Ingredient {
	t.Helper()
	ingredient := &models.Ingredient{
		ID:           uuid.New(),
		RestaurantID: restaurantID,
		Name:         "flour",
		Unit:         "kg",
	}
	repo.ingredients[ingredient.ID] = ingredient
	repo.stocks[ingredient.ID] = &models.Stock{
		IngredientID: ingredient.ID,
		Quantity:     decimal.RequireFromString(quantity),
	}
	return ingredient
}

func newTestService(t *testing.T, repo *fakeRepo, provider menu.Provider) Service {
	t.Helper()
	if provider == nil {
		provider = &fakeMenu{}
	}
	svc, err := NewService(repo, provider, fakeTxRunner{}, nil)
	require.NoError(t, err)
	return svc
}

func TestRecordMovementWeightedAverage(t *testing.T) {
	repo := newFakeRepo()
	actor := testActor()
	ingredient := seedIngredient(t, repo, actor.RestaurantID, "0")
	svc := newTestService(t, repo, nil)

	price := decimal.RequireFromString("100")
	_, err := svc.RecordMovement(context.Background(), actor, RecordMovementInput{
		IngredientID: ingredient.ID,
		Type:         enums.StockMovementTypeIn,
		Quantity:     decimal.RequireFromString("10"),
		UnitPrice:    &price,
		Reason:       "delivery",
	})
	require.NoError(t, err)

	got := repo.ingredients[ingredient.ID]
	require.NotNil(t, got.AverageCost)
	assert.True(t, got.AverageCost.Equal(decimal.RequireFromString("100.00")), "got %s", got.AverageCost)
	require.NotNil(t, got.LastPrice)
	assert.True(t, got.LastPrice.Equal(price))

	price2 := decimal.RequireFromString("50")
	_, err = svc.RecordMovement(context.Background(), actor, RecordMovementInput{
		IngredientID: ingredient.ID,
		Type:         enums.StockMovementTypeIn,
		Quantity:     decimal.RequireFromString("20"),
		UnitPrice:    &price2,
		Reason:       "delivery",
	})
	require.NoError(t, err)

	got = repo.ingredients[ingredient.ID]
	assert.True(t, got.AverageCost.Equal(decimal.RequireFromString("66.67")), "got %s", got.AverageCost)
	require.NotNil(t, got.PreviousPrice)
	assert.True(t, got.PreviousPrice.Equal(price))
	assert.True(t, got.LastPrice.Equal(price2))
	assert.True(t, repo.stocks[ingredient.ID].Quantity.Equal(decimal.RequireFromString("30")))
	assert.Len(t, repo.movements, 2)
}

func TestRecordMovementZeroQuantityUpdatesPriceOnly(t *testing.T) {
	repo := newFakeRepo()
	actor := testActor()
	ingredient := seedIngredient(t, repo, actor.RestaurantID, "0")
	svc := newTestService(t, repo, nil)

	price := decimal.RequireFromString("120")
	_, err := svc.RecordMovement(context.Background(), actor, RecordMovementInput{
		IngredientID: ingredient.ID,
		Type:         enums.StockMovementTypeIn,
		Quantity:     decimal.Zero,
		UnitPrice:    &price,
		Reason:       "price update",
	})
	require.NoError(t, err)

	got := repo.ingredients[ingredient.ID]
	assert.Nil(t, got.AverageCost)
	require.NotNil(t, got.LastPrice)
	assert.True(t, got.LastPrice.Equal(price))
	assert.True(t, repo.stocks[ingredient.ID].Quantity.IsZero())
}

func TestRecordMovementOutRejectsNegativeResult(t *testing.T) {
	repo := newFakeRepo()
	actor := testActor()
	ingredient := seedIngredient(t, repo, actor.RestaurantID, "5")
	svc := newTestService(t, repo, nil)

	_, err := svc.RecordMovement(context.Background(), actor, RecordMovementInput{
		IngredientID: ingredient.ID,
		Type:         enums.StockMovementTypeOut,
		Quantity:     decimal.RequireFromString("8"),
		Reason:       "waste",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
	assert.Contains(t, err.Error(), "flour")
	assert.Contains(t, err.Error(), "-3")
	assert.True(t, repo.stocks[ingredient.ID].Quantity.Equal(decimal.RequireFromString("5")))
	assert.Empty(t, repo.movements)
}

func TestRecordMovementAdjustReplacesQuantity(t *testing.T) {
	repo := newFakeRepo()
	actor := testActor()
	ingredient := seedIngredient(t, repo, actor.RestaurantID, "5")
	svc := newTestService(t, repo, nil)

	movement, err := svc.RecordMovement(context.Background(), actor, RecordMovementInput{
		IngredientID: ingredient.ID,
		Type:         enums.StockMovementTypeAdjust,
		Quantity:     decimal.RequireFromString("2"),
		Reason:       "spot count",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.StockMovementTypeAdjust, movement.Type)
	assert.True(t, repo.stocks[ingredient.ID].Quantity.Equal(decimal.RequireFromString("2")))
}

func TestRecordMovementForeignRestaurant(t *testing.T) {
	repo := newFakeRepo()
	ingredient := seedIngredient(t, repo, uuid.New(), "5")
	svc := newTestService(t, repo, nil)

	price := decimal.RequireFromString("10")
	_, err := svc.RecordMovement(context.Background(), testActor(), RecordMovementInput{
		IngredientID: ingredient.ID,
		Type:         enums.StockMovementTypeIn,
		Quantity:     decimal.RequireFromString("1"),
		UnitPrice:    &price,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestRecordMovementValidation(t *testing.T) {
	repo := newFakeRepo()
	actor := testActor()
	ingredient := seedIngredient(t, repo, actor.RestaurantID, "5")
	svc := newTestService(t, repo, nil)

	_, err := svc.RecordMovement(context.Background(), types.Actor{}, RecordMovementInput{
		IngredientID: ingredient.ID,
		Type:         enums.StockMovementTypeOut,
		Quantity:     decimal.RequireFromString("1"),
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.RecordMovement(context.Background(), actor, RecordMovementInput{
		IngredientID: ingredient.ID,
		Type:         enums.StockMovementTypeIn,
		Quantity:     decimal.RequireFromString("1"),
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "inbound without price must be rejected")
}

func TestDecrementForSale(t *testing.T) {
	repo := newFakeRepo()
	actor := testActor()
	flour := seedIngredient(t, repo, actor.RestaurantID, "5")

	tracked := &models.MenuItem{ID: uuid.New(), RestaurantID: actor.RestaurantID, Name: "bread", TrackInventory: true}
	untracked := &models.MenuItem{ID: uuid.New(), RestaurantID: actor.RestaurantID, Name: "water", TrackInventory: false}
	provider := &fakeMenu{
		items: map[uuid.UUID]*models.MenuItem{tracked.ID: tracked, untracked.ID: untracked},
		recipes: map[uuid.UUID][]models.Recipe{
			tracked.ID: {{MenuItemID: tracked.ID, IngredientID: flour.ID, Quantity: decimal.RequireFromString("2")}},
		},
	}
	svc := newTestService(t, repo, provider)

	order := &models.Order{
		ID:           uuid.New(),
		RestaurantID: actor.RestaurantID,
		Items: []models.OrderItem{
			{MenuItemID: tracked.ID, Quantity: 3, Status: enums.OrderItemStatusServed},
			{MenuItemID: untracked.ID, Quantity: 2, Status: enums.OrderItemStatusServed},
			{MenuItemID: tracked.ID, Quantity: 4, Status: enums.OrderItemStatusCancelled},
		},
	}

	err := svc.DecrementForSale(context.Background(), &gorm.DB{}, actor, order)
	require.NoError(t, err)

	// 3 servings at 2kg each; the cancelled row and the untracked item do not deduct.
	assert.True(t, repo.stocks[flour.ID].Quantity.Equal(decimal.RequireFromString("-1")),
		"got %s", repo.stocks[flour.ID].Quantity)
	require.Len(t, repo.movements, 1)
	movement := repo.movements[0]
	assert.Equal(t, enums.StockMovementTypeOut, movement.Type)
	assert.True(t, movement.Quantity.Equal(decimal.RequireFromString("6")))
	assert.Equal(t, "sale", movement.Reason)
	require.NotNil(t, movement.ReferenceID)
	assert.Equal(t, order.ID, *movement.ReferenceID)
}

func TestBulkAdjust(t *testing.T) {
	repo := newFakeRepo()
	actor := testActor()
	up := seedIngredient(t, repo, actor.RestaurantID, "10")
	down := seedIngredient(t, repo, actor.RestaurantID, "10")
	same := seedIngredient(t, repo, actor.RestaurantID, "10")
	svc := newTestService(t, repo, nil)

	movements, err := svc.BulkAdjust(context.Background(), actor, []CountUpdate{
		{IngredientID: up.ID, CountedQuantity: decimal.RequireFromString("12")},
		{IngredientID: down.ID, CountedQuantity: decimal.RequireFromString("7.5")},
		{IngredientID: same.ID, CountedQuantity: decimal.RequireFromString("10")},
	})
	require.NoError(t, err)
	require.Len(t, movements, 2, "zero-delta counts record nothing")

	assert.True(t, repo.stocks[up.ID].Quantity.Equal(decimal.RequireFromString("12")))
	assert.True(t, repo.stocks[down.ID].Quantity.Equal(decimal.RequireFromString("7.5")))
	assert.True(t, repo.stocks[same.ID].Quantity.Equal(decimal.RequireFromString("10")))

	byIngredient := map[uuid.UUID]models.StockMovement{}
	for _, m := range movements {
		byIngredient[m.IngredientID] = m
	}
	assert.Equal(t, enums.StockMovementTypeIn, byIngredient[up.ID].Type)
	assert.True(t, byIngredient[up.ID].Quantity.Equal(decimal.RequireFromString("2")))
	assert.Equal(t, enums.StockMovementTypeOut, byIngredient[down.ID].Type)
	assert.True(t, byIngredient[down.ID].Quantity.Equal(decimal.RequireFromString("2.5")))
	for _, m := range movements {
		assert.Equal(t, "inventory count", m.Reason)
	}
}
