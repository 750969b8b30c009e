package stock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/orlcnr/mesa-core/internal/menu"
	"github.com/orlcnr/mesa-core/pkg/db/models"
	"github.com/orlcnr/mesa-core/pkg/enums"
	pkgerrors "github.com/orlcnr/mesa-core/pkg/errors"
	"github.com/orlcnr/mesa-core/pkg/logger"
	"github.com/orlcnr/mesa-core/pkg/money"
	"github.com/orlcnr/mesa-core/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns quantity-on-hand and weighted-average costing. Every change
// is recorded as an immutable movement; balances are derived, never cached.
type Service interface {
	RecordMovement(ctx context.Context, actor types.Actor, input RecordMovementInput) (*models.StockMovement, error)
	DecrementForSale(ctx context.Context, tx *gorm.DB, actor types.Actor, order *models.Order) error
	BulkAdjust(ctx context.Context, actor types.Actor, updates []CountUpdate) ([]models.StockMovement, error)
}

// RecordMovementInput captures a manual stock entry.
type RecordMovementInput struct {
	IngredientID uuid.UUID
	Type         enums.StockMovementType
	Quantity     decimal.Decimal
	UnitPrice    *decimal.Decimal
	Reason       string
	ReferenceID  *uuid.UUID
}

// CountUpdate is one line of an inventory-count reconciliation.
type CountUpdate struct {
	IngredientID    uuid.UUID
	CountedQuantity decimal.Decimal
}

type service struct {
	repo Repository
	menu menu.Provider
	tx   txRunner
	logg *logger.Logger
}

// NewService builds the stock ledger service.
func NewService(repo Repository, menuProvider menu.Provider, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if menuProvider == nil {
		return nil, fmt.Errorf("menu provider required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, menu: menuProvider, tx: tx, logg: logg}, nil
}

// RecordMovement applies a manual movement. The ingredient and its stock row
// are both locked for the duration of the transaction; a movement that would
// leave stock negative is rejected.
func (s *service) RecordMovement(ctx context.Context, actor types.Actor, input RecordMovementInput) (*models.StockMovement, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor identity required")
	}
	if input.IngredientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ingredient id required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid movement type %q", input.Type)
	}
	if input.Quantity.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	if input.Type == enums.StockMovementTypeIn && input.UnitPrice == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price required for inbound movements")
	}

	var movement *models.StockMovement
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ingredient, err := repo.FindIngredientForUpdate(ctx, input.IngredientID)
		if err != nil {
			return err
		}
		if ingredient.RestaurantID != actor.RestaurantID {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "ingredient %s not found", input.IngredientID)
		}

		stockRow, err := repo.FindStockForUpdate(ctx, input.IngredientID)
		if err != nil {
			return err
		}

		newQty := stockRow.Quantity
		switch input.Type {
		case enums.StockMovementTypeIn:
			newQty = stockRow.Quantity.Add(input.Quantity)
		case enums.StockMovementTypeOut:
			newQty = stockRow.Quantity.Sub(input.Quantity)
		case enums.StockMovementTypeAdjust:
			newQty = input.Quantity
		}
		if newQty.IsNegative() {
			return pkgerrors.Newf(pkgerrors.CodeConflict,
				"movement would leave %s at %s %s; current stock is %s",
				ingredient.Name, newQty.String(), ingredient.Unit, stockRow.Quantity.String())
		}

		if input.Type == enums.StockMovementTypeIn {
			if err := repo.UpdateIngredient(ctx, ingredient.ID, costingUpdates(ingredient, stockRow.Quantity, input.Quantity, *input.UnitPrice)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update ingredient costing")
			}
		}

		if err := repo.UpdateStockQuantity(ctx, ingredient.ID, newQty); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stock quantity")
		}

		movement = &models.StockMovement{
			IngredientID: ingredient.ID,
			Type:         input.Type,
			Quantity:     input.Quantity,
			UnitPrice:    input.UnitPrice,
			Reason:       input.Reason,
			ReferenceID:  input.ReferenceID,
			CreatedBy:    actor.UserID,
		}
		if err := repo.InsertMovement(ctx, movement); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert stock movement")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

// costingUpdates computes the weighted-average cost update for a priced
// inbound movement. last_price/previous_price/price_updated_at move on every
// priced input, including zero-quantity ones; average_cost only moves on the
// branches below.
func costingUpdates(ingredient *models.Ingredient, currentQty, inQty, inPrice decimal.Decimal) map[string]any {
	updates := map[string]any{
		"previous_price":   ingredient.LastPrice,
		"last_price":       inPrice,
		"price_updated_at": time.Now(),
	}

	currentAvg := decimal.Zero
	if ingredient.AverageCost != nil {
		currentAvg = *ingredient.AverageCost
	}

	combined := currentQty.Add(inQty)
	switch {
	case combined.IsZero():
		// division-by-zero guard: price fields still move, cost does not
	case currentQty.IsZero() && currentAvg.IsZero():
		updates["average_cost"] = money.Round2(inPrice)
	case currentQty.IsPositive():
		blended := currentQty.Mul(currentAvg).Add(inQty.Mul(inPrice)).Div(combined)
		updates["average_cost"] = money.Round2(blended)
	}
	return updates
}

// DecrementForSale expands recipes for the sold items and deducts inventory
// inside the caller's transaction. Stock rows are locked in sorted ingredient
// id order so two concurrent sales touching the same ingredients cannot
// deadlock. A negative result is tolerated with a warning; a sale must not
// fail over a stock accounting mismatch.
func (s *service) DecrementForSale(ctx context.Context, tx *gorm.DB, actor types.Actor, order *models.Order) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for sale deduction")
	}
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}

	repo := s.repo.WithTx(tx)
	menuProvider := s.menu.WithTx(tx)

	required := map[uuid.UUID]decimal.Decimal{}
	for _, item := range order.Items {
		if item.Quantity <= 0 || item.Status == enums.OrderItemStatusCancelled {
			continue
		}
		menuItem, err := menuProvider.MenuItem(ctx, item.MenuItemID)
		if err != nil {
			return err
		}
		if !menuItem.TrackInventory {
			continue
		}
		recipes, err := menuProvider.RecipeFor(ctx, item.MenuItemID)
		if err != nil {
			return err
		}
		soldQty := decimal.NewFromInt(int64(item.Quantity))
		for _, recipe := range recipes {
			required[recipe.IngredientID] = required[recipe.IngredientID].Add(recipe.Quantity.Mul(soldQty))
		}
	}
	if len(required) == 0 {
		return nil
	}

	ingredientIDs := make([]uuid.UUID, 0, len(required))
	for id := range required {
		ingredientIDs = append(ingredientIDs, id)
	}
	sort.Slice(ingredientIDs, func(i, j int) bool {
		return ingredientIDs[i].String() < ingredientIDs[j].String()
	})

	orderID := order.ID
	for _, ingredientID := range ingredientIDs {
		qty := required[ingredientID]
		if qty.IsZero() {
			continue
		}

		stockRow, err := repo.FindStockForUpdate(ctx, ingredientID)
		if err != nil {
			return err
		}
		newQty := stockRow.Quantity.Sub(qty)
		if newQty.IsNegative() && s.logg != nil {
			warnCtx := s.logg.WithFields(ctx, map[string]any{
				"ingredient_id": ingredientID.String(),
				"order_id":      orderID.String(),
				"quantity":      newQty.String(),
			})
			s.logg.Warn(warnCtx, "stock went negative on sale deduction")
		}
		if err := repo.UpdateStockQuantity(ctx, ingredientID, newQty); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stock quantity")
		}

		movement := &models.StockMovement{
			IngredientID: ingredientID,
			Type:         enums.StockMovementTypeOut,
			Quantity:     qty,
			Reason:       "sale",
			ReferenceID:  &orderID,
			CreatedBy:    actor.UserID,
		}
		if err := repo.InsertMovement(ctx, movement); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert sale movement")
		}
	}
	return nil
}

// BulkAdjust reconciles counted quantities against the ledger, recording one
// movement per ingredient whose count differs. Ingredients with a zero delta
// are skipped.
func (s *service) BulkAdjust(ctx context.Context, actor types.Actor, updates []CountUpdate) ([]models.StockMovement, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor identity required")
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no count updates supplied")
	}
	for _, update := range updates {
		if update.IngredientID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "ingredient id required")
		}
		if update.CountedQuantity.IsNegative() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "counted quantity for %s must not be negative", update.IngredientID)
		}
	}

	sorted := make([]CountUpdate, len(updates))
	copy(sorted, updates)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].IngredientID.String() < sorted[j].IngredientID.String()
	})

	var movements []models.StockMovement
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		for _, update := range sorted {
			ingredient, err := repo.FindIngredientForUpdate(ctx, update.IngredientID)
			if err != nil {
				return err
			}
			if ingredient.RestaurantID != actor.RestaurantID {
				return pkgerrors.Newf(pkgerrors.CodeNotFound, "ingredient %s not found", update.IngredientID)
			}

			stockRow, err := repo.FindStockForUpdate(ctx, update.IngredientID)
			if err != nil {
				return err
			}

			delta := update.CountedQuantity.Sub(stockRow.Quantity)
			if delta.IsZero() {
				continue
			}

			movementType := enums.StockMovementTypeIn
			if delta.IsNegative() {
				movementType = enums.StockMovementTypeOut
			}

			if err := repo.UpdateStockQuantity(ctx, update.IngredientID, update.CountedQuantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stock quantity")
			}

			movement := models.StockMovement{
				IngredientID: update.IngredientID,
				Type:         movementType,
				Quantity:     delta.Abs(),
				Reason:       "inventory count",
				CreatedBy:    actor.UserID,
			}
			if err := repo.InsertMovement(ctx, &movement); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert adjustment movement")
			}
			movements = append(movements, movement)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return movements, nil
}
