package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orlcnr/mesa-core/pkg/db/models"
	pkgerrors "github.com/orlcnr/mesa-core/pkg/errors"
)

// Repository is the persistence surface of the stock ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindIngredientForUpdate(ctx context.Context, id uuid.UUID) (*models.Ingredient, error)
	FindStockForUpdate(ctx context.Context, ingredientID uuid.UUID) (*models.Stock, error)
	UpdateIngredient(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateStockQuantity(ctx context.Context, ingredientID uuid.UUID, quantity decimal.Decimal) error
	InsertMovement(ctx context.Context, movement *models.StockMovement) error
	ListMovementsByIngredient(ctx context.Context, ingredientID uuid.UUID) ([]models.StockMovement, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a stock repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindIngredientForUpdate(ctx context.Context, id uuid.UUID) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&ingredient).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "ingredient %s not found", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ingredient")
	}
	return &ingredient, nil
}

// FindStockForUpdate locks the stock row, creating a zero row first when the
// ingredient has never moved.
func (r *repository) FindStockForUpdate(ctx context.Context, ingredientID uuid.UUID) (*models.Stock, error) {
	var row models.Stock
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("ingredient_id = ?", ingredientID).
		First(&row).Error
	if err == nil {
		return &row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock")
	}

	row = models.Stock{IngredientID: ingredientID, Quantity: decimal.Zero}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock row")
	}
	return &row, nil
}

func (r *repository) UpdateIngredient(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Ingredient{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) UpdateStockQuantity(ctx context.Context, ingredientID uuid.UUID, quantity decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Stock{}).
		Where("ingredient_id = ?", ingredientID).
		Update("quantity", quantity).Error
}

func (r *repository) InsertMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListMovementsByIngredient(ctx context.Context, ingredientID uuid.UUID) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	err := r.db.WithContext(ctx).
		Where("ingredient_id = ?", ingredientID).
		Order("created_at ASC").
		Find(&movements).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock movements")
	}
	return movements, nil
}
