package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orlcnr/mesa-core/pkg/db/models"
	"github.com/orlcnr/mesa-core/pkg/enums"
	pkgerrors "github.com/orlcnr/mesa-core/pkg/errors"
)

// Repository is the persistence surface of the order ledger. It also covers
// the table lookups order operations need, so the package stays self-contained.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	InsertItem(ctx context.Context, item *models.OrderItem) error
	UpdateItem(ctx context.Context, id uuid.UUID, updates map[string]any) error
	DeleteItem(ctx context.Context, id uuid.UUID) error
	SyncItemStatuses(ctx context.Context, orderID uuid.UUID, status enums.OrderItemStatus) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	CountActiveByTable(ctx context.Context, tableID uuid.UUID, excludeOrderID uuid.UUID) (int64, error)
	FindTableForUpdate(ctx context.Context, id uuid.UUID) (*models.DiningTable, error)
	UpdateTableStatus(ctx context.Context, id uuid.UUID, status enums.TableStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an order repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &order, nil
}

// FindForUpdate locks the order row only; items are loaded separately once
// the lock is held.
func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
	}
	return &order, nil
}

func (r *repository) ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order items")
	}
	return items, nil
}

func (r *repository) InsertItem(ctx context.Context, item *models.OrderItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) UpdateItem(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.OrderItem{}).Error
}

// SyncItemStatuses bulk-updates item statuses, leaving frozen and cancelled
// rows untouched.
func (r *repository) SyncItemStatuses(ctx context.Context, orderID uuid.UUID, status enums.OrderItemStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("order_id = ? AND status NOT IN ?", orderID, []enums.OrderItemStatus{
			enums.OrderItemStatusServed,
			enums.OrderItemStatusReady,
			enums.OrderItemStatusCancelled,
		}).
		Update("status", status).Error
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// CountActiveByTable counts non-terminal orders sitting on a table, optionally
// excluding one order id.
func (r *repository) CountActiveByTable(ctx context.Context, tableID uuid.UUID, excludeOrderID uuid.UUID) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("table_id = ? AND status NOT IN ?", tableID, []enums.OrderStatus{
			enums.OrderStatusPaid,
			enums.OrderStatusCancelled,
		})
	if excludeOrderID != uuid.Nil {
		query = query.Where("id <> ?", excludeOrderID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active orders")
	}
	return count, nil
}

func (r *repository) FindTableForUpdate(ctx context.Context, id uuid.UUID) (*models.DiningTable, error) {
	var table models.DiningTable
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&table).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "table %s not found", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock table")
	}
	return &table, nil
}

func (r *repository) UpdateTableStatus(ctx context.Context, id uuid.UUID, status enums.TableStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.DiningTable{}).
		Where("id = ?", id).
		Update("status", status).Error
}
