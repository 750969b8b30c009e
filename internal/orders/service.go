package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/orlcnr/mesa-core/internal/menu"
	"github.com/orlcnr/mesa-core/internal/rules"
	"github.com/orlcnr/mesa-core/pkg/db/models"
	"github.com/orlcnr/mesa-core/pkg/enums"
	pkgerrors "github.com/orlcnr/mesa-core/pkg/errors"
	"github.com/orlcnr/mesa-core/pkg/logger"
	"github.com/orlcnr/mesa-core/pkg/metrics"
	"github.com/orlcnr/mesa-core/pkg/money"
	"github.com/orlcnr/mesa-core/pkg/outbox"
	"github.com/orlcnr/mesa-core/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns the order and order-line lifecycle. Edits to a live order are
// serialized by an exclusive lock on the order row; the order total is always
// recomputed from the line rows, never adjusted in place.
type Service interface {
	Create(ctx context.Context, actor types.Actor, input CreateInput) (*models.Order, error)
	UpdateItems(ctx context.Context, actor types.Actor, orderID uuid.UUID, targets []ItemTarget) (*models.Order, error)
	UpdateStatus(ctx context.Context, actor types.Actor, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error)
	Cancel(ctx context.Context, actor types.Actor, orderID uuid.UUID, reason string) (*models.Order, error)
	Get(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*models.Order, error)
}

// CreateInput describes a new order.
type CreateInput struct {
	TableID  *uuid.UUID
	WaiterID *uuid.UUID
	Type     enums.OrderType
	Source   enums.OrderSource
	Notes    *string
}

// ItemTarget is the desired total quantity for one menu item after an edit.
type ItemTarget struct {
	MenuItemID uuid.UUID
	Quantity   int
}

type service struct {
	repo    Repository
	menu    menu.Provider
	rules   rules.Evaluator
	events  outboxEmitter
	tx      txRunner
	logg    *logger.Logger
	metrics *metrics.TransactionMetrics
}

// NewService builds the order ledger service.
func NewService(repo Repository, menuProvider menu.Provider, evaluator rules.Evaluator, events outboxEmitter, tx txRunner, logg *logger.Logger, txMetrics *metrics.TransactionMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if menuProvider == nil {
		return nil, fmt.Errorf("menu provider required")
	}
	if evaluator == nil {
		return nil, fmt.Errorf("rule evaluator required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:    repo,
		menu:    menuProvider,
		rules:   evaluator,
		events:  events,
		tx:      tx,
		logg:    logg,
		metrics: txMetrics,
	}, nil
}

func (s *service) run(ctx context.Context, operation string, fn func(tx *gorm.DB) error) error {
	start := time.Now()
	err := s.tx.WithTx(ctx, fn)
	s.metrics.ObserveDuration(operation, time.Since(start))
	if err != nil {
		s.metrics.IncAbort(operation)
		return err
	}
	s.metrics.IncCommit(operation)
	return nil
}

// Create opens a new order in PENDING with no items and a zero total. Dine-in
// orders without a table consult the dine_in_requires_table rule; when a
// table is given it is locked and marked occupied.
func (s *service) Create(ctx context.Context, actor types.Actor, input CreateInput) (*models.Order, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor identity required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order type %q", input.Type)
	}
	if !input.Source.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order source %q", input.Source)
	}

	var order *models.Order
	err := s.run(ctx, "order_create", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if input.Type == enums.OrderTypeDineIn && input.TableID == nil {
			if err := s.rules.Check(ctx, tx, actor.RestaurantID, rules.KeyDineInRequiresTable, map[string]any{
				"order_type": string(input.Type),
			}); err != nil {
				return err
			}
		}

		if input.TableID != nil {
			table, err := repo.FindTableForUpdate(ctx, *input.TableID)
			if err != nil {
				return err
			}
			if table.RestaurantID != actor.RestaurantID {
				return pkgerrors.Newf(pkgerrors.CodeNotFound, "table %s not found", *input.TableID)
			}
			if table.Status == enums.TableStatusOutOfService {
				return pkgerrors.Newf(pkgerrors.CodeConflict, "table %d is out of service", table.Number)
			}
			if table.Status != enums.TableStatusOccupied {
				if err := repo.UpdateTableStatus(ctx, table.ID, enums.TableStatusOccupied); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "occupy table")
				}
			}
		}

		order = &models.Order{
			RestaurantID: actor.RestaurantID,
			TableID:      input.TableID,
			WaiterID:     input.WaiterID,
			Status:       enums.OrderStatusPending,
			Type:         input.Type,
			Source:       input.Source,
			TotalAmount:  decimal.Zero,
			Notes:        input.Notes,
		}
		if err := repo.Insert(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateItems reconciles the order's line rows against the desired quantity
// per menu item. Additions get a fresh price snapshot in PENDING; reductions
// consume the newest non-frozen rows first and silently cap when only frozen
// quantity remains. The total is recomputed from the surviving rows and a
// served or ready order drops back to PENDING when anything changed.
func (s *service) UpdateItems(ctx context.Context, actor types.Actor, orderID uuid.UUID, targets []ItemTarget) (*models.Order, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor identity required")
	}
	if len(targets) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no item targets supplied")
	}
	seen := map[uuid.UUID]struct{}{}
	for _, target := range targets {
		if target.MenuItemID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "menu item id required")
		}
		if target.Quantity < 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity for %s must not be negative", target.MenuItemID)
		}
		if _, dup := seen[target.MenuItemID]; dup {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "duplicate target for menu item %s", target.MenuItemID)
		}
		seen[target.MenuItemID] = struct{}{}
	}

	var result *models.Order
	err := s.run(ctx, "order_update_items", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		menuProvider := s.menu.WithTx(tx)

		order, err := repo.FindForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.RestaurantID != actor.RestaurantID {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", orderID)
		}
		if order.Status.IsTerminal() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order is %s and cannot be edited", order.Status)
		}

		items, err := repo.ListItems(ctx, orderID)
		if err != nil {
			return err
		}

		byMenuItem := map[uuid.UUID][]*models.OrderItem{}
		for i := range items {
			item := &items[i]
			if item.Status == enums.OrderItemStatusCancelled {
				continue
			}
			byMenuItem[item.MenuItemID] = append(byMenuItem[item.MenuItemID], item)
		}

		changed := false
		for _, target := range targets {
			rows := byMenuItem[target.MenuItemID]
			currentQty := 0
			for _, row := range rows {
				currentQty += row.Quantity
			}
			delta := target.Quantity - currentQty
			if delta == 0 {
				continue
			}

			if delta > 0 {
				menuItem, err := menuProvider.MenuItem(ctx, target.MenuItemID)
				if err != nil {
					return err
				}
				if menuItem.RestaurantID != actor.RestaurantID {
					return pkgerrors.Newf(pkgerrors.CodeNotFound, "menu item %s not found", target.MenuItemID)
				}
				if !menuItem.Available {
					return pkgerrors.Newf(pkgerrors.CodeConflict, "%s is not available", menuItem.Name)
				}
				row := &models.OrderItem{
					OrderID:    order.ID,
					MenuItemID: menuItem.ID,
					Quantity:   delta,
					UnitPrice:  menuItem.Price,
					TotalPrice: money.Round2(menuItem.Price.Mul(decimal.NewFromInt(int64(delta)))),
					Status:     enums.OrderItemStatusPending,
				}
				if err := repo.InsertItem(ctx, row); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order item")
				}
				changed = true
				continue
			}

			remaining := -delta
			for i := len(rows) - 1; i >= 0 && remaining > 0; i-- {
				row := rows[i]
				if row.Status.IsFrozen() {
					continue
				}
				take := row.Quantity
				if take > remaining {
					take = remaining
				}
				newQty := row.Quantity - take
				if newQty == 0 {
					if err := repo.DeleteItem(ctx, row.ID); err != nil {
						return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order item")
					}
					row.Quantity = 0
					row.TotalPrice = decimal.Zero
				} else {
					newTotal := money.Round2(row.UnitPrice.Mul(decimal.NewFromInt(int64(newQty))))
					if err := repo.UpdateItem(ctx, row.ID, map[string]any{
						"quantity":    newQty,
						"total_price": newTotal,
					}); err != nil {
						return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reduce order item")
					}
					row.Quantity = newQty
					row.TotalPrice = newTotal
				}
				remaining -= take
				changed = true
			}
			// remaining > 0 here means only frozen quantity is left; the
			// reduction caps without error
		}

		// total always comes from the source rows, never from incremental
		// arithmetic on the previous total
		current, err := repo.ListItems(ctx, orderID)
		if err != nil {
			return err
		}
		total := decimal.Zero
		for _, item := range current {
			if item.Status == enums.OrderItemStatusCancelled {
				continue
			}
			total = total.Add(item.TotalPrice)
		}

		updates := map[string]any{"total_amount": total}
		newStatus := order.Status
		if changed && (order.Status == enums.OrderStatusServed || order.Status == enums.OrderStatusReady) {
			newStatus = enums.OrderStatusPending
			updates["status"] = newStatus
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order total")
		}

		if changed {
			if err := s.emitOrderUpdated(ctx, tx, actor, order.ID, newStatus, total, order.TableID); err != nil {
				return err
			}
		}

		result, err = repo.FindByID(ctx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

var statusRank = map[enums.OrderStatus]int{
	enums.OrderStatusPending:   0,
	enums.OrderStatusPreparing: 1,
	enums.OrderStatusReady:     2,
	enums.OrderStatusServed:    3,
}

// UpdateStatus advances the kitchen lifecycle. Only forward moves through
// PENDING, PREPARING, READY, SERVED are allowed here; PAID belongs to the
// payments service and CANCELLED to Cancel.
func (s *service) UpdateStatus(ctx context.Context, actor types.Actor, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor identity required")
	}
	targetRank, ok := statusRank[status]
	if !ok || status == enums.OrderStatusPending {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "cannot set order status to %q here", status)
	}

	var result *models.Order
	err := s.run(ctx, "order_update_status", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.RestaurantID != actor.RestaurantID {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", orderID)
		}
		if order.Status.IsTerminal() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order is %s", order.Status)
		}
		if targetRank <= statusRank[order.Status] {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move order from %s to %s", order.Status, status)
		}

		if err := repo.Update(ctx, order.ID, map[string]any{"status": status}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if err := repo.SyncItemStatuses(ctx, order.ID, enums.OrderItemStatus(status)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sync item statuses")
		}

		if err := s.emitOrderUpdated(ctx, tx, actor, order.ID, status, order.TotalAmount, order.TableID); err != nil {
			return err
		}

		result, err = repo.FindByID(ctx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Cancel ends a non-terminal order. Once the kitchen has started, the
// cancel_after_preparation rule may veto. The table frees when no other
// active order remains on it.
func (s *service) Cancel(ctx context.Context, actor types.Actor, orderID uuid.UUID, reason string) (*models.Order, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor identity required")
	}

	var result *models.Order
	err := s.run(ctx, "order_cancel", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.RestaurantID != actor.RestaurantID {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", orderID)
		}
		if order.Status.IsTerminal() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order is already %s", order.Status)
		}

		if order.Status != enums.OrderStatusPending {
			if err := s.rules.Check(ctx, tx, actor.RestaurantID, rules.KeyCancelAfterPreparation, map[string]any{
				"order_id":     order.ID.String(),
				"order_status": string(order.Status),
			}); err != nil {
				return err
			}
		}

		updates := map[string]any{"status": enums.OrderStatusCancelled}
		if reason != "" {
			notes := reason
			if order.Notes != nil && *order.Notes != "" {
				notes = *order.Notes + " | cancelled: " + reason
			}
			updates["notes"] = notes
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if err := repo.SyncItemStatuses(ctx, order.ID, enums.OrderItemStatusCancelled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order items")
		}

		if order.TableID != nil {
			active, err := repo.CountActiveByTable(ctx, *order.TableID, order.ID)
			if err != nil {
				return err
			}
			if active == 0 {
				if err := repo.UpdateTableStatus(ctx, *order.TableID, enums.TableStatusAvailable); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "free table")
				}
				if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventTableStatusChanged,
					AggregateType: enums.AggregateTable,
					AggregateID:   *order.TableID,
					Actor:         actorRef(actor),
					Data: outbox.TablePayload{
						TableID: *order.TableID,
						Status:  enums.TableStatusAvailable,
						OrderID: &order.ID,
					},
				}); err != nil {
					return err
				}
			}
		}

		if err := s.emitOrderUpdated(ctx, tx, actor, order.ID, enums.OrderStatusCancelled, order.TotalAmount, order.TableID); err != nil {
			return err
		}

		result, err = repo.FindByID(ctx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Get loads an order with its items.
func (s *service) Get(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*models.Order, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor identity required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.RestaurantID != actor.RestaurantID {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", orderID)
	}
	return order, nil
}

func (s *service) emitOrderUpdated(ctx context.Context, tx *gorm.DB, actor types.Actor, orderID uuid.UUID, status enums.OrderStatus, total decimal.Decimal, tableID *uuid.UUID) error {
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderUpdated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         actorRef(actor),
		Data: outbox.OrderPayload{
			OrderID:     orderID,
			Status:      status,
			TotalAmount: total,
			TableID:     tableID,
		},
	})
}

func actorRef(actor types.Actor) *outbox.ActorRef {
	return &outbox.ActorRef{
		UserID:       actor.UserID,
		RestaurantID: actor.RestaurantID,
		Role:         actor.Role,
	}
}
