package tables

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orlcnr/mesa-core/pkg/db/models"
	"github.com/orlcnr/mesa-core/pkg/enums"
	pkgerrors "github.com/orlcnr/mesa-core/pkg/errors"
	"github.com/orlcnr/mesa-core/pkg/logger"
	"github.com/orlcnr/mesa-core/pkg/metrics"
	"github.com/orlcnr/mesa-core/pkg/outbox"
	"github.com/orlcnr/mesa-core/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service relocates live orders between tables.
type Service interface {
	Transfer(ctx context.Context, actor types.Actor, orderID, targetTableID uuid.UUID) (*models.Order, error)
}

type service struct {
	repo    Repository
	events  outboxEmitter
	tx      txRunner
	logg    *logger.Logger
	metrics *metrics.TransactionMetrics
}

// NewService builds the table transfer service.
func NewService(repo Repository, events outboxEmitter, tx txRunner, logg *logger.Logger, txMetrics *metrics.TransactionMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("table repository required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, events: events, tx: tx, logg: logg, metrics: txMetrics}, nil
}

// Transfer moves an order to another table in one transaction. Preconditions
// are checked in a fixed order, each a hard reject; the order row is locked
// before the target table row. The source table frees when it keeps no other
// active order, and notifications for both tables and the order go out only
// after commit.
func (s *service) Transfer(ctx context.Context, actor types.Actor, orderID, targetTableID uuid.UUID) (*models.Order, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor identity required")
	}
	if orderID == uuid.Nil || targetTableID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and target table id required")
	}

	var order *models.Order
	start := time.Now()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		loaded, err := repo.FindOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if loaded.RestaurantID != actor.RestaurantID {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", orderID)
		}
		if loaded.Status.IsTerminal() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order is %s and cannot be moved", loaded.Status)
		}

		target, err := repo.FindTableForUpdate(ctx, targetTableID)
		if err != nil {
			return err
		}
		if target.RestaurantID != actor.RestaurantID {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "table %s not found", targetTableID)
		}
		if target.Status == enums.TableStatusOutOfService {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "table %d is out of service", target.Number)
		}
		if loaded.TableID != nil && *loaded.TableID == targetTableID {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "order is already on table %d", target.Number)
		}
		occupied, err := repo.CountActiveByTable(ctx, targetTableID, loaded.ID)
		if err != nil {
			return err
		}
		if occupied > 0 {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "table %d already has an active order", target.Number)
		}

		sourceTableID := loaded.TableID
		if err := repo.UpdateOrder(ctx, loaded.ID, map[string]any{
			"table_id": targetTableID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "move order")
		}

		if sourceTableID != nil {
			remaining, err := repo.CountActiveByTable(ctx, *sourceTableID, loaded.ID)
			if err != nil {
				return err
			}
			sourceStatus := enums.TableStatusOccupied
			if remaining == 0 {
				sourceStatus = enums.TableStatusAvailable
				if err := repo.UpdateTableStatus(ctx, *sourceTableID, sourceStatus); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "free source table")
				}
			}
			if err := s.emitTableChanged(ctx, tx, actor, *sourceTableID, sourceStatus, loaded.ID); err != nil {
				return err
			}
		}

		if err := repo.UpdateTableStatus(ctx, targetTableID, enums.TableStatusOccupied); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "occupy target table")
		}
		if err := s.emitTableChanged(ctx, tx, actor, targetTableID, enums.TableStatusOccupied, loaded.ID); err != nil {
			return err
		}

		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderUpdated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   loaded.ID,
			Actor:         actorRef(actor),
			Data: outbox.OrderPayload{
				OrderID:     loaded.ID,
				Status:      loaded.Status,
				TotalAmount: loaded.TotalAmount,
				TableID:     &targetTableID,
			},
		}); err != nil {
			return err
		}

		loaded.TableID = &targetTableID
		order = loaded
		return nil
	})
	s.metrics.ObserveDuration("table_transfer", time.Since(start))
	if err != nil {
		s.metrics.IncAbort("table_transfer")
		return nil, err
	}
	s.metrics.IncCommit("table_transfer")
	return order, nil
}

func (s *service) emitTableChanged(ctx context.Context, tx *gorm.DB, actor types.Actor, tableID uuid.UUID, status enums.TableStatus, orderID uuid.UUID) error {
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventTableStatusChanged,
		AggregateType: enums.AggregateTable,
		AggregateID:   tableID,
		Actor:         actorRef(actor),
		Data: outbox.TablePayload{
			TableID: tableID,
			Status:  status,
			OrderID: &orderID,
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
