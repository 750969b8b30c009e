package cashier

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/orlcnr/mesa-core/pkg/db"
	"github.com/orlcnr/mesa-core/pkg/db/models"
	"github.com/orlcnr/mesa-core/pkg/enums"
	pkgerrors "github.com/orlcnr/mesa-core/pkg/errors"
	"github.com/orlcnr/mesa-core/pkg/logger"
	"github.com/orlcnr/mesa-core/pkg/metrics"
	"github.com/orlcnr/mesa-core/pkg/money"
	"github.com/orlcnr/mesa-core/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the till open/close lifecycle. A session's balance is never
// stored; expected cash is always a fold over the movement rows.
type Service interface {
	OpenSession(ctx context.Context, actor types.Actor, registerID uuid.UUID, openingBalance decimal.Decimal) (*models.CashSession, error)
	CloseSession(ctx context.Context, actor types.Actor, sessionID uuid.UUID, countedBalance decimal.Decimal) (*models.CashSession, error)
	RecordMovement(ctx context.Context, actor types.Actor, sessionID uuid.UUID, input MovementInput) (*models.CashMovement, error)
	LogSale(ctx context.Context, tx *gorm.DB, actor types.Actor, restaurantID uuid.UUID, method enums.PaymentMethod, amount decimal.Decimal, orderID uuid.UUID) error
}

// MovementInput describes a manual till movement.
type MovementInput struct {
	Type          enums.CashMovementType
	PaymentMethod enums.PaymentMethod
	Amount        decimal.Decimal
	Description   string
}

type service struct {
	repo    Repository
	tx      txRunner
	logg    *logger.Logger
	metrics *metrics.TransactionMetrics
}

// NewService builds the cash session service.
func NewService(repo Repository, tx txRunner, logg *logger.Logger, txMetrics *metrics.TransactionMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cashier repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, logg: logg, metrics: txMetrics}, nil
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

// OpenSession starts a new open/close cycle on a register. Only one open
// session per register is allowed; the partial unique index on cash_sessions
// backs the check under concurrency.
func (s *service) OpenSession(ctx context.Context, actor types.Actor, registerID uuid.UUID, openingBalance decimal.Decimal) (*models.CashSession, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor identity required")
	}
	if registerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "register id required")
	}
	if openingBalance.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "opening balance must not be negative")
	}

	var session *models.CashSession
	err := s.run(ctx, "cash_session_open", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		register, err := repo.FindRegister(ctx, registerID)
		if err != nil {
			return err
		}
		if register.RestaurantID != actor.RestaurantID {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "cash register %s not found", registerID)
		}
		if !register.Active {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "register %s is inactive", register.Name)
		}

		existing, err := repo.FindOpenSessionByRegister(ctx, registerID)
		if err != nil {
			return err
		}
		if existing != nil {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "register %s already has an open session", register.Name)
		}

		session = &models.CashSession{
			RegisterID:     registerID,
			OpenedBy:       actor.UserID,
			OpeningBalance: money.Round2(openingBalance),
			Status:         enums.CashSessionStatusOpen,
		}
		if err := repo.InsertSession(ctx, session); err != nil {
			if db.IsUniqueViolation(err) {
				return pkgerrors.Newf(pkgerrors.CodeConflict, "register %s already has an open session", register.Name)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert cash session")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// CloseSession ends a session. Expected cash is derived by folding the signed
// cash-method movements over the opening balance; the four closing fields are
// written together in a single update.
func (s *service) CloseSession(ctx context.Context, actor types.Actor, sessionID uuid.UUID, countedBalance decimal.Decimal) (*models.CashSession, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor identity required")
	}
	if countedBalance.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "counted balance must not be negative")
	}

	var session *models.CashSession
	err := s.run(ctx, "cash_session_close", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		loaded, err := repo.FindSessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		restaurantID, err := repo.RestaurantForSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if restaurantID != actor.RestaurantID {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "cash session %s not found", sessionID)
		}
		if loaded.Status == enums.CashSessionStatusClosed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cash session is already closed")
		}

		movements, err := repo.ListMovements(ctx, sessionID)
		if err != nil {
			return err
		}
		expected := ExpectedBalance(loaded.OpeningBalance, movements)
		counted := money.Round2(countedBalance)
		difference := counted.Sub(expected)
		now := time.Now()

		if err := repo.UpdateSession(ctx, sessionID, map[string]any{
			"status":          enums.CashSessionStatusClosed,
			"closing_balance": expected,
			"counted_balance": counted,
			"difference":      difference,
			"closed_by":       actor.UserID,
			"closed_at":       now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close cash session")
		}

		loaded.Status = enums.CashSessionStatusClosed
		loaded.ClosingBalance = &expected
		loaded.CountedBalance = &counted
		loaded.Difference = &difference
		loaded.ClosedBy = &actor.UserID
		loaded.ClosedAt = &now
		session = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ExpectedBalance folds the signed cash-method movements over the opening
// balance. Non-cash movements are audit records and do not move the till.
func ExpectedBalance(opening decimal.Decimal, movements []models.CashMovement) decimal.Decimal {
	expected := opening
	for _, movement := range movements {
		if !movement.PaymentMethod.AffectsTill() {
			continue
		}
		signed := movement.Amount.Mul(decimal.NewFromInt(int64(movement.Type.Sign())))
		expected = expected.Add(signed)
	}
	return money.Round2(expected)
}

// RecordMovement appends a manual IN or OUT movement to an open session.
func (s *service) RecordMovement(ctx context.Context, actor types.Actor, sessionID uuid.UUID, input MovementInput) (*models.CashMovement, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor identity required")
	}
	if input.Type != enums.CashMovementTypeIn && input.Type != enums.CashMovementTypeOut {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid manual movement type %q", input.Type)
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment method %q", input.PaymentMethod)
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	var movement *models.CashMovement
	err := s.run(ctx, "cash_movement_record", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		session, err := repo.FindSessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		restaurantID, err := repo.RestaurantForSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if restaurantID != actor.RestaurantID {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "cash session %s not found", sessionID)
		}
		if session.Status != enums.CashSessionStatusOpen {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cash session is closed")
		}

		movement = &models.CashMovement{
			SessionID:     sessionID,
			Type:          input.Type,
			PaymentMethod: input.PaymentMethod,
			Amount:        money.Round2(input.Amount),
			Description:   input.Description,
			CreatedBy:     actor.UserID,
		}
		if err := repo.InsertMovement(ctx, movement); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert cash movement")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

// LogSale runs inside the caller's settlement transaction. The movement lands
// in the acting staff member's open session, falling back to the oldest open
// session; with no open session at all the sale is recorded without a till
// entry and a warning is logged.
func (s *service) LogSale(ctx context.Context, tx *gorm.DB, actor types.Actor, restaurantID uuid.UUID, method enums.PaymentMethod, amount decimal.Decimal, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required to log sale")
	}
	repo := s.repo.WithTx(tx)

	session, err := repo.FindOpenSessionByOpener(ctx, restaurantID, actor.UserID)
	if err != nil {
		return err
	}
	if session == nil {
		session, err = repo.FindOldestOpenSession(ctx, restaurantID)
		if err != nil {
			return err
		}
	}
	if session == nil {
		if s.logg != nil {
			warnCtx := s.logg.WithFields(ctx, map[string]any{
				"order_id":      orderID.String(),
				"restaurant_id": restaurantID.String(),
			})
			s.logg.Warn(warnCtx, "sale recorded without cash session")
		}
		return nil
	}

	movement := &models.CashMovement{
		SessionID:     session.ID,
		Type:          enums.CashMovementTypeSale,
		PaymentMethod: method,
		Amount:        money.Round2(amount),
		OrderID:       &orderID,
		Description:   "sale",
		CreatedBy:     actor.UserID,
	}
	if err := repo.InsertMovement(ctx, movement); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert sale movement")
	}
	return nil
}
