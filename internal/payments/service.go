package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

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

type stockDeducter interface {
	DecrementForSale(ctx context.Context, tx *gorm.DB, actor types.Actor, order *models.Order) error
}

type saleLogger interface {
	LogSale(ctx context.Context, tx *gorm.DB, actor types.Actor, restaurantID uuid.UUID, method enums.PaymentMethod, amount decimal.Decimal, orderID uuid.UUID) error
}

// Service settles orders. All discount, tip and change arithmetic runs in
// integer cents; stock deduction and the sale cash movement happen in the
// same transaction as the order status change, and domain events go out only
// after commit via the outbox.
type Service interface {
	Create(ctx context.Context, actor types.Actor, input CreateInput) (*models.Payment, error)
	CreateSplit(ctx context.Context, actor types.Actor, input SplitInput) ([]models.Payment, error)
	Revert(ctx context.Context, actor types.Actor, paymentID uuid.UUID, reason string) (*models.Payment, error)
}

// CreateInput describes a single settlement of a whole order.
type CreateInput struct {
	OrderID        uuid.UUID
	PaymentMethod  enums.PaymentMethod
	CustomerID     *uuid.UUID
	DiscountType   *enums.DiscountType
	DiscountValue  decimal.Decimal
	TipAmount      decimal.Decimal
	CommissionRate decimal.Decimal
	CashReceived   decimal.Decimal
	Description    string
}

// SplitInput settles one order across several legs. The order-level discount
// determines the required total; each leg may additionally carry its own
// discount.
type SplitInput struct {
	OrderID       uuid.UUID
	DiscountType  *enums.DiscountType
	DiscountValue decimal.Decimal
	Legs          []SplitLeg
}

// SplitLeg is one participant's share of a split settlement.
type SplitLeg struct {
	PaymentMethod  enums.PaymentMethod
	Amount         decimal.Decimal
	CustomerID     *uuid.UUID
	DiscountType   *enums.DiscountType
	DiscountValue  decimal.Decimal
	TipAmount      decimal.Decimal
	CommissionRate decimal.Decimal
	CashReceived   decimal.Decimal
	Description    string
}

type service struct {
	repo    Repository
	stock   stockDeducter
	cashier saleLogger
	events  outboxEmitter
	tx      txRunner
	logg    *logger.Logger
	metrics *metrics.TransactionMetrics
}

// NewService builds the settlement service.
func NewService(repo Repository, stock stockDeducter, cashier saleLogger, events outboxEmitter, tx txRunner, logg *logger.Logger, txMetrics *metrics.TransactionMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock deducter required")
	}
	if cashier == nil {
		return nil, fmt.Errorf("sale logger required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:    repo,
		stock:   stock,
		cashier: cashier,
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

// Create settles an order with one payment.
func (s *service) Create(ctx context.Context, actor types.Actor, input CreateInput) (*models.Payment, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor identity required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment method %q", input.PaymentMethod)
	}
	if input.DiscountType != nil && !input.DiscountType.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid discount type %q", *input.DiscountType)
	}
	if input.TipAmount.IsNegative() || input.CashReceived.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tip and cash received must not be negative")
	}
	if input.PaymentMethod == enums.PaymentMethodOpenAccount && input.CustomerID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "open-account payments require a customer")
	}

	var payment *models.Payment
	err := s.run(ctx, "payment_create", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := s.lockSettleableOrder(ctx, repo, actor, input.OrderID)
		if err != nil {
			return err
		}

		open, err := repo.HasOpenSession(ctx, actor.RestaurantID)
		if err != nil {
			return err
		}
		if !open {
			return pkgerrors.New(pkgerrors.CodeConflict, "no open cash session for the restaurant")
		}

		totalCents := money.Cents(order.TotalAmount)
		finalCents := totalCents
		if input.DiscountType != nil {
			finalCents = money.ApplyDiscount(totalCents, input.DiscountValue, *input.DiscountType)
		}
		discountCents := totalCents - finalCents

		if input.PaymentMethod == enums.PaymentMethodOpenAccount {
			customer, err := s.checkOpenAccount(ctx, repo, actor, *input.CustomerID, finalCents, 0, 0)
			if err != nil {
				return err
			}
			if err := s.addDebt(ctx, repo, customer, money.FromCents(finalCents)); err != nil {
				return err
			}
		}

		tipCents := money.Cents(input.TipAmount)
		netTipCents := money.NetTip(tipCents, input.CommissionRate)

		var changeCents int64
		if input.PaymentMethod == enums.PaymentMethodCash {
			if received := money.Cents(input.CashReceived); received > finalCents {
				changeCents = received - finalCents
			}
		}

		payment = &models.Payment{
			OrderID:        order.ID,
			RestaurantID:   actor.RestaurantID,
			CustomerID:     input.CustomerID,
			Amount:         order.TotalAmount,
			PaymentMethod:  input.PaymentMethod,
			DiscountType:   input.DiscountType,
			DiscountAmount: money.FromCents(discountCents),
			FinalAmount:    money.FromCents(finalCents),
			Status:         enums.PaymentStatusCompleted,
			TipAmount:      input.TipAmount,
			CommissionRate: input.CommissionRate,
			NetTipAmount:   money.FromCents(netTipCents),
			CashReceived:   input.CashReceived,
			ChangeGiven:    money.FromCents(changeCents),
			Description:    input.Description,
			CreatedBy:      actor.UserID,
		}
		if err := repo.InsertPayment(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert payment")
		}

		if err := s.settleOrder(ctx, tx, repo, actor, order); err != nil {
			return err
		}
		if err := s.cashier.LogSale(ctx, tx, actor, actor.RestaurantID, input.PaymentMethod, money.FromCents(finalCents), order.ID); err != nil {
			return err
		}
		return s.emitCompleted(ctx, tx, actor, payment)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// CreateSplit settles an order across multiple legs. Validation happens in a
// fixed order: the cent-compared amount sum first, then open-account credit,
// then the cash-session precondition. A failure in any leg aborts the whole
// settlement.
func (s *service) CreateSplit(ctx context.Context, actor types.Actor, input SplitInput) ([]models.Payment, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor identity required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.DiscountType != nil && !input.DiscountType.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid discount type %q", *input.DiscountType)
	}
	if len(input.Legs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one payment leg required")
	}
	for i, leg := range input.Legs {
		if !leg.PaymentMethod.IsValid() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "leg %d: invalid payment method %q", i+1, leg.PaymentMethod)
		}
		if !leg.Amount.IsPositive() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "leg %d: amount must be positive", i+1)
		}
		if leg.DiscountType != nil && !leg.DiscountType.IsValid() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "leg %d: invalid discount type %q", i+1, *leg.DiscountType)
		}
		if leg.PaymentMethod == enums.PaymentMethodOpenAccount && leg.CustomerID == nil {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "leg %d: open-account legs require a customer", i+1)
		}
		if leg.TipAmount.IsNegative() || leg.CashReceived.IsNegative() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "leg %d: tip and cash received must not be negative", i+1)
		}
	}

	var created []models.Payment
	err := s.run(ctx, "payment_create_split", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := s.lockSettleableOrder(ctx, repo, actor, input.OrderID)
		if err != nil {
			return err
		}

		totalCents := money.Cents(order.TotalAmount)
		requiredCents := totalCents
		if input.DiscountType != nil {
			requiredCents = money.ApplyDiscount(totalCents, input.DiscountValue, *input.DiscountType)
		}

		legFinals := make([]int64, len(input.Legs))
		var sumCents int64
		for i, leg := range input.Legs {
			amountCents := money.Cents(leg.Amount)
			finalCents := amountCents
			if leg.DiscountType != nil {
				finalCents = money.ApplyDiscount(amountCents, leg.DiscountValue, *leg.DiscountType)
			}
			legFinals[i] = finalCents
			sumCents += finalCents
		}
		if sumCents < requiredCents {
			shortfall := requiredCents - sumCents
			return pkgerrors.Newf(pkgerrors.CodeConflict,
				"insufficient payment: legs total %s but %s is due, short by %s",
				money.FromCents(sumCents).StringFixed(2),
				money.FromCents(requiredCents).StringFixed(2),
				money.FromCents(shortfall).StringFixed(2))
		}

		customers := map[uuid.UUID]*models.Customer{}
		pendingDebt := map[uuid.UUID]int64{}
		pendingLegs := map[uuid.UUID]int64{}
		for i, leg := range input.Legs {
			if leg.PaymentMethod != enums.PaymentMethodOpenAccount {
				continue
			}
			customerID := *leg.CustomerID
			if _, ok := customers[customerID]; !ok {
				customer, err := s.checkOpenAccount(ctx, repo, actor, customerID, legFinals[i], 0, 0)
				if err != nil {
					return err
				}
				customers[customerID] = customer
			} else {
				if _, err := s.checkOpenAccount(ctx, repo, actor, customerID, legFinals[i], pendingDebt[customerID], pendingLegs[customerID]); err != nil {
					return err
				}
			}
			pendingDebt[customerID] += legFinals[i]
			pendingLegs[customerID]++
		}

		hasCash := false
		for _, leg := range input.Legs {
			if leg.PaymentMethod == enums.PaymentMethodCash {
				hasCash = true
				break
			}
		}
		if hasCash {
			open, err := repo.HasOpenSession(ctx, actor.RestaurantID)
			if err != nil {
				return err
			}
			if !open {
				return pkgerrors.New(pkgerrors.CodeConflict, "no open cash session for the restaurant")
			}
		}

		created = created[:0]
		for i, leg := range input.Legs {
			amountCents := money.Cents(leg.Amount)
			finalCents := legFinals[i]
			tipCents := money.Cents(leg.TipAmount)
			netTipCents := money.NetTip(tipCents, leg.CommissionRate)

			var changeCents int64
			if leg.PaymentMethod == enums.PaymentMethodCash {
				if received := money.Cents(leg.CashReceived); received > amountCents {
					changeCents = received - amountCents
				}
			}

			payment := models.Payment{
				OrderID:        order.ID,
				RestaurantID:   actor.RestaurantID,
				CustomerID:     leg.CustomerID,
				Amount:         leg.Amount,
				PaymentMethod:  leg.PaymentMethod,
				DiscountType:   leg.DiscountType,
				DiscountAmount: money.FromCents(amountCents - finalCents),
				FinalAmount:    money.FromCents(finalCents),
				Status:         enums.PaymentStatusCompleted,
				TipAmount:      leg.TipAmount,
				CommissionRate: leg.CommissionRate,
				NetTipAmount:   money.FromCents(netTipCents),
				CashReceived:   leg.CashReceived,
				ChangeGiven:    money.FromCents(changeCents),
				Description:    leg.Description,
				CreatedBy:      actor.UserID,
			}
			if err := repo.InsertPayment(ctx, &payment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert payment leg")
			}
			created = append(created, payment)

			if err := s.cashier.LogSale(ctx, tx, actor, actor.RestaurantID, leg.PaymentMethod, money.FromCents(finalCents), order.ID); err != nil {
				return err
			}
			if err := s.emitCompleted(ctx, tx, actor, &payment); err != nil {
				return err
			}
		}

		for customerID, cents := range pendingDebt {
			if err := s.addDebt(ctx, repo, customers[customerID], money.FromCents(cents)); err != nil {
				return err
			}
		}

		return s.settleOrder(ctx, tx, repo, actor, order)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Revert refunds a settled payment. The reason is appended to the payment's
// description, open-account debt is returned, and when no completed payment
// remains the order deliberately drops out of PAID back to PENDING.
func (s *service) Revert(ctx context.Context, actor types.Actor, paymentID uuid.UUID, reason string) (*models.Payment, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor identity required")
	}
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund reason required")
	}

	var payment *models.Payment
	err := s.run(ctx, "payment_revert", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		loaded, err := repo.FindPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if loaded.RestaurantID != actor.RestaurantID {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "payment %s not found", paymentID)
		}
		if loaded.Status == enums.PaymentStatusRefunded || loaded.Status == enums.PaymentStatusCancelled {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "payment is already %s", loaded.Status)
		}

		description := "refund: " + reason
		if loaded.Description != "" {
			description = loaded.Description + " | " + description
		}
		if err := repo.UpdatePayment(ctx, loaded.ID, map[string]any{
			"status":      enums.PaymentStatusRefunded,
			"description": description,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund payment")
		}

		if loaded.PaymentMethod == enums.PaymentMethodOpenAccount && loaded.CustomerID != nil {
			customer, err := repo.FindCustomerForUpdate(ctx, *loaded.CustomerID)
			if err != nil {
				return err
			}
			newDebt := customer.CurrentDebt.Sub(loaded.FinalAmount)
			if newDebt.IsNegative() {
				newDebt = decimal.Zero
			}
			if err := repo.UpdateCustomer(ctx, customer.ID, map[string]any{
				"current_debt": newDebt,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "return customer debt")
			}
		}

		remaining, err := repo.CountCompletedByOrder(ctx, loaded.OrderID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			order, err := repo.FindOrderForUpdate(ctx, loaded.OrderID)
			if err != nil {
				return err
			}
			if order.Status == enums.OrderStatusPaid {
				if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
					"status": enums.OrderStatusPending,
				}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reopen order")
				}
			}
		}

		loaded.Status = enums.PaymentStatusRefunded
		loaded.Description = description
		payment = loaded

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentReverted,
			AggregateType: enums.AggregatePayment,
			AggregateID:   loaded.ID,
			Actor:         actorRef(actor),
			Data: outbox.PaymentPayload{
				PaymentID:     loaded.ID,
				OrderID:       loaded.OrderID,
				PaymentMethod: loaded.PaymentMethod,
				Status:        enums.PaymentStatusRefunded,
				FinalAmount:   loaded.FinalAmount,
				Reason:        reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// lockSettleableOrder locks the order, loads its items and rejects orders
// that cannot be settled.
func (s *service) lockSettleableOrder(ctx context.Context, repo Repository, actor types.Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindOrderForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.RestaurantID != actor.RestaurantID {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", orderID)
	}
	if order.Status == enums.OrderStatusPaid {
		return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "order %s is already paid", orderID)
	}
	if order.Status == enums.OrderStatusCancelled {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "order %s is cancelled", orderID)
	}
	items, err := repo.ListOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

// checkOpenAccount locks the customer and enforces open-account policy.
// pendingCents and pendingLegCount cover earlier legs of the same split.
func (s *service) checkOpenAccount(ctx context.Context, repo Repository, actor types.Actor, customerID uuid.UUID, amountCents, pendingCents, pendingLegCount int64) (*models.Customer, error) {
	customer, err := repo.FindCustomerForUpdate(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if customer.RestaurantID != actor.RestaurantID {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "customer %s not found", customerID)
	}

	if customer.CreditLimitEnabled {
		debtCents := money.Cents(customer.CurrentDebt) + pendingCents
		limitCents := money.Cents(customer.CreditLimit)
		if debtCents+amountCents > limitCents {
			return nil, pkgerrors.Newf(pkgerrors.CodeConflict,
				"credit limit exceeded for %s: debt %s plus charge %s exceeds limit %s",
				customer.Name,
				money.FromCents(debtCents).StringFixed(2),
				money.FromCents(amountCents).StringFixed(2),
				money.FromCents(limitCents).StringFixed(2))
		}
	}

	if customer.MaxOpenOrders > 0 {
		count, err := repo.CountCompletedOpenAccount(ctx, customerID)
		if err != nil {
			return nil, err
		}
		if count+pendingLegCount >= int64(customer.MaxOpenOrders) {
			return nil, pkgerrors.Newf(pkgerrors.CodeConflict,
				"%s already has %d open-account payments (limit %d)",
				customer.Name, count, customer.MaxOpenOrders)
		}
	}
	return customer, nil
}

func (s *service) addDebt(ctx context.Context, repo Repository, customer *models.Customer, amount decimal.Decimal) error {
	err := repo.UpdateCustomer(ctx, customer.ID, map[string]any{
		"current_debt": customer.CurrentDebt.Add(amount),
		"total_debt":   customer.TotalDebt.Add(amount),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record customer debt")
	}
	return nil
}

// settleOrder marks the order paid, deducts recipe stock and frees the table
// when no active order remains on it.
func (s *service) settleOrder(ctx context.Context, tx *gorm.DB, repo Repository, actor types.Actor, order *models.Order) error {
	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
		"status": enums.OrderStatusPaid,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}

	if err := s.stock.DecrementForSale(ctx, tx, actor, order); err != nil {
		return err
	}

	if order.TableID == nil {
		return nil
	}
	active, err := repo.CountActiveByTable(ctx, *order.TableID, order.ID)
	if err != nil {
		return err
	}
	if active > 0 {
		return nil
	}
	if err := repo.UpdateTableStatus(ctx, *order.TableID, enums.TableStatusAvailable); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "free table")
	}
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventTableStatusChanged,
		AggregateType: enums.AggregateTable,
		AggregateID:   *order.TableID,
		Actor:         actorRef(actor),
		Data: outbox.TablePayload{
			TableID: *order.TableID,
			Status:  enums.TableStatusAvailable,
			OrderID: &order.ID,
		},
	})
}

func (s *service) emitCompleted(ctx context.Context, tx *gorm.DB, actor types.Actor, payment *models.Payment) error {
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentCompleted,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Actor:         actorRef(actor),
		Data: outbox.PaymentPayload{
			PaymentID:     payment.ID,
			OrderID:       payment.OrderID,
			PaymentMethod: payment.PaymentMethod,
			Status:        payment.Status,
			FinalAmount:   payment.FinalAmount,
			ChangeGiven:   payment.ChangeGiven,
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
