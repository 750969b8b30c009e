package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/orlcnr/mesa-core/api/responses"
	"github.com/orlcnr/mesa-core/api/validators"
	"github.com/orlcnr/mesa-core/internal/payments"
	"github.com/orlcnr/mesa-core/pkg/enums"
	"github.com/orlcnr/mesa-core/pkg/logger"
)

type createPaymentRequest struct {
	OrderID        string          `json:"orderId" validate:"required,uuid"`
	PaymentMethod  string          `json:"paymentMethod" validate:"required,oneof=cash card transfer open_account"`
	CustomerID     string          `json:"customerId,omitempty" validate:"omitempty,uuid"`
	DiscountType   *string         `json:"discountType,omitempty" validate:"omitempty,oneof=percentage fixed"`
	DiscountValue  decimal.Decimal `json:"discountValue"`
	TipAmount      decimal.Decimal `json:"tipAmount"`
	CommissionRate decimal.Decimal `json:"commissionRate"`
	CashReceived   decimal.Decimal `json:"cashReceived"`
	Description    string          `json:"description,omitempty"`
}

func PaymentCreate(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body createPaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		orderID, err := parseUUID(body.OrderID, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		customerID, err := parseOptionalUUID(body.CustomerID, "customerId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := payments.CreateInput{
			OrderID:        orderID,
			PaymentMethod:  enums.PaymentMethod(body.PaymentMethod),
			CustomerID:     customerID,
			DiscountValue:  body.DiscountValue,
			TipAmount:      body.TipAmount,
			CommissionRate: body.CommissionRate,
			CashReceived:   body.CashReceived,
			Description:    body.Description,
		}
		if body.DiscountType != nil {
			kind := enums.DiscountType(*body.DiscountType)
			input.DiscountType = &kind
		}

		payment, err := svc.Create(ctx, actor, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payment)
	}
}

type splitPaymentRequest struct {
	OrderID       string            `json:"orderId" validate:"required,uuid"`
	DiscountType  *string           `json:"discountType,omitempty" validate:"omitempty,oneof=percentage fixed"`
	DiscountValue decimal.Decimal   `json:"discountValue"`
	Legs          []splitLegRequest `json:"legs" validate:"required,min=1,dive"`
}

type splitLegRequest struct {
	PaymentMethod  string          `json:"paymentMethod" validate:"required,oneof=cash card transfer open_account"`
	Amount         decimal.Decimal `json:"amount"`
	CustomerID     string          `json:"customerId,omitempty" validate:"omitempty,uuid"`
	DiscountType   *string         `json:"discountType,omitempty" validate:"omitempty,oneof=percentage fixed"`
	DiscountValue  decimal.Decimal `json:"discountValue"`
	TipAmount      decimal.Decimal `json:"tipAmount"`
	CommissionRate decimal.Decimal `json:"commissionRate"`
	CashReceived   decimal.Decimal `json:"cashReceived"`
	Description    string          `json:"description,omitempty"`
}

func PaymentCreateSplit(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body splitPaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		orderID, err := parseUUID(body.OrderID, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := payments.SplitInput{
			OrderID:       orderID,
			DiscountValue: body.DiscountValue,
		}
		if body.DiscountType != nil {
			kind := enums.DiscountType(*body.DiscountType)
			input.DiscountType = &kind
		}

		for _, leg := range body.Legs {
			customerID, err := parseOptionalUUID(leg.CustomerID, "customerId")
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			converted := payments.SplitLeg{
				PaymentMethod:  enums.PaymentMethod(leg.PaymentMethod),
				Amount:         leg.Amount,
				CustomerID:     customerID,
				DiscountValue:  leg.DiscountValue,
				TipAmount:      leg.TipAmount,
				CommissionRate: leg.CommissionRate,
				CashReceived:   leg.CashReceived,
				Description:    leg.Description,
			}
			if leg.DiscountType != nil {
				kind := enums.DiscountType(*leg.DiscountType)
				converted.DiscountType = &kind
			}
			input.Legs = append(input.Legs, converted)
		}

		created, err := svc.CreateSplit(ctx, actor, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

type revertPaymentRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func PaymentRevert(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		paymentID, err := parseUUID(chi.URLParam(r, "paymentID"), "paymentID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body revertPaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		payment, err := svc.Revert(ctx, actor, paymentID, body.Reason)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}
