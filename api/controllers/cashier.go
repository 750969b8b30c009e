package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/orlcnr/mesa-core/api/responses"
	"github.com/orlcnr/mesa-core/api/validators"
	"github.com/orlcnr/mesa-core/internal/cashier"
	"github.com/orlcnr/mesa-core/pkg/enums"
	"github.com/orlcnr/mesa-core/pkg/logger"
)

type openSessionRequest struct {
	RegisterID     string          `json:"registerId" validate:"required,uuid"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
}

func CashSessionOpen(svc cashier.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body openSessionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		registerID, err := parseUUID(body.RegisterID, "registerId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		session, err := svc.OpenSession(ctx, actor, registerID, body.OpeningBalance)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

type closeSessionRequest struct {
	CountedBalance decimal.Decimal `json:"countedBalance"`
}

func CashSessionClose(svc cashier.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		sessionID, err := parseUUID(chi.URLParam(r, "sessionID"), "sessionID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body closeSessionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		session, err := svc.CloseSession(ctx, actor, sessionID, body.CountedBalance)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

type cashMovementRequest struct {
	Type          string          `json:"type" validate:"required,oneof=in out"`
	PaymentMethod string          `json:"paymentMethod" validate:"required,oneof=cash card transfer open_account"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description,omitempty"`
}

func CashMovementRecord(svc cashier.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		sessionID, err := parseUUID(chi.URLParam(r, "sessionID"), "sessionID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body cashMovementRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		movement, err := svc.RecordMovement(ctx, actor, sessionID, cashier.MovementInput{
			Type:          enums.CashMovementType(body.Type),
			PaymentMethod: enums.PaymentMethod(body.PaymentMethod),
			Amount:        body.Amount,
			Description:   body.Description,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, movement)
	}
}
