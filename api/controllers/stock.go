package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/orlcnr/mesa-core/api/responses"
	"github.com/orlcnr/mesa-core/api/validators"
	"github.com/orlcnr/mesa-core/internal/stock"
	"github.com/orlcnr/mesa-core/pkg/enums"
	"github.com/orlcnr/mesa-core/pkg/logger"
)

type stockMovementRequest struct {
	IngredientID string           `json:"ingredientId" validate:"required,uuid"`
	Type         string           `json:"type" validate:"required,oneof=in out adjust"`
	Quantity     decimal.Decimal  `json:"quantity"`
	UnitPrice    *decimal.Decimal `json:"unitPrice,omitempty"`
	Reason       string           `json:"reason,omitempty"`
	ReferenceID  string           `json:"referenceId,omitempty" validate:"omitempty,uuid"`
}

func StockMovementRecord(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body stockMovementRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		ingredientID, err := parseUUID(body.IngredientID, "ingredientId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		referenceID, err := parseOptionalUUID(body.ReferenceID, "referenceId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		movement, err := svc.RecordMovement(ctx, actor, stock.RecordMovementInput{
			IngredientID: ingredientID,
			Type:         enums.StockMovementType(body.Type),
			Quantity:     body.Quantity,
			UnitPrice:    body.UnitPrice,
			Reason:       body.Reason,
			ReferenceID:  referenceID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, movement)
	}
}

type bulkAdjustRequest struct {
	Updates []countUpdateRequest `json:"updates" validate:"required,min=1,dive"`
}

type countUpdateRequest struct {
	IngredientID    string          `json:"ingredientId" validate:"required,uuid"`
	CountedQuantity decimal.Decimal `json:"countedQuantity"`
}

func StockBulkAdjust(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body bulkAdjustRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		updates := make([]stock.CountUpdate, 0, len(body.Updates))
		for _, update := range body.Updates {
			ingredientID, err := parseUUID(update.IngredientID, "ingredientId")
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			updates = append(updates, stock.CountUpdate{
				IngredientID:    ingredientID,
				CountedQuantity: update.CountedQuantity,
			})
		}

		movements, err := svc.BulkAdjust(ctx, actor, updates)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, movements)
	}
}
