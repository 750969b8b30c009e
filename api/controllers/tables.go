package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orlcnr/mesa-core/api/responses"
	"github.com/orlcnr/mesa-core/api/validators"
	"github.com/orlcnr/mesa-core/internal/tables"
	"github.com/orlcnr/mesa-core/pkg/logger"
)

type transferOrderRequest struct {
	TargetTableID string `json:"targetTableId" validate:"required,uuid"`
}

func OrderTransfer(svc tables.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		orderID, err := parseUUID(chi.URLParam(r, "orderID"), "orderID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body transferOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		targetTableID, err := parseUUID(body.TargetTableID, "targetTableId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		order, err := svc.Transfer(ctx, actor, orderID, targetTableID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
