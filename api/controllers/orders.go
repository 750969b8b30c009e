package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orlcnr/mesa-core/api/responses"
	"github.com/orlcnr/mesa-core/api/validators"
	"github.com/orlcnr/mesa-core/internal/orders"
	"github.com/orlcnr/mesa-core/pkg/enums"
	"github.com/orlcnr/mesa-core/pkg/logger"
)

type createOrderRequest struct {
	TableID  string  `json:"tableId,omitempty" validate:"omitempty,uuid"`
	WaiterID string  `json:"waiterId,omitempty" validate:"omitempty,uuid"`
	Type     string  `json:"type" validate:"required,oneof=dine_in takeaway delivery"`
	Source   string  `json:"source" validate:"required,oneof=pos qr phone"`
	Notes    *string `json:"notes,omitempty"`
}

func OrderCreate(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body createOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		tableID, err := parseOptionalUUID(body.TableID, "tableId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		waiterID, err := parseOptionalUUID(body.WaiterID, "waiterId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		order, err := svc.Create(ctx, actor, orders.CreateInput{
			TableID:  tableID,
			WaiterID: waiterID,
			Type:     enums.OrderType(body.Type),
			Source:   enums.OrderSource(body.Source),
			Notes:    body.Notes,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

type updateOrderItemsRequest struct {
	Items []orderItemTarget `json:"items" validate:"required,min=1,dive"`
}

type orderItemTarget struct {
	MenuItemID string `json:"menuItemId" validate:"required,uuid"`
	Quantity   int    `json:"quantity" validate:"min=0"`
}

func OrderUpdateItems(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
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

		var body updateOrderItemsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		targets := make([]orders.ItemTarget, 0, len(body.Items))
		for _, item := range body.Items {
			menuItemID, err := parseUUID(item.MenuItemID, "menuItemId")
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			targets = append(targets, orders.ItemTarget{
				MenuItemID: menuItemID,
				Quantity:   item.Quantity,
			})
		}

		order, err := svc.UpdateItems(ctx, actor, orderID, targets)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=preparing ready served"`
}

func OrderUpdateStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
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

		var body updateOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		order, err := svc.UpdateStatus(ctx, actor, orderID, enums.OrderStatus(body.Status))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type cancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

func OrderCancel(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
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

		var body cancelOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		order, err := svc.Cancel(ctx, actor, orderID, body.Reason)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func OrderGet(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
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

		order, err := svc.Get(ctx, actor, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
