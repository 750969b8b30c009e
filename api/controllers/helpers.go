package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/orlcnr/mesa-core/api/middleware"
	"github.com/orlcnr/mesa-core/api/responses"
	pkgerrors "github.com/orlcnr/mesa-core/pkg/errors"
	"github.com/orlcnr/mesa-core/pkg/logger"
	"github.com/orlcnr/mesa-core/pkg/types"
)

func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (types.Actor, bool) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "actor identity required"))
		return types.Actor{}, false
	}
	return actor, true
}

func parseUUID(value, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeValidation, "%s must be a valid uuid", field)
	}
	return id, nil
}

func parseOptionalUUID(value, field string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := parseUUID(value, field)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
