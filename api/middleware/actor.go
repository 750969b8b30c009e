package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/orlcnr/mesa-core/api/responses"
	pkgerrors "github.com/orlcnr/mesa-core/pkg/errors"
	"github.com/orlcnr/mesa-core/pkg/logger"
	"github.com/orlcnr/mesa-core/pkg/types"
)

// Authentication is external; the gateway in front of this service resolves
// the session and forwards the identity in these headers.
const (
	actorIDHeader      = "X-Actor-Id"
	restaurantIDHeader = "X-Restaurant-Id"
	actorRoleHeader    = "X-Actor-Role"
)

type actorCtxKey struct{}

// RequireActor extracts the acting user and restaurant from the forwarded
// identity headers and rejects requests that lack them.
func RequireActor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			userID, err := uuid.Parse(r.Header.Get(actorIDHeader))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "missing or invalid actor id header"))
				return
			}
			restaurantID, err := uuid.Parse(r.Header.Get(restaurantIDHeader))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "missing or invalid restaurant id header"))
				return
			}

			actor := types.Actor{
				UserID:       userID,
				RestaurantID: restaurantID,
				Role:         r.Header.Get(actorRoleHeader),
			}

			if logg != nil {
				ctx = logg.WithActorID(ctx, userID.String())
				ctx = logg.WithRestaurantID(ctx, restaurantID.String())
			}
			ctx = context.WithValue(ctx, actorCtxKey{}, actor)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFrom returns the actor attached by RequireActor.
func ActorFrom(ctx context.Context) (types.Actor, bool) {
	actor, ok := ctx.Value(actorCtxKey{}).(types.Actor)
	return actor, ok
}
