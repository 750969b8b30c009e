package middleware

import (
	"fmt"
	"net/http"

	"github.com/orlcnr/mesa-core/api/responses"
	pkgerrors "github.com/orlcnr/mesa-core/pkg/errors"
	"github.com/orlcnr/mesa-core/pkg/logger"
)

// Recoverer converts handler panics into a 500 response. http.ErrAbortHandler
// is rethrown so the server can abort the connection as intended.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err := fmt.Errorf("panic: %v", rec)
				ctx := r.Context()
				if logg != nil {
					logg.Error(logg.WithField(ctx, "panic", rec), "panic.recovered", err)
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
