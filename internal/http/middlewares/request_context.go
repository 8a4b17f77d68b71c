package middlewares

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dropDatabas3/whoisit/internal/observability/logger"
)

// WithRequestContext asigna un request id y propaga un logger scoped con
// campos del request en el contexto.
func WithRequestContext() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", reqID)

			log := logger.With(
				logger.RequestID(reqID),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
			)
			next.ServeHTTP(w, r.WithContext(logger.ToContext(r.Context(), log)))
		})
	}
}
