package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	apperrors "slotbook/pkg/errors"
	httputil "slotbook/pkg/http"
	"slotbook/pkg/logger"
)

func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}

					log.Error("Panic recovered",
						"request_id", RequestID(r.Context()),
						"error", rec,
						"method", r.Method,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)

					err := apperrors.Internal("Internal server error", fmt.Errorf("panic: %v", rec))
					_ = httputil.WriteError(w, err)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
