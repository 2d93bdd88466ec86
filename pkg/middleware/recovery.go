package middleware

import (
	"bookingsync/pkg/logger"
	"fmt"
	"net/http"
	"runtime/debug"

	apperrors "bookingsync/pkg/errors"
	httputil "bookingsync/pkg/http"
)

// Recovery turns a handler panic into a 500 so one bad request cannot take
// down the daemon and its sync loop with it.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					stack := debug.Stack()
					if carried, ok := p.(panicked); ok {
						p, stack = carried.value, carried.stack
					}
					logPanic(log, r, p, stack)
					httputil.WriteError(w, apperrors.Internal("Internal server error", fmt.Errorf("panic: %v", p)))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func logPanic(log *logger.Logger, r *http.Request, p any, stack []byte) {
	log.Error("Panic recovered",
		"request_id", RequestID(r),
		"error", p,
		"method", r.Method,
		"path", r.URL.Path,
		"stack", string(stack),
	)
}
