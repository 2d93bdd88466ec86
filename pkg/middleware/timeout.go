package middleware

import (
	"context"
	"net/http"
	"runtime/debug"
	"sync"
	"time"
)

// deadlineWriter discards whatever the handler writes once the deadline
// response has gone out.
type deadlineWriter struct {
	http.ResponseWriter
	mu      sync.Mutex
	expired bool
	started bool
}

func (dw *deadlineWriter) WriteHeader(code int) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.expired || dw.started {
		return
	}
	dw.started = true
	dw.ResponseWriter.WriteHeader(code)
}

func (dw *deadlineWriter) Write(b []byte) (int, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.expired {
		return 0, http.ErrHandlerTimeout
	}
	dw.started = true
	return dw.ResponseWriter.Write(b)
}

// expire claims the response for the deadline. It reports false when the
// handler already started writing.
func (dw *deadlineWriter) expire() bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	dw.expired = true
	return !dw.started
}

// RequestTimeout bounds how long a request may hold the connection. The
// handler keeps its cancelled context and may finish in the background; a
// sync pass started through the API stops at its next intent boundary.
func RequestTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			dw := &deadlineWriter{ResponseWriter: w}
			done := make(chan any, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						// the handler runs off the request goroutine, so
						// the panic is carried back for Recovery to handle
						done <- panicked{value: p, stack: debug.Stack()}
						return
					}
					done <- nil
				}()
				next.ServeHTTP(dw, r.WithContext(ctx))
			}()

			select {
			case result := <-done:
				if p, ok := result.(panicked); ok {
					panic(p)
				}
			case <-ctx.Done():
				if dw.expire() {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					_, _ = w.Write([]byte(`{"error":"Request timeout","code":"TIMEOUT"}`))
				}
			}
		})
	}
}

type panicked struct {
	value any
	stack []byte
}
