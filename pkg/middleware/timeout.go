package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	apperrors "roombook/pkg/errors"
	httputil "roombook/pkg/http"
)

// timeoutWriter drops writes from a handler that is still running after its
// deadline has been answered. The handler gets its own header map, copied to
// the real writer only when the response is committed, so the timeout reply
// never shares headers with a running handler.
type timeoutWriter struct {
	w          http.ResponseWriter
	h          http.Header
	mu         sync.Mutex
	timedOut   bool
	written    bool
	statusCode int
}

func newTimeoutWriter(w http.ResponseWriter) *timeoutWriter {
	return &timeoutWriter{w: w, h: make(http.Header)}
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.h
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timedOut || tw.written {
		return
	}
	tw.commitLocked(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !tw.written {
		tw.commitLocked(http.StatusOK)
	}

	return tw.w.Write(b)
}

// commitLocked copies the handler's headers across and sends the status.
// Callers hold tw.mu.
func (tw *timeoutWriter) commitLocked(code int) {
	dst := tw.w.Header()
	for k, v := range tw.h {
		dst[k] = append([]string(nil), v...)
	}
	tw.statusCode = code
	tw.written = true
	tw.w.WriteHeader(code)
}

// finish flushes headers for a handler that returned without writing.
func (tw *timeoutWriter) finish() {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timedOut || tw.written {
		return
	}
	dst := tw.w.Header()
	for k, v := range tw.h {
		dst[k] = append([]string(nil), v...)
	}
}

// RequestTimeout bounds the request context. Handlers that overrun and have
// not written anything yet are answered with TIMEOUT.
func RequestTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			r = r.WithContext(ctx)

			tw := newTimeoutWriter(w)

			done := make(chan struct{})
			panicCh := make(chan any, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicCh <- p
					}
				}()
				next.ServeHTTP(tw, r)
				close(done)
			}()

			select {
			case p := <-panicCh:
				panic(p)
			case <-done:
				tw.finish()
			case <-ctx.Done():
				tw.mu.Lock()
				defer tw.mu.Unlock()
				tw.timedOut = true
				if !tw.written {
					tw.written = true
					_ = httputil.WriteError(w, apperrors.Timeout("Request timeout"))
				}
			}
		})
	}
}
