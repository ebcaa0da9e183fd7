package middleware

import (
	"fmt"
	"net/http"

	apperrors "roombook/pkg/errors"
	httputil "roombook/pkg/http"
)

// MaxRequestSize rejects bodies that declare more than limit bytes and caps
// the rest, so a decoder reading past the limit gets an error.
func MaxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				_ = httputil.WriteError(w, apperrors.New(
					apperrors.CodeInvalidInput,
					fmt.Sprintf("Request body exceeds %d bytes", limit),
					http.StatusRequestEntityTooLarge,
				))
				return
			}

			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
