package middleware

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	dErrors "solsignal/pkg/domain-errors"
	"solsignal/pkg/platform/httputil"
	"solsignal/pkg/requestcontext"
)

// AllowMethods rejects any request whose method is not listed with a plain
// text 405 naming the method.
func AllowMethods(methods ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(methods, r.Method) {
				httputil.WriteText(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s not allowed", r.Method))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecretFunc resolves the expected shared secret at request time. A non-nil
// error means the deployment is missing configuration.
type SecretFunc func() (string, error)

// RequireSharedSecret compares the value of header against the resolved secret
// in constant time. Configuration errors are answered with 500 before any
// comparison happens.
func RequireSharedSecret(header string, secret SecretFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			expected, err := secret()
			if err == nil && expected == "" {
				err = dErrors.New(dErrors.CodeConfiguration, "shared secret is empty")
			}
			if err != nil {
				logger.ErrorContext(ctx, "CRITICAL: ingress secret unavailable",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, err)
				return
			}

			provided := r.Header.Get(header)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
				logger.WarnContext(ctx, "shared secret mismatch",
					"header", header,
					"request_id", requestID,
				)
				httputil.WriteText(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
