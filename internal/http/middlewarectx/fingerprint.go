package middlewarectx

import (
	"net/http"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/fingerprint"
)

// FingerprintMiddleware кладёт отпечаток устройства клиента в контекст запроса.
func FingerprintMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := fingerprint.WithFingerprint(r.Context(), fingerprint.FromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
