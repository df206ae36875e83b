package auth

import (
	"net/http"
	"strings"

	"github.com/carlosbmello/echef-caixa-web/internal/common"
)

// Middleware attaches operator identity to HTTP handlers.
type Middleware struct {
	Verifier *Verifier
}

// RequireOperator rejects the request unless a valid operator token is
// present. On success the operator ID and the raw bearer token are stored in
// the request context so downstream backend calls can forward the token.
func (m Middleware) RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r)
		if token == "" {
			common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "missing or invalid token", nil)
			return
		}
		operatorID, err := m.Verifier.Verify(token)
		if err != nil {
			common.RenderError(w, err)
			return
		}
		ctx := common.WithOperatorID(r.Context(), operatorID)
		ctx = common.WithAuthToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearer(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
