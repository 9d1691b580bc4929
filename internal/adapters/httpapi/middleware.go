package httpapi

import (
	"context"
	"net/http"
	"strings"
)

type operatorKey struct{}

// RequireOperator rejects requests without an operator identity and
// stores it in the request context.
func RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operator := strings.TrimSpace(r.Header.Get(OperatorHeader))
		if operator == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing " + OperatorHeader + " header"})
			return
		}
		ctx := context.WithValue(r.Context(), operatorKey{}, operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func operatorFrom(ctx context.Context) string {
	op, _ := ctx.Value(operatorKey{}).(string)
	return op
}
