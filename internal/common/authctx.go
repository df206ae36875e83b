package common

import "context"

type ctxKey string

const (
	operatorIDKey ctxKey = "auth/operator-id"
	authTokenKey  ctxKey = "auth/bearer-token"
)

// WithOperatorID stores the authenticated operator identifier on the context.
func WithOperatorID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operatorIDKey, id)
}

// OperatorID extracts the authenticated operator identifier from the context.
func OperatorID(ctx context.Context) (string, bool) {
	v := ctx.Value(operatorIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// WithAuthToken stores the raw bearer token so the backend client can forward
// the operator's credentials on outgoing calls.
func WithAuthToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, authTokenKey, token)
}

// AuthToken extracts the raw bearer token from the context if present.
func AuthToken(ctx context.Context) (string, bool) {
	v := ctx.Value(authTokenKey)
	if v == nil {
		return "", false
	}
	token, ok := v.(string)
	return token, ok
}
