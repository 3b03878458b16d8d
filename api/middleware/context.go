package middleware

import "context"

type contextKey string

const ctxAddress contextKey = "wallet_address"

// AddressFromContext returns the authenticated wallet address, or "" when the
// request was not authenticated.
func AddressFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAddress).(string); ok {
		return v
	}
	return ""
}

// WithAddress injects the wallet address into the context for downstream handlers.
func WithAddress(ctx context.Context, addr string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxAddress, addr)
}
