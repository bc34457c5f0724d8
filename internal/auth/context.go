package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"
)

type storeIDKey struct{}

// WithStoreID is used by callers that authenticate the terminal themselves.
func WithStoreID(ctx context.Context, storeID string) context.Context {
	return context.WithValue(ctx, storeIDKey{}, storeID)
}

// GetStoreID returns the store the calling terminal belongs to, from the
// context or from the x-store-id metadata header. Empty when unknown.
func GetStoreID(ctx context.Context) string {
	if val, ok := ctx.Value(storeIDKey{}).(string); ok {
		return val
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if val := md.Get("x-store-id"); len(val) > 0 {
			return strings.TrimSpace(val[0])
		}
	}
	return ""
}
