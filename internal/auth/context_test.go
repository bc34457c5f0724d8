package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/metadata"
)

func TestGetStoreID(t *testing.T) {
	assert.Equal(t, "", GetStoreID(context.Background()))

	md := metadata.Pairs("x-store-id", " store-9 ")
	ctx := metadata.NewIncomingContext(context.Background(), md)
	assert.Equal(t, "store-9", GetStoreID(ctx))

	assert.Equal(t, "store-1", GetStoreID(WithStoreID(ctx, "store-1")))
}
