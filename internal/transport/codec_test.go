package transport

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fekuna/omnipos-benefits-service/internal/apperr"
	"github.com/fekuna/omnipos-benefits-service/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type lineReq struct {
	Category string          `json:"category"`
	Quantity decimal.Decimal `json:"quantity"`
}

type purchaseReq struct {
	CardID string    `json:"card_id"`
	Lines  []lineReq `json:"lines"`
}

func TestDecode(t *testing.T) {
	req, err := structpb.NewStruct(map[string]interface{}{
		"card_id": "card-1",
		"lines": []interface{}{
			map[string]interface{}{"category": "milk", "quantity": 64},
			map[string]interface{}{"category": "cereal", "quantity": "12.5"},
		},
	})
	require.NoError(t, err)

	var out purchaseReq
	require.NoError(t, Decode(req, &out))

	assert.Equal(t, "card-1", out.CardID)
	require.Len(t, out.Lines, 2)
	assert.True(t, decimal.NewFromInt(64).Equal(out.Lines[0].Quantity))
	assert.True(t, decimal.RequireFromString("12.5").Equal(out.Lines[1].Quantity))
}

func TestDecode_Malformed(t *testing.T) {
	req, err := structpb.NewStruct(map[string]interface{}{"lines": "not a list"})
	require.NoError(t, err)

	var out purchaseReq
	err = Decode(req, &out)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestEncode(t *testing.T) {
	s, err := Encode(purchaseReq{CardID: "card-1", Lines: []lineReq{{Category: "milk", Quantity: decimal.NewFromInt(64)}}})
	require.NoError(t, err)

	assert.Equal(t, "card-1", s.Fields["card_id"].GetStringValue())
	lines := s.Fields["lines"].GetListValue().GetValues()
	require.Len(t, lines, 1)
	assert.Equal(t, "64", lines[0].GetStructValue().Fields["quantity"].GetStringValue())
}

func TestStatusError(t *testing.T) {
	log := logger.NewNopLogger()
	cases := []struct {
		err  error
		code codes.Code
	}{
		{apperr.NewValidationError("code", "is required"), codes.InvalidArgument},
		{fmt.Errorf("milk: %w", apperr.ErrInsufficientBalance), codes.FailedPrecondition},
		{fmt.Errorf("%w: deadlock", apperr.ErrLedgerConflict), codes.Aborted},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{status.Error(codes.NotFound, "x"), codes.NotFound},
		{errors.New("connection refused"), codes.Internal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, status.Code(StatusError(log, "/test", tc.err)), tc.err.Error())
	}

	st, _ := status.FromError(StatusError(log, "/test", errors.New("password=hunter2")))
	assert.Equal(t, "internal error", st.Message())
}
