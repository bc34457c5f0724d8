// Package transport holds the gRPC plumbing shared by the service handlers.
// Messages are google.protobuf.Struct, decoded into and encoded from the
// JSON shape of the dto and model types.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fekuna/omnipos-benefits-service/internal/apperr"
	"github.com/fekuna/omnipos-benefits-service/pkg/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Decode fills v from the request struct. Failures are InvalidArgument.
func Decode(req *structpb.Struct, v interface{}) error {
	if req == nil {
		req = &structpb.Struct{}
	}
	raw, err := json.Marshal(req.AsMap())
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return status.Error(codes.InvalidArgument, fmt.Sprintf("malformed request: %v", err))
	}
	return nil
}

func Encode(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// StatusError maps use case errors onto gRPC codes. Unexpected errors are
// logged and returned without internals.
func StatusError(log logger.ZapLogger, method string, err error) error {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, ve.Error())
	case errors.Is(err, apperr.ErrInsufficientBalance):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, apperr.ErrLedgerConflict):
		return status.Error(codes.Aborted, "purchase declined, ledger busy")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	log.Error("Request failed", zap.String("method", method), zap.Error(err))
	return status.Error(codes.Internal, "internal error")
}
