package handler

import (
	"context"

	"github.com/fekuna/omnipos-benefits-service/internal/scan"
	"github.com/fekuna/omnipos-benefits-service/internal/scan/dto"
	"github.com/fekuna/omnipos-benefits-service/internal/transport"
	"github.com/fekuna/omnipos-benefits-service/pkg/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName    = "benefits.v1.EligibilityService"
	ScanFullMethod = "/" + ServiceName + "/Scan"
)

type EligibilityServiceServer interface {
	Scan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type ScanHandler struct {
	uc     scan.UseCase
	logger logger.ZapLogger
}

func NewScanHandler(uc scan.UseCase, log logger.ZapLogger) *ScanHandler {
	return &ScanHandler{
		uc:     uc,
		logger: log,
	}
}

// Scan never fails for unknown codes; those come back with found=false.
func (h *ScanHandler) Scan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.ScanInput
	if err := transport.Decode(req, &input); err != nil {
		return nil, err
	}

	result, err := h.uc.Scan(ctx, &input)
	if err != nil {
		return nil, transport.StatusError(h.logger, ScanFullMethod, err)
	}

	h.logger.Debug("Scan resolved",
		zap.String("code", result.Code),
		zap.Bool("found", result.Found),
		zap.Bool("approved", result.IsApproved),
	)
	return transport.Encode(result)
}

func RegisterEligibilityServiceServer(s grpc.ServiceRegistrar, srv EligibilityServiceServer) {
	s.RegisterService(&EligibilityServiceDesc, srv)
}

func scanHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EligibilityServiceServer).Scan(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ScanFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EligibilityServiceServer).Scan(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var EligibilityServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EligibilityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Scan", Handler: scanHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "benefits/v1/eligibility.proto",
}
