package handler

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-benefits-service/internal/auth"
	"github.com/fekuna/omnipos-benefits-service/internal/ledger"
	"github.com/fekuna/omnipos-benefits-service/internal/ledger/dto"
	"github.com/fekuna/omnipos-benefits-service/internal/model"
	"github.com/fekuna/omnipos-benefits-service/internal/transport"
	"github.com/fekuna/omnipos-benefits-service/pkg/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "benefits.v1.LedgerService"

type LedgerServiceServer interface {
	ApplyPurchase(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	PreviewPurchase(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListBalances(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListPurchases(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type LedgerHandler struct {
	uc     ledger.UseCase
	logger logger.ZapLogger
}

func NewLedgerHandler(uc ledger.UseCase, log logger.ZapLogger) *LedgerHandler {
	return &LedgerHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *LedgerHandler) ApplyPurchase(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.ApplyPurchaseInput
	if err := transport.Decode(req, &input); err != nil {
		return nil, err
	}
	if input.StoreID == "" {
		input.StoreID = auth.GetStoreID(ctx)
	}

	record, err := h.uc.ApplyPurchase(ctx, &input)
	if err != nil {
		return nil, transport.StatusError(h.logger, fullMethod("ApplyPurchase"), err)
	}

	h.logger.Info("Purchase applied",
		zap.String("purchase_id", record.ID),
		zap.String("card_id", record.CardID),
		zap.Int("lines", len(record.Lines)),
	)
	return transport.Encode(record)
}

func (h *LedgerHandler) PreviewPurchase(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input dto.PreviewInput
	if err := transport.Decode(req, &input); err != nil {
		return nil, err
	}

	preview, err := h.uc.PreviewPurchase(ctx, &input)
	if err != nil {
		return nil, transport.StatusError(h.logger, fullMethod("PreviewPurchase"), err)
	}
	return transport.Encode(preview)
}

type listBalancesRequest struct {
	CardID string     `json:"card_id"`
	AsOf   *time.Time `json:"as_of"`
}

type listBalancesResponse struct {
	CardID   string               `json:"card_id"`
	Balances []model.BenefitEntry `json:"balances"`
}

func (h *LedgerHandler) ListBalances(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in listBalancesRequest
	if err := transport.Decode(req, &in); err != nil {
		return nil, err
	}
	asOf := time.Time{}
	if in.AsOf != nil {
		asOf = *in.AsOf
	}

	balances, err := h.uc.ListBalances(ctx, in.CardID, asOf)
	if err != nil {
		return nil, transport.StatusError(h.logger, fullMethod("ListBalances"), err)
	}
	if balances == nil {
		balances = []model.BenefitEntry{}
	}
	return transport.Encode(listBalancesResponse{CardID: in.CardID, Balances: balances})
}

type listPurchasesRequest struct {
	CardID   string     `json:"card_id"`
	From     *time.Time `json:"from"`
	To       *time.Time `json:"to"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

type listPurchasesResponse struct {
	Purchases []model.PurchaseRecord `json:"purchases"`
	Total     int                    `json:"total"`
}

func (h *LedgerHandler) ListPurchases(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in listPurchasesRequest
	if err := transport.Decode(req, &in); err != nil {
		return nil, err
	}

	items, total, err := h.uc.ListPurchases(ctx, &dto.PurchaseFilters{
		CardID:   in.CardID,
		From:     in.From,
		To:       in.To,
		Page:     in.Page,
		PageSize: in.PageSize,
	})
	if err != nil {
		return nil, transport.StatusError(h.logger, fullMethod("ListPurchases"), err)
	}
	if items == nil {
		items = []model.PurchaseRecord{}
	}
	return transport.Encode(listPurchasesResponse{Purchases: items, Total: total})
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}

type unaryMethod func(srv LedgerServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// methodHandler adapts one LedgerServiceServer method to grpc.MethodDesc.
func methodHandler(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LedgerServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(LedgerServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		methodHandler("ApplyPurchase", LedgerServiceServer.ApplyPurchase),
		methodHandler("PreviewPurchase", LedgerServiceServer.PreviewPurchase),
		methodHandler("ListBalances", LedgerServiceServer.ListBalances),
		methodHandler("ListPurchases", LedgerServiceServer.ListPurchases),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "benefits/v1/ledger.proto",
}
