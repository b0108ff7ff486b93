package handler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/service"
)

const (
	// CallerMetadataKey carries the authenticated account of an RPC.
	CallerMetadataKey = "x-caller-id"

	serviceName = "market.v1.MarketService"
)

// jsonCodec lets the service speak gRPC without generated protobuf types.
// Clients select it with grpc.CallContentSubtype("json").
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type PurchaseRequest struct {
	RequestID string `json:"request_id"`
	ListingID uint64 `json:"listing_id"`
	Amount    uint64 `json:"amount"`
	Value     uint64 `json:"value"`
}

type PurchaseResponse struct {
	OrderID  uint64 `json:"order_id"`
	Total    uint64 `json:"total"`
	Fee      uint64 `json:"fee"`
	Cashback uint64 `json:"cashback"`
	Refund   uint64 `json:"refund"`
}

type DepositRequest struct {
	Value uint64 `json:"value"`
}

type WithdrawRequest struct {
	Amount uint64 `json:"amount"`
}

type BalanceResponse struct {
	Balance uint64 `json:"balance"`
}

type GetAccountingRequest struct{}

type AccountingResponse struct {
	Held            uint64 `json:"held"`
	UserBalances    uint64 `json:"user_balances"`
	PlatformBalance uint64 `json:"platform_balance"`
	Balanced        bool   `json:"balanced"`
}

type MarketServiceServer interface {
	Purchase(context.Context, *PurchaseRequest) (*PurchaseResponse, error)
	Deposit(context.Context, *DepositRequest) (*BalanceResponse, error)
	Withdraw(context.Context, *WithdrawRequest) (*BalanceResponse, error)
	GetAccounting(context.Context, *GetAccountingRequest) (*AccountingResponse, error)

	// Listing owner
	CreateListing(context.Context, *CreateListingRequest) (*CreateListingResponse, error)
	SetListingPrice(context.Context, *SetListingPriceRequest) (*AckResponse, error)
	SetListingQuantity(context.Context, *SetListingQuantityRequest) (*AckResponse, error)
	SetListingActive(context.Context, *SetListingActiveRequest) (*AckResponse, error)
	SetListingDelisted(context.Context, *SetListingDelistedRequest) (*AckResponse, error)

	// Platform admin
	ApproveSeller(context.Context, *ApproveSellerRequest) (*AckResponse, error)
	SetVIP(context.Context, *SetVIPRequest) (*AckResponse, error)
	SetFee(context.Context, *SetFeeRequest) (*AckResponse, error)
	SetInventoryState(context.Context, *SetInventoryStateRequest) (*AckResponse, error)
	SetOrderIntake(context.Context, *SetOrderIntakeRequest) (*AckResponse, error)
	RemoveListing(context.Context, *ListingRequest) (*AckResponse, error)
	ShipOrder(context.Context, *ShipOrderRequest) (*AckResponse, error)
	WithdrawPlatform(context.Context, *WithdrawRequest) (*AckResponse, error)
}

type GRPCHandler struct {
	marketService *service.MarketService
	logger        *zap.Logger
}

func NewGRPCHandler(marketService *service.MarketService, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{marketService: marketService, logger: logger}
}

func (h *GRPCHandler) Purchase(ctx context.Context, req *PurchaseRequest) (*PurchaseResponse, error) {
	caller, err := callerFromMetadata(ctx)
	if err != nil {
		return nil, err
	}
	if req.RequestID == "" || req.ListingID == 0 || req.Amount == 0 {
		return nil, status.Error(codes.InvalidArgument, "missing required fields")
	}

	receipt, err := h.marketService.Purchase(ctx, req.RequestID, caller,
		domain.ListingID(req.ListingID), domain.Quantity(req.Amount), domain.Amount(req.Value))
	if err != nil {
		return nil, h.statusError(err)
	}
	return &PurchaseResponse{
		OrderID:  uint64(receipt.OrderID),
		Total:    uint64(receipt.Total),
		Fee:      uint64(receipt.Fee),
		Cashback: uint64(receipt.Cashback),
		Refund:   uint64(receipt.Refund),
	}, nil
}

func (h *GRPCHandler) Deposit(ctx context.Context, req *DepositRequest) (*BalanceResponse, error) {
	caller, err := callerFromMetadata(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.marketService.Deposit(ctx, caller, domain.Amount(req.Value)); err != nil {
		return nil, h.statusError(err)
	}
	return &BalanceResponse{Balance: uint64(h.marketService.Balance(caller))}, nil
}

func (h *GRPCHandler) Withdraw(ctx context.Context, req *WithdrawRequest) (*BalanceResponse, error) {
	caller, err := callerFromMetadata(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.marketService.Withdraw(ctx, caller, domain.Amount(req.Amount)); err != nil {
		return nil, h.statusError(err)
	}
	return &BalanceResponse{Balance: uint64(h.marketService.Balance(caller))}, nil
}

func (h *GRPCHandler) GetAccounting(ctx context.Context, _ *GetAccountingRequest) (*AccountingResponse, error) {
	acc := h.marketService.Accounting()
	return &AccountingResponse{
		Held:            uint64(acc.Held),
		UserBalances:    uint64(acc.UserBalances),
		PlatformBalance: uint64(acc.PlatformBalance),
		Balanced:        acc.Balanced(),
	}, nil
}

func (h *GRPCHandler) statusError(err error) error {
	code := grpcCode(err)
	if code == codes.Internal {
		h.logger.Error("rpc failed", zap.Error(err))
	}
	return status.Error(code, publicMessage(err))
}

func callerFromMetadata(ctx context.Context) (domain.Account, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	if values := md.Get(CallerMetadataKey); len(values) > 0 && values[0] != "" {
		return domain.Account(values[0]), nil
	}
	return "", status.Error(codes.Unauthenticated, "missing "+CallerMetadataKey+" metadata")
}

// RegisterMarketServiceServer registers srv on s.
func RegisterMarketServiceServer(s grpc.ServiceRegistrar, srv MarketServiceServer) {
	s.RegisterService(&MarketServiceDesc, srv)
}

var MarketServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*MarketServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Purchase", Handler: unary("Purchase", func(s MarketServiceServer, ctx context.Context, req *PurchaseRequest) (any, error) {
			return s.Purchase(ctx, req)
		})},
		{MethodName: "Deposit", Handler: unary("Deposit", func(s MarketServiceServer, ctx context.Context, req *DepositRequest) (any, error) {
			return s.Deposit(ctx, req)
		})},
		{MethodName: "Withdraw", Handler: unary("Withdraw", func(s MarketServiceServer, ctx context.Context, req *WithdrawRequest) (any, error) {
			return s.Withdraw(ctx, req)
		})},
		{MethodName: "GetAccounting", Handler: unary("GetAccounting", func(s MarketServiceServer, ctx context.Context, req *GetAccountingRequest) (any, error) {
			return s.GetAccounting(ctx, req)
		})},
		{MethodName: "CreateListing", Handler: unary("CreateListing", func(s MarketServiceServer, ctx context.Context, req *CreateListingRequest) (any, error) {
			return s.CreateListing(ctx, req)
		})},
		{MethodName: "SetListingPrice", Handler: unary("SetListingPrice", func(s MarketServiceServer, ctx context.Context, req *SetListingPriceRequest) (any, error) {
			return s.SetListingPrice(ctx, req)
		})},
		{MethodName: "SetListingQuantity", Handler: unary("SetListingQuantity", func(s MarketServiceServer, ctx context.Context, req *SetListingQuantityRequest) (any, error) {
			return s.SetListingQuantity(ctx, req)
		})},
		{MethodName: "SetListingActive", Handler: unary("SetListingActive", func(s MarketServiceServer, ctx context.Context, req *SetListingActiveRequest) (any, error) {
			return s.SetListingActive(ctx, req)
		})},
		{MethodName: "SetListingDelisted", Handler: unary("SetListingDelisted", func(s MarketServiceServer, ctx context.Context, req *SetListingDelistedRequest) (any, error) {
			return s.SetListingDelisted(ctx, req)
		})},
		{MethodName: "ApproveSeller", Handler: unary("ApproveSeller", func(s MarketServiceServer, ctx context.Context, req *ApproveSellerRequest) (any, error) {
			return s.ApproveSeller(ctx, req)
		})},
		{MethodName: "SetVIP", Handler: unary("SetVIP", func(s MarketServiceServer, ctx context.Context, req *SetVIPRequest) (any, error) {
			return s.SetVIP(ctx, req)
		})},
		{MethodName: "SetFee", Handler: unary("SetFee", func(s MarketServiceServer, ctx context.Context, req *SetFeeRequest) (any, error) {
			return s.SetFee(ctx, req)
		})},
		{MethodName: "SetInventoryState", Handler: unary("SetInventoryState", func(s MarketServiceServer, ctx context.Context, req *SetInventoryStateRequest) (any, error) {
			return s.SetInventoryState(ctx, req)
		})},
		{MethodName: "SetOrderIntake", Handler: unary("SetOrderIntake", func(s MarketServiceServer, ctx context.Context, req *SetOrderIntakeRequest) (any, error) {
			return s.SetOrderIntake(ctx, req)
		})},
		{MethodName: "RemoveListing", Handler: unary("RemoveListing", func(s MarketServiceServer, ctx context.Context, req *ListingRequest) (any, error) {
			return s.RemoveListing(ctx, req)
		})},
		{MethodName: "ShipOrder", Handler: unary("ShipOrder", func(s MarketServiceServer, ctx context.Context, req *ShipOrderRequest) (any, error) {
			return s.ShipOrder(ctx, req)
		})},
		{MethodName: "WithdrawPlatform", Handler: unary("WithdrawPlatform", func(s MarketServiceServer, ctx context.Context, req *WithdrawRequest) (any, error) {
			return s.WithdrawPlatform(ctx, req)
		})},
	},
	Streams: []grpc.StreamDesc{},
}

// unary adapts a typed method to grpc.MethodHandler, including interceptor
// dispatch.
func unary[Req any](method string, call func(MarketServiceServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(MarketServiceServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*Req))
		})
	}
}

// MarketServiceClient calls the service over a JSON-coded connection.
type MarketServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewMarketServiceClient(cc grpc.ClientConnInterface) *MarketServiceClient {
	return &MarketServiceClient{cc: cc}
}

func (c *MarketServiceClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodec{}.Name())}, opts...)
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...)
}

func (c *MarketServiceClient) Purchase(ctx context.Context, in *PurchaseRequest, opts ...grpc.CallOption) (*PurchaseResponse, error) {
	out := new(PurchaseResponse)
	if err := c.invoke(ctx, "Purchase", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MarketServiceClient) Deposit(ctx context.Context, in *DepositRequest, opts ...grpc.CallOption) (*BalanceResponse, error) {
	out := new(BalanceResponse)
	if err := c.invoke(ctx, "Deposit", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MarketServiceClient) Withdraw(ctx context.Context, in *WithdrawRequest, opts ...grpc.CallOption) (*BalanceResponse, error) {
	out := new(BalanceResponse)
	if err := c.invoke(ctx, "Withdraw", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MarketServiceClient) GetAccounting(ctx context.Context, in *GetAccountingRequest, opts ...grpc.CallOption) (*AccountingResponse, error) {
	out := new(AccountingResponse)
	if err := c.invoke(ctx, "GetAccounting", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
