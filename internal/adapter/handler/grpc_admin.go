package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/marketplace/internal/core/domain"
)

// AckResponse answers commands that return no data.
type AckResponse struct {
	Message string `json:"message"`
}

type CreateListingRequest struct {
	Name     string `json:"name"`
	Quantity uint64 `json:"quantity"`
	Price    uint64 `json:"price"`
}

type CreateListingResponse struct {
	ListingID uint64 `json:"listing_id"`
}

type SetListingPriceRequest struct {
	ListingID uint64 `json:"listing_id"`
	Price     uint64 `json:"price"`
}

type SetListingQuantityRequest struct {
	ListingID uint64 `json:"listing_id"`
	Quantity  uint64 `json:"quantity"`
}

type SetListingActiveRequest struct {
	ListingID uint64 `json:"listing_id"`
	Active    bool   `json:"active"`
}

type SetListingDelistedRequest struct {
	ListingID uint64 `json:"listing_id"`
	Delisted  bool   `json:"delisted"`
}

type ListingRequest struct {
	ListingID uint64 `json:"listing_id"`
}

type ApproveSellerRequest struct {
	Account  string `json:"account"`
	Approved bool   `json:"approved"`
}

type SetVIPRequest struct {
	Account string `json:"account"`
	Role    string `json:"role"`
	VIP     bool   `json:"vip"`
}

type SetFeeRequest struct {
	Kind string `json:"kind"`
	Bps  uint64 `json:"bps"`
}

type SetInventoryStateRequest struct {
	Action string `json:"action"`
}

type SetOrderIntakeRequest struct {
	Open bool `json:"open"`
}

type ShipOrderRequest struct {
	OrderID uint64 `json:"order_id"`
}

func (h *GRPCHandler) CreateListing(ctx context.Context, req *CreateListingRequest) (*CreateListingResponse, error) {
	caller, err := callerFromMetadata(ctx)
	if err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "missing required fields")
	}
	id, err := h.marketService.CreateListing(ctx, caller, req.Name, domain.Quantity(req.Quantity), domain.Amount(req.Price))
	if err != nil {
		return nil, h.statusError(err)
	}
	return &CreateListingResponse{ListingID: uint64(id)}, nil
}

func (h *GRPCHandler) SetListingPrice(ctx context.Context, req *SetListingPriceRequest) (*AckResponse, error) {
	return h.command(ctx, "price updated", func(ctx context.Context, caller domain.Account) error {
		return h.marketService.SetPrice(ctx, caller, domain.ListingID(req.ListingID), domain.Amount(req.Price))
	})
}

func (h *GRPCHandler) SetListingQuantity(ctx context.Context, req *SetListingQuantityRequest) (*AckResponse, error) {
	return h.command(ctx, "quantity updated", func(ctx context.Context, caller domain.Account) error {
		return h.marketService.SetListingQuantity(ctx, caller, domain.ListingID(req.ListingID), domain.Quantity(req.Quantity))
	})
}

func (h *GRPCHandler) SetListingActive(ctx context.Context, req *SetListingActiveRequest) (*AckResponse, error) {
	return h.command(ctx, "listing updated", func(ctx context.Context, caller domain.Account) error {
		return h.marketService.SetListingActive(ctx, caller, domain.ListingID(req.ListingID), req.Active)
	})
}

func (h *GRPCHandler) SetListingDelisted(ctx context.Context, req *SetListingDelistedRequest) (*AckResponse, error) {
	return h.command(ctx, "listing updated", func(ctx context.Context, caller domain.Account) error {
		return h.marketService.SetDelisted(ctx, caller, domain.ListingID(req.ListingID), req.Delisted)
	})
}

func (h *GRPCHandler) ApproveSeller(ctx context.Context, req *ApproveSellerRequest) (*AckResponse, error) {
	return h.command(ctx, "seller updated", func(ctx context.Context, caller domain.Account) error {
		return h.marketService.ApproveSeller(ctx, caller, domain.Account(req.Account), req.Approved)
	})
}

func (h *GRPCHandler) SetVIP(ctx context.Context, req *SetVIPRequest) (*AckResponse, error) {
	return h.command(ctx, "vip updated", func(ctx context.Context, caller domain.Account) error {
		return h.marketService.SetVIP(ctx, caller, domain.Account(req.Account), domain.VIPRole(req.Role), req.VIP)
	})
}

func (h *GRPCHandler) SetFee(ctx context.Context, req *SetFeeRequest) (*AckResponse, error) {
	return h.command(ctx, "fee updated", func(ctx context.Context, caller domain.Account) error {
		return h.marketService.SetFee(ctx, caller, domain.FeeKind(req.Kind), req.Bps)
	})
}

func (h *GRPCHandler) SetInventoryState(ctx context.Context, req *SetInventoryStateRequest) (*AckResponse, error) {
	return h.command(ctx, "inventory updated", func(ctx context.Context, caller domain.Account) error {
		return h.marketService.SetInventoryState(ctx, caller, req.Action)
	})
}

func (h *GRPCHandler) SetOrderIntake(ctx context.Context, req *SetOrderIntakeRequest) (*AckResponse, error) {
	return h.command(ctx, "order intake updated", func(ctx context.Context, caller domain.Account) error {
		return h.marketService.SetOrderIntake(ctx, caller, req.Open)
	})
}

func (h *GRPCHandler) RemoveListing(ctx context.Context, req *ListingRequest) (*AckResponse, error) {
	return h.command(ctx, "listing removed", func(ctx context.Context, caller domain.Account) error {
		return h.marketService.RemoveListing(ctx, caller, domain.ListingID(req.ListingID))
	})
}

func (h *GRPCHandler) ShipOrder(ctx context.Context, req *ShipOrderRequest) (*AckResponse, error) {
	return h.command(ctx, "order shipped", func(ctx context.Context, caller domain.Account) error {
		return h.marketService.ShipOrder(ctx, caller, domain.OrderID(req.OrderID))
	})
}

func (h *GRPCHandler) WithdrawPlatform(ctx context.Context, req *WithdrawRequest) (*AckResponse, error) {
	return h.command(ctx, "platform withdrawn", func(ctx context.Context, caller domain.Account) error {
		if err := h.marketService.WithdrawPlatform(ctx, caller, domain.Amount(req.Amount)); err != nil {
			return err
		}
		h.logger.Info("platform withdrawal", zap.String("caller", string(caller)), zap.Uint64("amount", req.Amount))
		return nil
	})
}

func (h *GRPCHandler) command(ctx context.Context, message string, run func(context.Context, domain.Account) error) (*AckResponse, error) {
	caller, err := callerFromMetadata(ctx)
	if err != nil {
		return nil, err
	}
	if err := run(ctx, caller); err != nil {
		return nil, h.statusError(err)
	}
	return &AckResponse{Message: message}, nil
}

func (c *MarketServiceClient) CreateListing(ctx context.Context, in *CreateListingRequest, opts ...grpc.CallOption) (*CreateListingResponse, error) {
	out := new(CreateListingResponse)
	if err := c.invoke(ctx, "CreateListing", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MarketServiceClient) SetListingPrice(ctx context.Context, in *SetListingPriceRequest, opts ...grpc.CallOption) (*AckResponse, error) {
	return c.ack(ctx, "SetListingPrice", in, opts...)
}

func (c *MarketServiceClient) SetListingQuantity(ctx context.Context, in *SetListingQuantityRequest, opts ...grpc.CallOption) (*AckResponse, error) {
	return c.ack(ctx, "SetListingQuantity", in, opts...)
}

func (c *MarketServiceClient) SetListingActive(ctx context.Context, in *SetListingActiveRequest, opts ...grpc.CallOption) (*AckResponse, error) {
	return c.ack(ctx, "SetListingActive", in, opts...)
}

func (c *MarketServiceClient) SetListingDelisted(ctx context.Context, in *SetListingDelistedRequest, opts ...grpc.CallOption) (*AckResponse, error) {
	return c.ack(ctx, "SetListingDelisted", in, opts...)
}

func (c *MarketServiceClient) ApproveSeller(ctx context.Context, in *ApproveSellerRequest, opts ...grpc.CallOption) (*AckResponse, error) {
	return c.ack(ctx, "ApproveSeller", in, opts...)
}

func (c *MarketServiceClient) SetVIP(ctx context.Context, in *SetVIPRequest, opts ...grpc.CallOption) (*AckResponse, error) {
	return c.ack(ctx, "SetVIP", in, opts...)
}

func (c *MarketServiceClient) SetFee(ctx context.Context, in *SetFeeRequest, opts ...grpc.CallOption) (*AckResponse, error) {
	return c.ack(ctx, "SetFee", in, opts...)
}

func (c *MarketServiceClient) SetInventoryState(ctx context.Context, in *SetInventoryStateRequest, opts ...grpc.CallOption) (*AckResponse, error) {
	return c.ack(ctx, "SetInventoryState", in, opts...)
}

func (c *MarketServiceClient) SetOrderIntake(ctx context.Context, in *SetOrderIntakeRequest, opts ...grpc.CallOption) (*AckResponse, error) {
	return c.ack(ctx, "SetOrderIntake", in, opts...)
}

func (c *MarketServiceClient) RemoveListing(ctx context.Context, in *ListingRequest, opts ...grpc.CallOption) (*AckResponse, error) {
	return c.ack(ctx, "RemoveListing", in, opts...)
}

func (c *MarketServiceClient) ShipOrder(ctx context.Context, in *ShipOrderRequest, opts ...grpc.CallOption) (*AckResponse, error) {
	return c.ack(ctx, "ShipOrder", in, opts...)
}

func (c *MarketServiceClient) WithdrawPlatform(ctx context.Context, in *WithdrawRequest, opts ...grpc.CallOption) (*AckResponse, error) {
	return c.ack(ctx, "WithdrawPlatform", in, opts...)
}

func (c *MarketServiceClient) ack(ctx context.Context, method string, in any, opts ...grpc.CallOption) (*AckResponse, error) {
	out := new(AckResponse)
	if err := c.invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
