package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
)

type ListingPriceHTTPRequest struct {
	ListingID uint64 `json:"listing_id"`
	Price     uint64 `json:"price"`
}

type ListingQuantityHTTPRequest struct {
	ListingID uint64 `json:"listing_id"`
	Quantity  uint64 `json:"quantity"`
}

type ListingActiveHTTPRequest struct {
	ListingID uint64 `json:"listing_id"`
	Active    bool   `json:"active"`
}

type ListingDelistHTTPRequest struct {
	ListingID uint64 `json:"listing_id"`
	Delisted  bool   `json:"delisted"`
}

type ListingHTTPRequest struct {
	ListingID uint64 `json:"listing_id"`
}

type SellerHTTPRequest struct {
	Account  string `json:"account"`
	Approved bool   `json:"approved"`
}

type VIPHTTPRequest struct {
	Account string `json:"account"`
	Role    string `json:"role"`
	VIP     bool   `json:"vip"`
}

type FeeHTTPRequest struct {
	Kind string `json:"kind"`
	Bps  uint64 `json:"bps"`
}

// InventoryHTTPRequest drives the inventory circuit breaker. Action is one
// of freeze, unfreeze or close.
type InventoryHTTPRequest struct {
	Action string `json:"action"`
}

type IntakeHTTPRequest struct {
	Open bool `json:"open"`
}

type ShipHTTPRequest struct {
	OrderID uint64 `json:"order_id"`
}

func (h *HTTPHandler) SetListingPrice(w http.ResponseWriter, r *http.Request) {
	var req ListingPriceHTTPRequest
	h.command(w, r, &req, "price updated", func(ctx context.Context, caller domain.Account) error {
		return h.marketService.SetPrice(ctx, caller, domain.ListingID(req.ListingID), domain.Amount(req.Price))
	})
}

func (h *HTTPHandler) SetListingQuantity(w http.ResponseWriter, r *http.Request) {
	var req ListingQuantityHTTPRequest
	h.command(w, r, &req, "quantity updated", func(ctx context.Context, caller domain.Account) error {
		return h.marketService.SetListingQuantity(ctx, caller, domain.ListingID(req.ListingID), domain.Quantity(req.Quantity))
	})
}

func (h *HTTPHandler) SetListingActive(w http.ResponseWriter, r *http.Request) {
	var req ListingActiveHTTPRequest
	h.command(w, r, &req, "listing updated", func(ctx context.Context, caller domain.Account) error {
		return h.marketService.SetListingActive(ctx, caller, domain.ListingID(req.ListingID), req.Active)
	})
}

func (h *HTTPHandler) SetListingDelisted(w http.ResponseWriter, r *http.Request) {
	var req ListingDelistHTTPRequest
	h.command(w, r, &req, "listing updated", func(ctx context.Context, caller domain.Account) error {
		return h.marketService.SetDelisted(ctx, caller, domain.ListingID(req.ListingID), req.Delisted)
	})
}

func (h *HTTPHandler) ApproveSeller(w http.ResponseWriter, r *http.Request) {
	var req SellerHTTPRequest
	h.command(w, r, &req, "seller updated", func(ctx context.Context, caller domain.Account) error {
		return h.marketService.ApproveSeller(ctx, caller, domain.Account(req.Account), req.Approved)
	})
}

func (h *HTTPHandler) SetVIP(w http.ResponseWriter, r *http.Request) {
	var req VIPHTTPRequest
	h.command(w, r, &req, "vip updated", func(ctx context.Context, caller domain.Account) error {
		return h.marketService.SetVIP(ctx, caller, domain.Account(req.Account), domain.VIPRole(req.Role), req.VIP)
	})
}

func (h *HTTPHandler) SetFee(w http.ResponseWriter, r *http.Request) {
	var req FeeHTTPRequest
	h.command(w, r, &req, "fee updated", func(ctx context.Context, caller domain.Account) error {
		return h.marketService.SetFee(ctx, caller, domain.FeeKind(req.Kind), req.Bps)
	})
}

func (h *HTTPHandler) SetInventoryState(w http.ResponseWriter, r *http.Request) {
	var req InventoryHTTPRequest
	h.command(w, r, &req, "inventory updated", func(ctx context.Context, caller domain.Account) error {
		return h.marketService.SetInventoryState(ctx, caller, req.Action)
	})
}

func (h *HTTPHandler) SetOrderIntake(w http.ResponseWriter, r *http.Request) {
	var req IntakeHTTPRequest
	h.command(w, r, &req, "order intake updated", func(ctx context.Context, caller domain.Account) error {
		return h.marketService.SetOrderIntake(ctx, caller, req.Open)
	})
}

func (h *HTTPHandler) RemoveListing(w http.ResponseWriter, r *http.Request) {
	var req ListingHTTPRequest
	h.command(w, r, &req, "listing removed", func(ctx context.Context, caller domain.Account) error {
		return h.marketService.RemoveListing(ctx, caller, domain.ListingID(req.ListingID))
	})
}

func (h *HTTPHandler) ShipOrder(w http.ResponseWriter, r *http.Request) {
	var req ShipHTTPRequest
	h.command(w, r, &req, "order shipped", func(ctx context.Context, caller domain.Account) error {
		return h.marketService.ShipOrder(ctx, caller, domain.OrderID(req.OrderID))
	})
}

func (h *HTTPHandler) WithdrawPlatform(w http.ResponseWriter, r *http.Request) {
	var req WithdrawHTTPRequest
	h.command(w, r, &req, "platform withdrawn", func(ctx context.Context, caller domain.Account) error {
		if err := h.marketService.WithdrawPlatform(ctx, caller, domain.Amount(req.Amount)); err != nil {
			return err
		}
		h.logger.Info("platform withdrawal", zap.String("caller", string(caller)), zap.Uint64("amount", req.Amount))
		return nil
	})
}

// command decodes a POST body into req and runs it as the calling account.
func (h *HTTPHandler) command(w http.ResponseWriter, r *http.Request, req any, message string, run func(context.Context, domain.Account) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	if !decode(w, r, req) {
		return
	}
	if err := run(r.Context(), caller); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: message})
}
