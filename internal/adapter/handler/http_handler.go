package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/service"
)

// CallerHeader carries the authenticated account of the request. It is set
// by the gateway in front of this service.
const CallerHeader = "X-Caller-ID"

type HTTPHandler struct {
	marketService *service.MarketService
	logger        *zap.Logger
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type CreateListingHTTPRequest struct {
	Name     string `json:"name"`
	Quantity uint64 `json:"quantity"`
	Price    uint64 `json:"price"`
}

type PurchaseHTTPRequest struct {
	RequestID string `json:"request_id"`
	ListingID uint64 `json:"listing_id"`
	Amount    uint64 `json:"amount"`
	Value     uint64 `json:"value"`
}

type PurchaseHTTPResponse struct {
	OrderID     uint64 `json:"order_id"`
	Total       uint64 `json:"total"`
	Fee         uint64 `json:"fee"`
	Cashback    uint64 `json:"cashback"`
	FromBalance uint64 `json:"from_balance"`
	Refund      uint64 `json:"refund"`
}

type ValueHTTPRequest struct {
	Value uint64 `json:"value"`
}

type WithdrawHTTPRequest struct {
	Amount uint64 `json:"amount"`
}

type ListingHTTPResponse struct {
	domain.Listing
	Available uint64 `json:"available"`
}

func NewHTTPHandler(marketService *service.MarketService, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{marketService: marketService, logger: logger}
}

// Register mounts every route on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/api/listings", h.Listings)
	mux.HandleFunc("/api/purchase", h.Purchase)
	mux.HandleFunc("/api/deposit", h.Deposit)
	mux.HandleFunc("/api/withdraw", h.Withdraw)
	mux.HandleFunc("/api/orders", h.Orders)
	mux.HandleFunc("/api/balance", h.Balance)
	mux.HandleFunc("/api/accounting", h.Accounting)

	// Listing owner (seller or admin)
	mux.HandleFunc("/api/listings/price", h.SetListingPrice)
	mux.HandleFunc("/api/listings/quantity", h.SetListingQuantity)
	mux.HandleFunc("/api/listings/active", h.SetListingActive)
	mux.HandleFunc("/api/listings/delist", h.SetListingDelisted)

	// Platform admin
	mux.HandleFunc("/api/admin/sellers", h.ApproveSeller)
	mux.HandleFunc("/api/admin/vip", h.SetVIP)
	mux.HandleFunc("/api/admin/fees", h.SetFee)
	mux.HandleFunc("/api/admin/inventory", h.SetInventoryState)
	mux.HandleFunc("/api/admin/intake", h.SetOrderIntake)
	mux.HandleFunc("/api/admin/listings/remove", h.RemoveListing)
	mux.HandleFunc("/api/admin/orders/ship", h.ShipOrder)
	mux.HandleFunc("/api/admin/withdraw", h.WithdrawPlatform)
}

// Listings creates a listing on POST and reads one by ?id= on GET.
func (h *HTTPHandler) Listings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		id, ok := queryID(w, r)
		if !ok {
			return
		}
		l, err := h.marketService.Listing(domain.ListingID(id))
		if err != nil {
			h.writeError(w, err)
			return
		}
		available := h.marketService.Item(l.ItemID).Available()
		writeJSON(w, http.StatusOK, Response{Success: true, Message: "ok", Data: ListingHTTPResponse{Listing: l, Available: uint64(available)}})

	case http.MethodPost:
		caller, ok := callerOf(w, r)
		if !ok {
			return
		}
		var req CreateListingHTTPRequest
		if !decode(w, r, &req) {
			return
		}
		if req.Name == "" {
			writeJSON(w, http.StatusBadRequest, Response{Message: "missing required fields"})
			return
		}
		id, err := h.marketService.CreateListing(r.Context(), caller, req.Name, domain.Quantity(req.Quantity), domain.Amount(req.Price))
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, Response{Success: true, Message: "listing created", Data: map[string]uint64{"listing_id": uint64(id)}})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}

	var req PurchaseHTTPRequest
	if !decode(w, r, &req) {
		return
	}
	if req.RequestID == "" || req.ListingID == 0 || req.Amount == 0 {
		writeJSON(w, http.StatusBadRequest, Response{Message: "missing required fields"})
		return
	}

	receipt, err := h.marketService.Purchase(r.Context(), req.RequestID, caller,
		domain.ListingID(req.ListingID), domain.Quantity(req.Amount), domain.Amount(req.Value))
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "order placed successfully",
		Data: PurchaseHTTPResponse{
			OrderID:     uint64(receipt.OrderID),
			Total:       uint64(receipt.Total),
			Fee:         uint64(receipt.Fee),
			Cashback:    uint64(receipt.Cashback),
			FromBalance: uint64(receipt.FromBalance),
			Refund:      uint64(receipt.Refund),
		},
	})
}

func (h *HTTPHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	var req ValueHTTPRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.marketService.Deposit(r.Context(), caller, domain.Amount(req.Value)); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeBalance(w, caller, "deposited")
}

func (h *HTTPHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	var req WithdrawHTTPRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.marketService.Withdraw(r.Context(), caller, domain.Amount(req.Amount)); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeBalance(w, caller, "withdrawn")
}

// Orders reads one order by ?id=.
func (h *HTTPHandler) Orders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := queryID(w, r)
	if !ok {
		return
	}
	o, err := h.marketService.Order(domain.OrderID(id))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "ok", Data: o})
}

func (h *HTTPHandler) Balance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	h.writeBalance(w, caller, "ok")
}

func (h *HTTPHandler) Accounting(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	acc := h.marketService.Accounting()
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "ok",
		Data: map[string]any{
			"held":             uint64(acc.Held),
			"user_balances":    uint64(acc.UserBalances),
			"platform_balance": uint64(acc.PlatformBalance),
			"balanced":         acc.Balanced(),
			"dropped_batches":  h.marketService.Dropped(),
		},
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "inventory": h.marketService.InventoryState().String()})
}

func (h *HTTPHandler) writeBalance(w http.ResponseWriter, caller domain.Account, message string) {
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    map[string]uint64{"balance": uint64(h.marketService.Balance(caller))},
	})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, Response{Success: false, Message: publicMessage(err), Data: map[string]string{"code": string(domain.CodeOf(err))}})
}

func callerOf(w http.ResponseWriter, r *http.Request) (domain.Account, bool) {
	caller := domain.Account(r.Header.Get(CallerHeader))
	if caller.Empty() {
		writeJSON(w, http.StatusUnauthorized, Response{Message: "missing " + CallerHeader + " header"})
		return "", false
	}
	return caller, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return false
	}
	return true
}

func queryID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid id"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
