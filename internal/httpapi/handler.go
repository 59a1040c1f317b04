package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/XuThi/xuthi-frontend-sub000/internal/catalog"
	"github.com/XuThi/xuthi-frontend-sub000/internal/checkout"
	"github.com/XuThi/xuthi-frontend-sub000/internal/domain"
	"github.com/XuThi/xuthi-frontend-sub000/internal/pricing"
	"github.com/XuThi/xuthi-frontend-sub000/internal/repository"
)

// maxQuantity bounds a single line; anything above this is a client bug.
const maxQuantity = 99

// CartAPI is the cart store contract this boundary exposes.
// Consumers define this interface, not the service implementation.
type CartAPI interface {
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
	GetCartBySession(ctx context.Context, sessionID string) (*domain.Cart, error)
	ApplyDelta(ctx context.Context, cartID, sessionID, variantID string, delta int) (*domain.Cart, error)
	SetQuantity(ctx context.Context, cartID, sessionID, variantID string, target int) (*domain.Cart, error)
}

type CheckoutAPI interface {
	Checkout(ctx context.Context, req checkout.Request) (*domain.Order, error)
	ShippingFee() int64
}

type CartHandler struct {
	carts    CartAPI
	checkout CheckoutAPI
	timeout  time.Duration
}

func NewCartHandler(carts CartAPI, co CheckoutAPI, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:    carts,
		checkout: co,
		timeout:  timeout,
	}
}

func (h *CartHandler) Routes(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Post("/mutations", h.Mutate)
		r.Put("/items/{variant_id}", h.SetQuantity)
	})
	r.Post("/checkout", h.Checkout)
}

type MutationRequestDTO struct {
	CartID        string `json:"cart_id,omitempty"`
	VariantID     string `json:"variant_id"`
	QuantityDelta int    `json:"quantity_delta"`
}

type SetQuantityRequestDTO struct {
	CartID   string `json:"cart_id,omitempty"`
	Quantity int    `json:"quantity"`
}

type CheckoutRequestDTO struct {
	CartID      string                `json:"cart_id"`
	Customer    checkout.CustomerInfo `json:"customer"`
	VoucherCode string                `json:"voucher_code,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cartID := r.URL.Query().Get("cart_id")

	if cartID != "" {
		cart, err := h.carts.GetCart(ctx, cartID)
		if err != nil {
			handleServiceError(r.Context(), w, err)
			return
		}
		respondJSON(w, http.StatusOK, cart)
		return
	}

	// First visit: no durable cart ID yet, resolve by session.
	sessionID := getSessionID(r.Context())
	cart, err := h.carts.GetCartBySession(ctx, sessionID)
	if errors.Is(err, repository.ErrCartNotFound) {
		// A fresh session simply has no cart yet; answer with an empty
		// one rather than an error.
		respondJSON(w, http.StatusOK, &domain.Cart{Items: []domain.CartLineItem{}})
		return
	}
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) Mutate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req MutationRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.VariantID == "" {
		respondError(w, http.StatusBadRequest, "invalid_variant_id", "variant_id is required")
		return
	}
	if req.QuantityDelta > maxQuantity || req.QuantityDelta < -maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity_delta out of range")
		return
	}

	cart, err := h.carts.ApplyDelta(ctx, req.CartID, getSessionID(r.Context()), req.VariantID, req.QuantityDelta)
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	variantID := chi.URLParam(r, "variant_id")
	if variantID == "" {
		respondError(w, http.StatusBadRequest, "invalid_variant_id", "variant_id is required")
		return
	}

	var req SetQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity out of range")
		return
	}

	cart, err := h.carts.SetQuantity(ctx, req.CartID, getSessionID(r.Context()), variantID, req.Quantity)
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.CartID == "" {
		respondError(w, http.StatusBadRequest, "invalid_cart_id", "cart_id is required")
		return
	}

	order, err := h.checkout.Checkout(ctx, checkout.Request{
		CartID:      req.CartID,
		Customer:    req.Customer,
		ShippingFee: h.checkout.ShippingFee(),
		VoucherCode: req.VoucherCode,
	})
	if err != nil {
		handleServiceError(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusCreated, order)
}

func handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrCartNotFound):
		respondError(w, http.StatusNotFound, "not_found", "cart not found")
	case errors.Is(err, catalog.ErrVariantNotFound):
		respondError(w, http.StatusNotFound, "not_found", "variant not found")
	case errors.Is(err, pricing.ErrPriceUnavailable):
		respondError(w, http.StatusServiceUnavailable, "price_unavailable", "price resolution unavailable")
	case errors.Is(err, checkout.ErrInvalidDiscount):
		respondError(w, http.StatusUnprocessableEntity, "invalid_discount", "voucher discount exceeds order amount")
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "cart is empty")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		log.Printf("request %s failed: %v", getRequestID(ctx), err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: "",
	})
}
