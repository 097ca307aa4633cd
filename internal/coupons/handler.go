package coupons

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
	"github.com/joao-fontenele/storefront-checkout/internal/identity"
)

type couponStore interface {
	FindActive(ctx context.Context, code, userID string) (*domain.Coupon, error)
	FindActiveForUser(ctx context.Context, userID string) (*domain.Coupon, error)
	Expire(ctx context.Context, id string) error
}

type Handler struct {
	repo   couponStore
	logger *slog.Logger
	now    func() time.Time
}

func NewHandler(repo couponStore, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// HandleGet returns the caller's active coupon, or null.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	customer, _ := identity.FromContext(r.Context())

	c, err := h.repo.FindActiveForUser(r.Context(), customer.ID)
	if err != nil {
		h.logger.Error("failed to get coupon", "error", err, "user_id", customer.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, c)
}

type validateRequest struct {
	Code string `json:"code"`
}

type validateResponse struct {
	Message            string `json:"message"`
	Code               string `json:"code"`
	DiscountPercentage int    `json:"discountPercentage"`
}

func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	customer, _ := identity.FromContext(r.Context())

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		h.writeError(w, http.StatusBadRequest, "missing coupon code")
		return
	}

	c, err := h.repo.FindActive(r.Context(), code, customer.ID)
	if err != nil {
		h.logger.Error("failed to find coupon", "error", err, "user_id", customer.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if c == nil {
		h.writeError(w, http.StatusNotFound, "coupon not found")
		return
	}

	if !c.Redeemable(h.now()) {
		if err := h.repo.Expire(r.Context(), c.ID); err != nil {
			h.logger.Error("failed to expire coupon", "error", err, "coupon_id", c.ID)
		}
		h.writeError(w, http.StatusNotFound, "coupon expired")
		return
	}

	h.logger.Info("coupon validated", "user_id", customer.ID, "code", c.Code)
	h.writeJSON(w, http.StatusOK, validateResponse{
		Message:            "coupon is valid",
		Code:               c.Code,
		DiscountPercentage: c.DiscountPercentage,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
