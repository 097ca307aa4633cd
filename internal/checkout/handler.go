package checkout

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
	"github.com/joao-fontenele/storefront-checkout/internal/identity"
	"github.com/joao-fontenele/storefront-checkout/internal/payment"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	svc    *Service
	logger *slog.Logger
	// development exposes raw gateway detail in 500 responses.
	development bool
}

func NewHandler(svc *Service, logger *slog.Logger, development bool) *Handler {
	return &Handler{
		svc:         svc,
		logger:      logger,
		development: development,
	}
}

type createSessionRequest struct {
	Products   json.RawMessage `json:"products"`
	CouponCode string          `json:"couponCode"`
}

type createSessionResponse struct {
	Success     bool          `json:"success"`
	SessionID   string        `json:"sessionId"`
	SessionURL  string        `json:"sessionUrl"`
	TotalAmount domain.Amount `json:"totalAmount"`
	Message     string        `json:"message"`
}

type finalizeRequest struct {
	SessionID string `json:"sessionId"`
}

type finalizeResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	OrderID string        `json:"orderId"`
	Order   *domain.Order `json:"order"`
}

type errorResponse struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message"`
	Error    string           `json:"error,omitempty"`
	Details  string           `json:"details,omitempty"`
	Index    *int             `json:"index,omitempty"`
	Product  *domain.CartLine `json:"product,omitempty"`
	Received any              `json:"received,omitempty"`
}

func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	customer, _ := identity.FromContext(r.Context())

	var req createSessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, errorResponse{Message: "invalid request body", Error: err.Error()})
		return
	}

	lines, verr := decodeCart(req.Products)
	if verr != nil {
		h.logger.Warn("invalid cart", "user_id", customer.ID, "error", verr.Message)
		h.writeValidationError(w, verr)
		return
	}

	result, err := h.svc.CreateSession(r.Context(), customer, lines, req.CouponCode)
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			h.logger.Warn("invalid cart", "user_id", customer.ID, "error", vErr.Message)
			h.writeValidationError(w, vErr)
			return
		}

		h.logger.Error("failed to create checkout session", "error", err, "user_id", customer.ID)
		h.writeFailure(w, "Failed to create checkout session", err)
		return
	}

	h.writeJSON(w, http.StatusOK, createSessionResponse{
		Success:     true,
		SessionID:   result.SessionID,
		SessionURL:  result.SessionURL,
		TotalAmount: result.Total,
		Message:     "Checkout session created successfully",
	})
}

func (h *Handler) HandleCheckoutSuccess(w http.ResponseWriter, r *http.Request) {
	customer, _ := identity.FromContext(r.Context())

	var req finalizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, errorResponse{Message: "invalid request body", Error: err.Error()})
		return
	}

	result, err := h.svc.Finalize(r.Context(), customer, req.SessionID)
	if err != nil {
		var incomplete *PaymentIncompleteError
		switch {
		case errors.Is(err, ErrMissingSessionID):
			h.writeError(w, http.StatusBadRequest, errorResponse{Message: "Session ID is required"})
		case errors.As(err, &incomplete):
			h.writeError(w, http.StatusBadRequest, errorResponse{Message: incomplete.Error()})
		case errors.Is(err, ErrForeignSession):
			h.writeError(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		case errors.Is(err, payment.ErrSessionNotFound):
			h.writeError(w, http.StatusNotFound, errorResponse{Message: "Checkout session not found"})
		case errors.Is(err, ErrFinalizeInProgress):
			h.writeError(w, http.StatusConflict, errorResponse{Message: err.Error()})
		default:
			h.logger.Error("failed to finalize checkout", "error", err, "session_id", req.SessionID)
			h.writeFailure(w, "Error processing successful checkout", err)
		}
		return
	}

	message := "Payment successful, order created, and coupon deactivated if used."
	if !result.Created {
		message = "Order already processed for this session."
	}

	h.writeJSON(w, http.StatusOK, finalizeResponse{
		Success: true,
		Message: message,
		OrderID: result.Order.ID,
		Order:   result.Order,
	})
}

// decodeCart reads the products field, which must be a JSON array.
func decodeCart(raw json.RawMessage) ([]domain.CartLine, *ValidationError) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &ValidationError{Message: "Invalid or empty products array", Index: -1, Received: raw}
	}

	var lines []domain.CartLine
	if err := json.Unmarshal(trimmed, &lines); err != nil {
		return nil, &ValidationError{Message: "Invalid products array: " + err.Error(), Index: -1, Received: raw}
	}

	return lines, nil
}

func (h *Handler) writeValidationError(w http.ResponseWriter, verr *ValidationError) {
	resp := errorResponse{
		Message:  verr.Message,
		Error:    verr.Message,
		Product:  verr.Product,
		Received: verr.Received,
	}
	if verr.Index >= 0 {
		resp.Index = &verr.Index
	}
	h.writeError(w, http.StatusBadRequest, resp)
}

func (h *Handler) writeFailure(w http.ResponseWriter, message string, err error) {
	resp := errorResponse{Message: message, Error: err.Error()}
	if h.development {
		var gerr *GatewayError
		if errors.As(err, &gerr) {
			resp.Details = gerr.Detail()
		} else {
			resp.Details = err.Error()
		}
	}
	h.writeError(w, http.StatusInternalServerError, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, resp errorResponse) {
	resp.Success = false
	h.writeJSON(w, status, resp)
}
