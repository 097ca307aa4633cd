package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
)

type requestVerifier interface {
	VerifyRequest(r *http.Request) (domain.Customer, error)
}

type Handler struct {
	checkoutProxy *ServiceProxy
	verifier      requestVerifier
	logger        *slog.Logger
}

func NewHandler(checkoutProxy *ServiceProxy, verifier requestVerifier, logger *slog.Logger) *Handler {
	return &Handler{
		checkoutProxy: checkoutProxy,
		verifier:      verifier,
		logger:        logger,
	}
}

// HandleCheckout authenticates the caller and forwards payments, orders and
// coupons requests to the checkout service unchanged.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	customer, err := h.verifier.VerifyRequest(r)
	if err != nil {
		h.logger.Warn("rejected request", "error", err, "path", r.URL.Path)
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	h.proxyRequest(w, r, h.checkoutProxy, r.URL.Path, customer)
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string, customer domain.Customer) {
	resp, err := proxy.ForwardRequest(r.Context(), r, path, customer)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode, "user_id", customer.ID)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
