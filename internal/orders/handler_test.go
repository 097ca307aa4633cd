package orders

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
	"github.com/joao-fontenele/storefront-checkout/internal/identity"
)

type fakeOrderReader struct {
	orders map[string]*domain.Order
	err    error
}

func (f *fakeOrderReader) GetByID(_ context.Context, id string) (*domain.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.orders[id], nil
}

func (f *fakeOrderReader) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []domain.Order{}
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func newTestHandler(repo orderReader) *Handler {
	return NewHandler(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func asCustomer(req *http.Request, id string) *http.Request {
	return req.WithContext(identity.WithCustomer(req.Context(), domain.Customer{ID: id}))
}

func TestHandler_HandleGet(t *testing.T) {
	repo := &fakeOrderReader{orders: map[string]*domain.Order{
		"o-1": {ID: "o-1", UserID: "user-1", TotalAmount: 5998},
	}}

	tests := []struct {
		name       string
		id         string
		userID     string
		repo       *fakeOrderReader
		wantStatus int
	}{
		{name: "own order", id: "o-1", userID: "user-1", repo: repo, wantStatus: http.StatusOK},
		{name: "someone else's order", id: "o-1", userID: "user-2", repo: repo, wantStatus: http.StatusNotFound},
		{name: "missing order", id: "o-9", userID: "user-1", repo: repo, wantStatus: http.StatusNotFound},
		{name: "store failure", id: "o-1", userID: "user-1", repo: &fakeOrderReader{err: errors.New("db down")}, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/orders/"+tt.id, nil)
			req.SetPathValue("id", tt.id)
			rec := httptest.NewRecorder()

			newTestHandler(tt.repo).HandleGet(rec, asCustomer(req, tt.userID))

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}

	t.Run("encodes amounts in major units", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders/o-1", nil)
		req.SetPathValue("id", "o-1")
		rec := httptest.NewRecorder()

		newTestHandler(repo).HandleGet(rec, asCustomer(req, "user-1"))

		var body map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if body["totalAmount"] != 59.98 {
			t.Errorf("expected totalAmount 59.98, got %v", body["totalAmount"])
		}
	})
}

func TestHandler_HandleList(t *testing.T) {
	repo := &fakeOrderReader{orders: map[string]*domain.Order{
		"o-1": {ID: "o-1", UserID: "user-1"},
		"o-2": {ID: "o-2", UserID: "user-2"},
	}}

	rec := httptest.NewRecorder()
	newTestHandler(repo).HandleList(rec, asCustomer(httptest.NewRequest(http.MethodGet, "/api/orders", nil), "user-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var orders []domain.Order
	if err := json.NewDecoder(rec.Body).Decode(&orders); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "o-1" {
		t.Errorf("expected only the caller's order, got %+v", orders)
	}
}
