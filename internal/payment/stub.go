package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
)

var ErrSessionNotFound = errors.New("checkout session not found")

// StubGateway is an in-memory Gateway used when no provider credentials are
// configured. Its hosted checkout URL redirects straight to the success URL.
type StubGateway struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	discounts map[string]int
	autoPay   bool
}

type StubOption func(*StubGateway)

// WithAutoPay makes every new session report itself as paid.
func WithAutoPay(enabled bool) StubOption {
	return func(g *StubGateway) {
		g.autoPay = enabled
	}
}

func NewStubGateway(opts ...StubOption) *StubGateway {
	g := &StubGateway{
		sessions:  make(map[string]*Session),
		discounts: make(map[string]int),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *StubGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.LineItems) == 0 {
		return nil, errors.New("stub gateway: line_items must not be empty")
	}

	var total domain.Amount
	for i, item := range req.LineItems {
		if item.UnitAmount <= 0 || item.Quantity <= 0 {
			return nil, fmt.Errorf("stub gateway: invalid line item %d", i)
		}
		total += item.UnitAmount * domain.Amount(item.Quantity)
	}

	metadata, err := req.Metadata.Encode()
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if req.DiscountID != "" {
		percent, ok := g.discounts[req.DiscountID]
		if !ok {
			return nil, fmt.Errorf("stub gateway: no such coupon %q", req.DiscountID)
		}
		total -= total.Percent(percent)
	}

	id := "cs_stub_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	status := PaymentStatusUnpaid
	if g.autoPay {
		status = PaymentStatusPaid
	}

	s := &Session{
		ID:            id,
		URL:           strings.ReplaceAll(req.SuccessURL, SessionIDPlaceholder, id),
		PaymentStatus: status,
		AmountTotal:   total,
		Metadata:      metadata,
	}
	g.sessions[id] = s

	out := *s
	return &out, nil
}

func (g *StubGateway) RetrieveSession(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	out := *s
	return &out, nil
}

func (g *StubGateway) CreatePercentDiscount(ctx context.Context, percent int, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	id := "coupon_stub_" + uuid.NewString()[:8]
	g.discounts[id] = ClampPercent(percent)
	return id, nil
}

// MarkPaid settles a session as if the customer completed the hosted checkout.
func (g *StubGateway) MarkPaid(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.PaymentStatus = PaymentStatusPaid
	return nil
}

// Put registers a session verbatim, for sessions created outside this process.
func (g *StubGateway) Put(s *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()

	stored := *s
	g.sessions[s.ID] = &stored
}
