// Package checkout turns carts into hosted payment sessions and paid sessions
// into orders.
package checkout

import (
	"context"
	"log/slog"
	"time"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
	"github.com/joao-fontenele/storefront-checkout/internal/lock"
	"github.com/joao-fontenele/storefront-checkout/internal/messaging"
	"github.com/joao-fontenele/storefront-checkout/internal/orders"
	"github.com/joao-fontenele/storefront-checkout/internal/payment"
	"github.com/joao-fontenele/storefront-checkout/internal/telemetry"
)

type CouponFinder interface {
	FindActive(ctx context.Context, code, userID string) (*domain.Coupon, error)
}

type GiftIssuer interface {
	Issue(ctx context.Context, userID string) (*domain.Coupon, bool)
}

type OrderStore interface {
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error)
	Fulfill(ctx context.Context, order *domain.Order, redemption *domain.CouponRedemption) (*orders.FulfillResult, error)
}

// Metrics is implemented by telemetry.CheckoutMetrics.
type Metrics interface {
	SessionCreated(ctx context.Context)
	SessionFailed(ctx context.Context, reason string)
	OrderCreated(ctx context.Context, amountMinor int64)
	DuplicateFinalization(ctx context.Context)
	AuxiliaryFailure(ctx context.Context, kind string)
}

type Options struct {
	ClientURL         string
	Currency          string
	ShippingCountries []string
	GatewayTimeout    time.Duration
	FinalizeLockTTL   time.Duration
}

// Deps are the collaborators of a Service. Locker, Publisher and Metrics are
// optional.
type Deps struct {
	Gateway   payment.Gateway
	Coupons   CouponFinder
	Orders    OrderStore
	Gifts     GiftIssuer
	Locker    lock.Locker
	Publisher messaging.Publisher
	Metrics   Metrics
	Logger    *slog.Logger
}

type Service struct {
	gateway   payment.Gateway
	coupons   CouponFinder
	orders    OrderStore
	gifts     GiftIssuer
	locker    lock.Locker
	publisher messaging.Publisher
	metrics   Metrics
	logger    *slog.Logger
	opts      Options
	now       func() time.Time
}

func NewService(deps Deps, opts Options) *Service {
	s := &Service{
		gateway:   deps.Gateway,
		coupons:   deps.Coupons,
		orders:    deps.Orders,
		gifts:     deps.Gifts,
		locker:    deps.Locker,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		opts:      opts,
		now:       time.Now,
	}

	if s.locker == nil {
		s.locker = lock.NopLocker{}
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.opts.Currency == "" {
		s.opts.Currency = "usd"
	}

	return s
}

// gatewayContext bounds a single gateway call.
func (s *Service) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.GatewayTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.GatewayTimeout)
}

func (s *Service) publish(ctx context.Context, topic, key string, event any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, key, event); err != nil {
		s.logger.Error("failed to publish event", "error", err, "topic", topic, "key", key)
		s.metrics.AuxiliaryFailure(ctx, telemetry.FailurePublishEvent)
	}
}

type nopMetrics struct{}

func (nopMetrics) SessionCreated(context.Context)           {}
func (nopMetrics) SessionFailed(context.Context, string)    {}
func (nopMetrics) OrderCreated(context.Context, int64)      {}
func (nopMetrics) DuplicateFinalization(context.Context)    {}
func (nopMetrics) AuxiliaryFailure(context.Context, string) {}
