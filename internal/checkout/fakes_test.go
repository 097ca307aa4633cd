package checkout

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
	"github.com/joao-fontenele/storefront-checkout/internal/lock"
	"github.com/joao-fontenele/storefront-checkout/internal/orders"
	"github.com/joao-fontenele/storefront-checkout/internal/payment"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// recordingGateway wraps the stub gateway with call recording and failure
// injection.
type recordingGateway struct {
	*payment.StubGateway

	createErr   error
	discountErr error
	retrieveErr error

	createCalls   int
	retrieveCalls int
	lastRequest   payment.SessionRequest
	percents      []int
	labels        []string
}

func newRecordingGateway() *recordingGateway {
	return &recordingGateway{StubGateway: payment.NewStubGateway()}
}

func (g *recordingGateway) CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	g.createCalls++
	g.lastRequest = req
	if g.createErr != nil {
		return nil, g.createErr
	}
	return g.StubGateway.CreateSession(ctx, req)
}

func (g *recordingGateway) RetrieveSession(ctx context.Context, id string) (*payment.Session, error) {
	g.retrieveCalls++
	if g.retrieveErr != nil {
		return nil, g.retrieveErr
	}
	return g.StubGateway.RetrieveSession(ctx, id)
}

func (g *recordingGateway) CreatePercentDiscount(ctx context.Context, percent int, label string) (string, error) {
	g.percents = append(g.percents, percent)
	g.labels = append(g.labels, label)
	if g.discountErr != nil {
		return "", g.discountErr
	}
	return g.StubGateway.CreatePercentDiscount(ctx, percent, label)
}

type fakeCoupons struct {
	coupons map[string]*domain.Coupon
	err     error
}

func (f *fakeCoupons) FindActive(_ context.Context, code, userID string) (*domain.Coupon, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.coupons[code]
	if !ok || c.UserID != userID || !c.IsActive {
		return nil, nil
	}
	return c, nil
}

type fakeGifts struct {
	calls   int
	coupon  *domain.Coupon
	created bool
}

func (f *fakeGifts) Issue(_ context.Context, userID string) (*domain.Coupon, bool) {
	f.calls++
	return f.coupon, f.created
}

type fakeOrders struct {
	mu           sync.Mutex
	bySession    map[string]*domain.Order
	redeemed     []domain.CouponRedemption
	fulfillCalls int
	couponErr    error
	lookupErr    error
	fulfillErr   error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{bySession: make(map[string]*domain.Order)}
}

func (f *fakeOrders) GetBySessionID(_ context.Context, sessionID string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.bySession[sessionID], nil
}

func (f *fakeOrders) Fulfill(_ context.Context, order *domain.Order, redemption *domain.CouponRedemption) (*orders.FulfillResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fulfillCalls++
	if f.fulfillErr != nil {
		return nil, f.fulfillErr
	}
	if existing, ok := f.bySession[order.SessionID]; ok {
		return &orders.FulfillResult{Order: existing}, nil
	}

	order.ID = fmt.Sprintf("order-%d", len(f.bySession)+1)
	f.bySession[order.SessionID] = order

	result := &orders.FulfillResult{Order: order, Created: true}
	if redemption != nil {
		if f.couponErr != nil {
			result.CouponErr = f.couponErr
		} else {
			f.redeemed = append(f.redeemed, *redemption)
			result.CouponRedeemed = true
		}
	}
	return result, nil
}

type fakeLocker struct {
	err      error
	acquired []string
	released int
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (lock.ReleaseFunc, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired = append(l.acquired, key)
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

type published struct {
	topic string
	key   string
	event any
}

type recordingPublisher struct {
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic, key string, event any) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{topic: topic, key: key, event: event})
	return nil
}

type recordingMetrics struct {
	nopMetrics
	duplicates int
	failures   []string
}

func (m *recordingMetrics) DuplicateFinalization(context.Context) {
	m.duplicates++
}

func (m *recordingMetrics) AuxiliaryFailure(_ context.Context, kind string) {
	m.failures = append(m.failures, kind)
}

type testEnv struct {
	svc       *Service
	gateway   *recordingGateway
	coupons   *fakeCoupons
	gifts     *fakeGifts
	orders    *fakeOrders
	locker    *fakeLocker
	publisher *recordingPublisher
	metrics   *recordingMetrics
}

func newTestEnv() *testEnv {
	env := &testEnv{
		gateway:   newRecordingGateway(),
		coupons:   &fakeCoupons{coupons: map[string]*domain.Coupon{}},
		gifts:     &fakeGifts{},
		orders:    newFakeOrders(),
		locker:    &fakeLocker{},
		publisher: &recordingPublisher{},
		metrics:   &recordingMetrics{},
	}

	env.svc = NewService(Deps{
		Gateway:   env.gateway,
		Coupons:   env.coupons,
		Orders:    env.orders,
		Gifts:     env.gifts,
		Locker:    env.locker,
		Publisher: env.publisher,
		Metrics:   env.metrics,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, Options{
		ClientURL:         "http://shop.test",
		Currency:          "usd",
		ShippingCountries: []string{"US", "CA", "GB", "KE"},
		GatewayTimeout:    time.Second,
		FinalizeLockTTL:   time.Second,
	})
	env.svc.now = func() time.Time { return testNow }

	return env
}

func (e *testEnv) addCoupon(code string, percent int, expires time.Time) {
	e.coupons.coupons[code] = &domain.Coupon{
		ID:                 "coupon-" + code,
		Code:               code,
		UserID:             testCustomer.ID,
		DiscountPercentage: percent,
		IsActive:           true,
		ExpiresAt:          expires,
	}
}

var testCustomer = domain.Customer{ID: "user-1", Email: "ann@example.com"}

func mugCart() []domain.CartLine {
	return []domain.CartLine{
		{ProductID: "p1", Name: "Mug", Price: 2999, Quantity: 2},
	}
}
