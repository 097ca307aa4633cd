package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
)

var stripeTracer = otel.Tracer("payment/stripe")

// ProviderError carries the raw rejection returned by the payment provider.
type ProviderError struct {
	Type      string
	Code      string
	Message   string
	RequestID string
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider %s: %s", e.Type, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

type StripeGateway struct {
	api *client.API
}

// NewStripeGateway builds a Stripe-backed gateway. The http client bounds every
// provider call and should carry a timeout.
func NewStripeGateway(secretKey string, httpClient *http.Client) *StripeGateway {
	return &StripeGateway{
		api: client.New(secretKey, stripe.NewBackends(httpClient)),
	}
}

func (g *StripeGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	metadata, err := req.Metadata.Encode()
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(req.Mode),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(req.ShippingCountries),
		},
		Metadata: metadata,
	}

	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}

	for _, item := range req.LineItems {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Description != "" {
			product.Description = stripe.String(item.Description)
		}
		if item.Image != "" {
			product.Images = stripe.StringSlice([]string{item.Image})
		}

		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(req.Currency),
				ProductData: product,
				UnitAmount:  stripe.Int64(int64(item.UnitAmount)),
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}

	if req.DiscountID != "" {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(req.DiscountID)},
		}
	}

	ctx, span := stripeTracer.Start(ctx, "stripe checkout.sessions.create",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("checkout.line_items", len(req.LineItems))),
	)
	defer span.End()
	params.Context = ctx

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, recordErr(span, translateStripeErr(err, ""))
	}

	span.SetAttributes(attribute.String("checkout.session_id", s.ID))
	return fromStripeSession(s), nil
}

func (g *StripeGateway) RetrieveSession(ctx context.Context, id string) (*Session, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe checkout.sessions.retrieve",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("checkout.session_id", id)),
	)
	defer span.End()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := g.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, recordErr(span, translateStripeErr(err, id))
	}

	return fromStripeSession(s), nil
}

func (g *StripeGateway) CreatePercentDiscount(ctx context.Context, percent int, label string) (string, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe coupons.create",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("coupon.percent_off", percent)),
	)
	defer span.End()

	params := &stripe.CouponParams{
		PercentOff: stripe.Float64(float64(ClampPercent(percent))),
		Duration:   stripe.String(string(stripe.CouponDurationOnce)),
		Name:       stripe.String(label),
	}
	params.Context = ctx

	c, err := g.api.Coupons.New(params)
	if err != nil {
		return "", recordErr(span, translateStripeErr(err, ""))
	}

	return c.ID, nil
}

func fromStripeSession(s *stripe.CheckoutSession) *Session {
	return &Session{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: string(s.PaymentStatus),
		AmountTotal:   domain.Amount(s.AmountTotal),
		Metadata:      s.Metadata,
	}
}

func translateStripeErr(err error, sessionID string) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return err
	}

	if sessionID != "" && stripeErr.HTTPStatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	return &ProviderError{
		Type:      string(stripeErr.Type),
		Code:      string(stripeErr.Code),
		Message:   stripeErr.Msg,
		RequestID: stripeErr.RequestID,
		Err:       err,
	}
}

func recordErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
