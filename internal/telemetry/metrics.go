package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InitMeterProvider initializes the Prometheus exporter and MeterProvider and
// starts Go runtime instrumentation. It returns an http.Handler for the
// /metrics endpoint and a shutdown function.
func InitMeterProvider(serviceName, serviceVersion string) (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	if err := runtime.Start(runtime.WithMeterProvider(mp)); err != nil {
		return nil, nil, err
	}

	return promhttp.Handler(), mp.Shutdown, nil
}

// Auxiliary failure kinds recorded by CheckoutMetrics.AuxiliaryFailure.
const (
	FailureDiscount     = "discount"
	FailureRedemption   = "coupon_redemption"
	FailureGiftCoupon   = "gift_coupon"
	FailureMetadata     = "metadata"
	FailureLock         = "lock"
	FailurePublishEvent = "publish_event"
)

type CheckoutMetrics struct {
	sessionsCreated  metric.Int64Counter
	sessionFailures  metric.Int64Counter
	ordersCreated    metric.Int64Counter
	orderRevenue     metric.Int64Counter
	duplicateFinals  metric.Int64Counter
	auxiliaryFailure metric.Int64Counter
}

func NewCheckoutMetrics(meter metric.Meter) (*CheckoutMetrics, error) {
	m := &CheckoutMetrics{}
	var err error

	if m.sessionsCreated, err = meter.Int64Counter("checkout.sessions.created",
		metric.WithDescription("Payment sessions created")); err != nil {
		return nil, err
	}
	if m.sessionFailures, err = meter.Int64Counter("checkout.sessions.failed",
		metric.WithDescription("Session requests rejected, by reason")); err != nil {
		return nil, err
	}
	if m.ordersCreated, err = meter.Int64Counter("checkout.orders.created",
		metric.WithDescription("Orders materialized from paid sessions")); err != nil {
		return nil, err
	}
	if m.orderRevenue, err = meter.Int64Counter("checkout.orders.amount",
		metric.WithDescription("Settled order amounts"),
		metric.WithUnit("{minor_unit}")); err != nil {
		return nil, err
	}
	if m.duplicateFinals, err = meter.Int64Counter("checkout.finalizations.duplicate",
		metric.WithDescription("Finalizations of an already fulfilled session")); err != nil {
		return nil, err
	}
	if m.auxiliaryFailure, err = meter.Int64Counter("checkout.auxiliary.failures",
		metric.WithDescription("Swallowed side-effect failures, by kind")); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *CheckoutMetrics) SessionCreated(ctx context.Context) {
	m.sessionsCreated.Add(ctx, 1)
}

func (m *CheckoutMetrics) SessionFailed(ctx context.Context, reason string) {
	m.sessionFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *CheckoutMetrics) OrderCreated(ctx context.Context, amountMinor int64) {
	m.ordersCreated.Add(ctx, 1)
	m.orderRevenue.Add(ctx, amountMinor)
}

func (m *CheckoutMetrics) DuplicateFinalization(ctx context.Context) {
	m.duplicateFinals.Add(ctx, 1)
}

func (m *CheckoutMetrics) AuxiliaryFailure(ctx context.Context, kind string) {
	m.auxiliaryFailure.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
