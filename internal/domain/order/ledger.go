package order

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/luxe-store/internal/domain/apperr"
	"github.com/xenking/luxe-store/internal/domain/auth"
	"github.com/xenking/luxe-store/internal/domain/cart"
	"github.com/xenking/luxe-store/internal/domain/pricing"
)

// Config holds the ledger constants.
type Config struct {
	NumberPrefix string
	DeliveryDays int
}

// DefaultConfig returns the storefront defaults.
func DefaultConfig() Config {
	return Config{NumberPrefix: "LUXE", DeliveryDays: 7}
}

// CreateRequest is the input of Ledger.Create. Cart is the snapshot taken at
// checkout; its Version guards against concurrent cart changes.
type CreateRequest struct {
	OwnerID          string
	Cart             *cart.Cart
	Shipping         Address
	Billing          Address
	Payment          PaymentRef
	Method           pricing.ShippingMethod
	PromoCode        string
	DiscountFraction decimal.Decimal
}

// Ledger is the order service.
type Ledger struct {
	repo   Repository
	calc   pricing.Calculator
	cfg    Config
	now    func() time.Time
	last   atomic.Int64
	tracer trace.Tracer

	committed   metric.Int64Counter
	transitions metric.Int64Counter
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithTracerProvider traces commits with tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(l *Ledger) { l.tracer = tp.Tracer("luxe/order") }
}

// WithMeterProvider records ledger counters with mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(l *Ledger) { l.initMetrics(mp.Meter("luxe/order")) }
}

// NewLedger creates an order Ledger.
func NewLedger(repo Repository, calc pricing.Calculator, cfg Config, opts ...Option) *Ledger {
	l := &Ledger{
		repo:   repo,
		calc:   calc,
		cfg:    cfg,
		now:    time.Now,
		tracer: tracenoop.NewTracerProvider().Tracer(""),
	}
	l.initMetrics(metricnoop.NewMeterProvider().Meter(""))
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Ledger) initMetrics(m metric.Meter) {
	if c, err := m.Int64Counter("luxe.orders.committed",
		metric.WithDescription("Orders committed from carts"),
	); err == nil {
		l.committed = c
	}
	if c, err := m.Int64Counter("luxe.orders.status_transitions",
		metric.WithDescription("Order status changes"),
	); err == nil {
		l.transitions = c
	}
}

// nextNumber returns a millisecond timestamp that is strictly greater than
// any value it returned before.
func (l *Ledger) nextNumber(now time.Time) int64 {
	ms := now.UnixMilli()
	for {
		last := l.last.Load()
		next := max(ms, last+1)
		if l.last.CompareAndSwap(last, next) {
			return next
		}
	}
}

// Create turns the cart snapshot into an order and clears the cart in the
// same commit. An empty snapshot fails with ErrEmptyCart and writes nothing.
func (l *Ledger) Create(ctx context.Context, req CreateRequest) (_ *Order, rerr error) {
	if req.Cart == nil || req.Cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	ctx, span := l.tracer.Start(ctx, "order.Create",
		trace.WithAttributes(attribute.Int("order.lines", len(req.Cart.Items))),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	now := l.now().UTC()
	items := ItemsFromCart(req.Cart.Items)
	o := &Order{
		ID:                uuid.NewString(),
		Number:            l.cfg.NumberPrefix + "-" + strconv.FormatInt(l.nextNumber(now), 10),
		OwnerID:           req.OwnerID,
		Items:             items,
		Shipping:          req.Shipping,
		Billing:           req.Billing,
		Method:            req.Method,
		Payment:           req.Payment,
		PromoCode:         req.PromoCode,
		Price:             l.calc.Compute(PricingLines(items), req.DiscountFraction, req.Method),
		Status:            StatusProcessing,
		CreatedAt:         now,
		EstimatedDelivery: now.AddDate(0, 0, l.cfg.DeliveryDays),
		UpdatedAt:         now,
	}
	if err := o.Price.Verify(); err != nil {
		return nil, errors.Wrap(err, "price order")
	}

	if err := l.repo.Commit(ctx, o, req.Cart.Version); err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			return nil, err
		}
		return nil, errors.Wrap(err, "commit order")
	}

	span.SetAttributes(attribute.String("order.id", o.ID))
	l.committed.Add(ctx, 1, metric.WithAttributes(attribute.String("method", string(o.Method))))
	zctx.From(ctx).Info("Order committed",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.Number),
		zap.String("owner_id", o.OwnerID),
		zap.Stringer("total", o.Price.Total),
	)
	return o, nil
}

// ListForOwner returns the owner's orders, newest first.
func (l *Ledger) ListForOwner(ctx context.Context, ownerID string) ([]Order, error) {
	orders, err := l.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	if orders == nil {
		orders = []Order{}
	}
	return orders, nil
}

// GetByID returns the order only when it belongs to ownerID.
func (l *Ledger) GetByID(ctx context.Context, ownerID, id string) (*Order, error) {
	o, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return o, nil
}

// ListAll returns every order matching f. Admin only.
func (l *Ledger) ListAll(ctx context.Context, f Filter) ([]Order, int, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, 0, err
	}
	orders, total, err := l.repo.List(ctx, f)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list all orders")
	}
	if orders == nil {
		orders = []Order{}
	}
	return orders, total, nil
}

// UpdateStatus moves an order forward in its lifecycle. Admin only.
func (l *Ledger) UpdateStatus(ctx context.Context, id string, next Status) (*Order, error) {
	admin, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := ParseStatus(string(next)); err != nil {
		return nil, err
	}

	cur, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cur.Status.CanTransition(next) {
		return nil, errors.Wrapf(ErrInvalidTransition, "%s to %s", cur.Status, next)
	}

	o, err := l.repo.SetStatus(ctx, id, cur.Status, next, l.now().UTC())
	if err != nil {
		if apperr.KindOf(err) != apperr.KindInternal {
			return nil, err
		}
		return nil, errors.Wrap(err, "set status")
	}

	l.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(cur.Status)),
		attribute.String("to", string(next)),
	))
	zctx.From(ctx).Info("Order status changed",
		zap.String("order_id", id),
		zap.String("from", string(cur.Status)),
		zap.String("to", string(next)),
		zap.String("admin_id", admin.UserID),
	)
	return o, nil
}
