package sale

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// State is a step of the checkout state machine.
type State int

const (
	StateValidating State = iota
	StatePricing
	StatePersisting
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StatePricing:
		return "pricing"
	case StatePersisting:
		return "persisting"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// next lists the allowed transitions out of each state.
var next = map[State][]State{
	StateValidating: {StatePricing, StateAborted},
	StatePricing:    {StatePersisting},
	StatePersisting: {StateCommitted, StateAborted},
}

// checkout tracks the state of one CreateSale call.
type checkout struct {
	state State
	// failedIn is the state the checkout was in when it aborted.
	failedIn State
}

func (c *checkout) advance(to State) {
	for _, s := range next[c.state] {
		if s == to {
			if to == StateAborted {
				c.failedIn = c.state
			}
			c.state = to
			return
		}
	}
	panic(fmt.Sprintf("sale: invalid checkout transition %s -> %s", c.state, to))
}

// Config holds the server-side checkout parameters.
type Config struct {
	// TaxRate is the fixed tax percentage applied to the discounted subtotal.
	TaxRate decimal.Decimal
	// MaxDiscountRate caps the discount as a percentage of the subtotal.
	MaxDiscountRate decimal.Decimal
	StockPolicy     StockPolicy
	// Location defines the calendar day used for expiry checks and order
	// numbering. Defaults to time.Local.
	Location *time.Location
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTracerProvider sets the tracer provider used for checkout spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider used for checkout metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meterProvider = mp }
}

// Service is the sale transaction processor. It exposes checkout as a single
// atomic operation over a Store.
type Service struct {
	store   Store
	pricing Pricing
	stock   StockValidator
	loc     *time.Location
	now     func() time.Time

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	checkouts      metric.Int64Counter
}

// NewService creates a Service backed by store.
func NewService(store Store, cfg Config, opts ...Option) (*Service, error) {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	s := &Service{
		store: store,
		pricing: Pricing{
			TaxRate:         cfg.TaxRate,
			MaxDiscountRate: cfg.MaxDiscountRate,
		},
		stock:          StockValidator{Policy: cfg.StockPolicy},
		loc:            cfg.Location,
		now:            time.Now,
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, o := range opts {
		o(s)
	}

	s.tracer = s.tracerProvider.Tracer("pharmacy/sale")
	counter, err := s.meterProvider.Meter("pharmacy/sale").Int64Counter("pharmacy.checkouts",
		metric.WithDescription("Checkout attempts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout counter")
	}
	s.checkouts = counter
	return s, nil
}

// CreateSale validates the request, then in one transaction locks and checks
// stock, prices the sale, numbers it, persists header and items and
// decrements stock. Either the full receipt is returned or nothing is applied.
func (s *Service) CreateSale(ctx context.Context, req CreateRequest) (*Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "sale.CreateSale",
		trace.WithAttributes(
			attribute.String("sale.payment_method", string(req.PaymentMethod)),
			attribute.Int("sale.lines", len(req.Items)),
		),
	)
	defer span.End()
	lg := zctx.From(ctx)

	if err := validateRequest(req); err != nil {
		s.recordOutcome(ctx, span, "rejected", err)
		lg.Info("Checkout rejected", zap.Error(err))
		return nil, err
	}

	now := s.now().In(s.loc)
	c := &checkout{state: StateValidating}

	var created *Sale
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		priced, err := s.stock.Validate(ctx, tx, req.Items, now)
		if err != nil {
			return err
		}

		c.advance(StatePricing)
		totals, items := s.pricing.Compute(priced, req.Discount, req.Paid)

		c.advance(StatePersisting)
		number, createdAt, err := s.nextOrderNumber(ctx, tx, now)
		if err != nil {
			return err
		}

		sl := &Sale{
			OrderNumber:   number,
			CreatedBy:     req.Actor,
			PaymentMethod: req.PaymentMethod,
			Totals:        totals,
			Active:        true,
			CreatedAt:     createdAt,
			Items:         items,
		}
		id, err := tx.InsertSale(ctx, sl)
		if err != nil {
			return errors.Wrap(err, "insert sale")
		}
		sl.ID = id

		if err := tx.InsertItems(ctx, id, items); err != nil {
			return errors.Wrap(err, "insert sale items")
		}

		demand := stockDemand(req.Items)
		for _, medID := range medicineIDs(req.Items) {
			if err := tx.DecrementStock(ctx, medID, demand[medID]); err != nil {
				return errors.Wrapf(err, "decrement stock of medicine %d", medID)
			}
		}

		created = sl
		return nil
	})
	if err != nil {
		c.advance(StateAborted)
		if IsRejection(err) {
			s.recordOutcome(ctx, span, "rejected", err)
			lg.Info("Checkout rejected", zap.Stringer("state", c.failedIn), zap.Error(err))
			return nil, err
		}
		s.recordOutcome(ctx, span, "failed", err)
		lg.Error("Checkout failed", zap.Stringer("state", c.failedIn), zap.Error(err))
		return nil, errors.Wrap(err, "create sale")
	}
	c.advance(StateCommitted)

	s.recordOutcome(ctx, span, "committed", nil)
	span.SetAttributes(attribute.String("sale.order_number", created.OrderNumber))
	lg.Info("Sale committed",
		zap.Int64("sale_id", created.ID),
		zap.String("order_number", created.OrderNumber),
		zap.String("total", created.Totals.Total.StringFixed(2)),
		zap.String("status", string(created.Totals.Status)),
	)
	return NewReceipt(created), nil
}

// nextOrderNumber serializes numbering for the business day and derives the
// sequence from the sales already committed that day. The creation time is
// read after the day lock is held, so created_at follows sequence order. If
// the day rolled over while waiting, the new day is locked as well.
func (s *Service) nextOrderNumber(ctx context.Context, tx Tx, day time.Time) (string, time.Time, error) {
	var locked time.Time
	for {
		from, to := dayBounds(day, s.loc)
		if !from.Equal(locked) {
			if err := tx.LockOrderSequence(ctx, from); err != nil {
				return "", time.Time{}, errors.Wrap(err, "lock order sequence")
			}
			locked = from
		}

		now := s.now().In(s.loc)
		if now.Before(from) || !now.Before(to) {
			day = now
			continue
		}
		count, err := tx.CountSales(ctx, from, to)
		if err != nil {
			return "", time.Time{}, errors.Wrap(err, "count sales of day")
		}
		return OrderNumber(count, now), now, nil
	}
}

func (s *Service) recordOutcome(ctx context.Context, span trace.Span, outcome string, err error) {
	s.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if err != nil && outcome == "failed" {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout failed")
	}
}

// validateRequest checks the request shape before any transaction opens.
func validateRequest(req CreateRequest) error {
	if req.Actor == "" {
		return ErrNoActor
	}
	if !req.PaymentMethod.Valid() {
		return ErrInvalidPaymentMethod
	}
	if len(req.Items) == 0 {
		return ErrEmptyItems
	}
	for i, it := range req.Items {
		if it.MedicineID <= 0 {
			return &InputError{Field: fmt.Sprintf("items[%d].medicineId", i), Reason: "must be a positive integer"}
		}
		if it.Quantity <= 0 {
			return &InputError{Field: fmt.Sprintf("items[%d].qty", i), Reason: "must be a positive integer"}
		}
		if it.Quantity > MaxQuantity {
			return &InputError{Field: fmt.Sprintf("items[%d].qty", i), Reason: fmt.Sprintf("must not exceed %d", MaxQuantity)}
		}
	}
	if req.Discount.IsNegative() {
		return &InputError{Field: "discount", Reason: "must not be negative"}
	}
	if req.Paid.IsNegative() {
		return &InputError{Field: "paid", Reason: "must not be negative"}
	}
	return nil
}
