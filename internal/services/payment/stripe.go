package payment

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"go.uber.org/zap"
)

// StripeConfig configures the Stripe adapter.
type StripeConfig struct {
	SecretKey string
	Timeout   time.Duration
	// MaxNetworkRetries is applied by stripe-go on connection errors and
	// 409/5xx responses, reusing the same idempotency key.
	MaxNetworkRetries int64
	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string
}

// StripeGateway implements Gateway on top of stripe-go.
type StripeGateway struct {
	api     *client.API
	timeout time.Duration
	logger  *zap.Logger
}

// NewStripeGateway creates a Stripe-backed gateway. The backend is built per
// instance so no package-level stripe.Key is touched.
func NewStripeGateway(cfg StripeConfig, logger *zap.Logger) *StripeGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripe.String(cfg.BaseURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	api := client.New(cfg.SecretKey, &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})

	return &StripeGateway{
		api:     api,
		timeout: cfg.Timeout,
		logger:  logger.Named("stripe"),
	}
}

// DefaultTimeout bounds a single processor call.
const DefaultTimeout = 15 * time.Second

func (g *StripeGateway) CreateCustomer(ctx context.Context, email string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx

	customer, err := g.api.Customers.New(params)
	if err != nil {
		err = classifyStripeError(ctx, err)
		g.logger.Warn("create customer failed", zap.Error(err))
		return "", err
	}
	return customer.ID, nil
}

func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		Customer:      stripe.String(req.CustomerRef),
		PaymentMethod: stripe.String(req.PaymentMethodRef),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.AddMetadata("transaction_id", req.IdempotencyKey)

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		err = classifyStripeError(ctx, err)
		g.logger.Warn("charge failed",
			zap.String("transaction_id", req.IdempotencyKey),
			zap.Int64("amount", req.Amount),
			zap.Error(err),
		)
		return nil, err
	}
	return paymentIntentResult(pi), nil
}

func (g *StripeGateway) Payout(ctx context.Context, req PayoutRequest) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PayoutParams{
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Destination: stripe.String(req.DestinationRef),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.AddMetadata("transaction_id", req.IdempotencyKey)

	po, err := g.api.Payouts.New(params)
	if err != nil {
		err = classifyStripeError(ctx, err)
		g.logger.Warn("payout failed",
			zap.String("transaction_id", req.IdempotencyKey),
			zap.Int64("amount", req.Amount),
			zap.Error(err),
		)
		return nil, err
	}
	return payoutResult(po), nil
}

func (g *StripeGateway) ChargeStatus(ctx context.Context, externalRef string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(externalRef, params)
	if err != nil {
		return nil, classifyStripeError(ctx, err)
	}
	return paymentIntentResult(pi), nil
}

func (g *StripeGateway) PayoutStatus(ctx context.Context, externalRef string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PayoutParams{}
	params.Context = ctx

	po, err := g.api.Payouts.Get(externalRef, params)
	if err != nil {
		return nil, classifyStripeError(ctx, err)
	}
	return payoutResult(po), nil
}

func paymentIntentResult(pi *stripe.PaymentIntent) *Result {
	res := &Result{ExternalRef: pi.ID}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		res.Status = StatusSucceeded
	case stripe.PaymentIntentStatusCanceled, stripe.PaymentIntentStatusRequiresPaymentMethod:
		res.Status = StatusFailed
		res.FailureCode = string(pi.Status)
		if pi.LastPaymentError != nil && pi.LastPaymentError.Code != "" {
			res.FailureCode = string(pi.LastPaymentError.Code)
		}
	default:
		res.Status = StatusPending
	}
	return res
}

func payoutResult(po *stripe.Payout) *Result {
	res := &Result{ExternalRef: po.ID}
	switch po.Status {
	case stripe.PayoutStatusPaid:
		res.Status = StatusSucceeded
	case stripe.PayoutStatusFailed, stripe.PayoutStatusCanceled:
		res.Status = StatusFailed
		res.FailureCode = string(po.Status)
		if po.FailureCode != "" {
			res.FailureCode = string(po.FailureCode)
		}
	default:
		res.Status = StatusPending
	}
	return res
}

// classifyStripeError splits processor failures into definite declines and
// unknown outcomes.
func classifyStripeError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Unknown(err)
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch {
		case stripeErr.HTTPStatusCode == http.StatusTooManyRequests,
			stripeErr.HTTPStatusCode >= http.StatusInternalServerError,
			stripeErr.Type == stripe.ErrorTypeAPI,
			stripeErr.Type == stripe.ErrorTypeIdempotency:
			return Unknown(err)
		}
		code := string(stripeErr.Code)
		if stripeErr.DeclineCode != "" {
			code = string(stripeErr.DeclineCode)
		}
		return &GatewayError{Outcome: ErrDeclined, Code: code, Msg: stripeErr.Msg, Err: err}
	}

	// Transport failures: the request may have reached the processor.
	return Unknown(err)
}
