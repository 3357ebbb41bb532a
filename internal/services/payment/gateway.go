// Package payment wraps the external payment processor that moves money in
// and out of wallets.
package payment

import (
	"context"
	"errors"
	"fmt"
)

// Status of a charge or payout as reported by the processor.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusPending   Status = "pending"
)

var (
	// ErrDeclined means the processor definitely did not move the money.
	ErrDeclined = errors.New("payment declined")
	// ErrUnknownOutcome means the call may or may not have taken effect.
	ErrUnknownOutcome = errors.New("payment outcome unknown")
)

// Gateway is the processor contract used by the wallet engine. Charge and
// Payout are idempotent on IdempotencyKey.
type Gateway interface {
	CreateCustomer(ctx context.Context, email string) (string, error)
	Charge(ctx context.Context, req ChargeRequest) (*Result, error)
	Payout(ctx context.Context, req PayoutRequest) (*Result, error)
	ChargeStatus(ctx context.Context, externalRef string) (*Result, error)
	PayoutStatus(ctx context.Context, externalRef string) (*Result, error)
}

type ChargeRequest struct {
	IdempotencyKey   string
	CustomerRef      string
	Amount           int64
	Currency         string
	PaymentMethodRef string
}

type PayoutRequest struct {
	IdempotencyKey string
	Amount         int64
	Currency       string
	DestinationRef string
}

// Result is what the processor reported for a charge or payout.
type Result struct {
	ExternalRef string
	Status      Status
	// FailureCode is set when Status is failed.
	FailureCode string
}

// GatewayError carries the processor's failure classified as declined or
// unknown outcome. errors.Is matches ErrDeclined or ErrUnknownOutcome.
type GatewayError struct {
	Outcome error
	Code    string
	Msg     string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%v (%s): %s", e.Outcome, e.Code, e.Msg)
	}
	return fmt.Sprintf("%v: %s", e.Outcome, e.Msg)
}

func (e *GatewayError) Is(target error) bool {
	return target == e.Outcome
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Declined builds a definite-failure error.
func Declined(code, msg string) error {
	return &GatewayError{Outcome: ErrDeclined, Code: code, Msg: msg}
}

// Unknown builds an unknown-outcome error wrapping cause.
func Unknown(cause error) error {
	msg := "no response"
	if cause != nil {
		msg = cause.Error()
	}
	return &GatewayError{Outcome: ErrUnknownOutcome, Msg: msg, Err: cause}
}

// IsDeclined reports whether err is a definite processor failure.
func IsDeclined(err error) bool {
	return errors.Is(err, ErrDeclined)
}

// IsUnknownOutcome reports whether err leaves the processor state undetermined.
func IsUnknownOutcome(err error) bool {
	return errors.Is(err, ErrUnknownOutcome)
}
