/*
instrument.go - Operational decorator for any Bridge

PURPOSE:
  Wraps a Bridge with the concerns every caller needs but no caller
  should implement: a per-call timeout, call pacing, structured logging
  and metrics. The engine always talks to an Instrumented bridge.

TIMEOUT:
  Each call runs under context.WithTimeout. A deadline hit surfaces as
  LedgerError{Timeout: true} so the engine can distinguish "outcome
  unknown" from an explicit rejection. The inner call is allowed to
  finish in the background; its result is delivered to the caller only
  if the deadline has not passed.

PACING:
  golang.org/x/time/rate bounds the call rate. The ledger node this
  bridge fronts throttles aggressive clients; pacing here keeps the
  engine out of that failure mode and gives the bridge the serialization
  point the ledger's nonce ordering needs.
*/
package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	callDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_call_duration_seconds",
			Help:    "Duration of ledger bridge calls in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"op", "status"}, // status: ok, timeout, rejected, error
	)
)

// Instrumented decorates a Bridge with timeout, pacing, logging and
// metrics. Safe for concurrent use.
type Instrumented struct {
	inner   Bridge
	timeout time.Duration
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewInstrumented wraps inner. timeout bounds each call; rps bounds the
// call rate (0 disables pacing).
func NewInstrumented(inner Bridge, timeout time.Duration, rps float64, log *zap.Logger) *Instrumented {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &Instrumented{inner: inner, timeout: timeout, limiter: limiter, log: log}
}

func (b *Instrumented) PromiseToFund(ctx context.Context, recipient string, amount decimal.Decimal, sender Sender) (Promise, error) {
	var out Promise
	err := b.call(ctx, OpPromiseToFund, func(ctx context.Context) error {
		var err error
		out, err = b.inner.PromiseToFund(ctx, recipient, amount, sender)
		return err
	})
	return out, err
}

func (b *Instrumented) FundReceived(ctx context.Context, index int, sender Sender) (Receipt, error) {
	var out Receipt
	err := b.call(ctx, OpFundReceived, func(ctx context.Context) error {
		var err error
		out, err = b.inner.FundReceived(ctx, index, sender)
		return err
	})
	return out, err
}

func (b *Instrumented) RevertFund(ctx context.Context, index int, sender Sender) (Receipt, error) {
	var out Receipt
	err := b.call(ctx, OpRevertFund, func(ctx context.Context) error {
		var err error
		out, err = b.inner.RevertFund(ctx, index, sender)
		return err
	})
	return out, err
}

func (b *Instrumented) Spend(ctx context.Context, recipient string, amount decimal.Decimal, sender Sender) (Receipt, error) {
	var out Receipt
	err := b.call(ctx, OpSpend, func(ctx context.Context) error {
		var err error
		out, err = b.inner.Spend(ctx, recipient, amount, sender)
		return err
	})
	return out, err
}

func (b *Instrumented) SpendAll(ctx context.Context, recipient string, sender Sender) (Receipt, error) {
	var out Receipt
	err := b.call(ctx, OpSpendAll, func(ctx context.Context) error {
		var err error
		out, err = b.inner.SpendAll(ctx, recipient, sender)
		return err
	})
	return out, err
}

// call runs fn under the pacing and timeout policy, classifies the
// outcome and records it.
func (b *Instrumented) call(ctx context.Context, op Op, fn func(context.Context) error) error {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return &LedgerError{Op: op, Err: err, Timeout: true}
		}
	}

	callCtx := ctx
	cancel := func() {}
	if b.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, b.timeout)
	}
	defer cancel()

	start := time.Now()
	err := fn(callCtx)
	elapsed := time.Since(start)

	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = "timeout"
		err = &LedgerError{Op: op, Err: err, Timeout: true}
	case IsRejected(err):
		status = "rejected"
	case IsLedger(err):
		status = "error"
	default:
		status = "error"
		err = &LedgerError{Op: op, Err: err}
	}

	callDuration.WithLabelValues(string(op), status).Observe(elapsed.Seconds())
	if b.log != nil {
		if err != nil {
			b.log.Warn("bridge call failed",
				zap.String("op", string(op)),
				zap.String("status", status),
				zap.Duration("elapsed", elapsed),
				zap.Error(err))
		} else {
			b.log.Debug("bridge call",
				zap.String("op", string(op)),
				zap.Duration("elapsed", elapsed))
		}
	}
	return err
}
