/*
Package bridge defines the boundary to the external value-transfer ledger.

PURPOSE:
  The lifecycle engine never talks to the ledger directly. It calls the
  four operations below through this interface, and the concrete
  implementation (an RPC client against the real ledger) lives outside
  this repository. The package ships:

  - Bridge:       The four-operation call contract
  - LedgerError:  Failure classification (timeout vs explicit rejection)
  - Instrumented: Decorator adding timeout, pacing, logging and metrics
  - Sim:          In-process simulated ledger for dev wiring and tests

CALL CONTRACT:
  Calls are not guaranteed idempotent at the ledger level. The engine is
  responsible for never re-issuing a call for a support whose previous
  attempt already produced a persisted contract index or log entry.

CONCURRENCY:
  A Bridge is a shared, long-lived resource, safe for concurrent use by
  independent requests. If the underlying ledger requires monotonic
  nonces, the bridge imposes its own serialization; that ordering
  constraint belongs here, not in the engine.

SEE ALSO:
  - errors.go: LedgerError and classification helpers
  - instrument.go: Timeout/pacing/metrics decorator
  - sim.go: Simulated ledger
*/
package bridge

import (
	"context"

	"github.com/shopspring/decimal"
)

// Sender is the credential the engine holds to sign ledger calls.
type Sender struct {
	Address string
	Secret  string
}

// Promise is the result of a successful promiseToFund call.
type Promise struct {
	Index int    // contract index assigned by the ledger
	Ref   string // ledger transaction reference
	Raw   string // raw response, persisted verbatim in the audit trail
}

// Receipt is the result of the other three operations.
type Receipt struct {
	Ref string
	Raw string
}

// Bridge wraps the four external ledger operations. Each call is
// individually fallible and bounded by the context deadline.
type Bridge interface {
	// PromiseToFund registers a pledge for the recipient and returns
	// the contract index the remaining lifecycle steps key on.
	PromiseToFund(ctx context.Context, recipient string, amount decimal.Decimal, sender Sender) (Promise, error)

	// FundReceived settles a previously promised pledge.
	FundReceived(ctx context.Context, index int, sender Sender) (Receipt, error)

	// RevertFund rolls a settled pledge back to promised.
	RevertFund(ctx context.Context, index int, sender Sender) (Receipt, error)

	// Spend consumes tokens for the recipient (quantitative campaigns).
	Spend(ctx context.Context, recipient string, amount decimal.Decimal, sender Sender) (Receipt, error)

	// SpendAll consumes the recipient's full balance (non-quantitative,
	// all-or-nothing redemption).
	SpendAll(ctx context.Context, recipient string, sender Sender) (Receipt, error)
}

// Op names a bridge operation, used in errors, logs and metrics.
type Op string

const (
	OpPromiseToFund Op = "promiseToFund"
	OpFundReceived  Op = "fundReceived"
	OpRevertFund    Op = "revertFund"
	OpSpend         Op = "spend"
	OpSpendAll      Op = "spendAll"
)
