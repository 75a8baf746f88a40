/*
sim.go - Simulated ledger (for testing/dev)

PURPOSE:
  An in-process Bridge implementation with deterministic contract
  indices and controllable failures. Used by the dev server wiring and
  by engine tests; the production ledger client lives outside this
  repository.

FAILURE INJECTION:
  FailNext(op, err) makes the next call of op return err. Pass a
  *LedgerError with Timeout or Rejected set to exercise the engine's
  classification paths. DelayFor(op, d) makes calls of op sleep, which
  combined with the Instrumented timeout produces real deadline hits.
*/
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Sim is a simulated ledger. Safe for concurrent use.
type Sim struct {
	mu        sync.Mutex
	nextIndex int
	seq       int
	failures  map[Op]error
	delays    map[Op]time.Duration

	// Contracts records every promise by index, so tests can assert
	// what reached the "ledger".
	Contracts map[int]SimContract
}

// SimContract is the simulated ledger's view of one pledge.
type SimContract struct {
	Recipient string
	Amount    decimal.Decimal
	Received  bool
}

func NewSim() *Sim {
	return &Sim{
		failures:  make(map[Op]error),
		delays:    make(map[Op]time.Duration),
		Contracts: make(map[int]SimContract),
	}
}

// FailNext makes the next call of op fail with err.
func (s *Sim) FailNext(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// DelayFor makes every call of op sleep for d before responding.
func (s *Sim) DelayFor(op Op, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[op] = d
}

func (s *Sim) PromiseToFund(ctx context.Context, recipient string, amount decimal.Decimal, _ Sender) (Promise, error) {
	if err := s.begin(ctx, OpPromiseToFund); err != nil {
		return Promise{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	index := s.nextIndex
	s.nextIndex++
	s.Contracts[index] = SimContract{Recipient: recipient, Amount: amount}
	ref := s.ref("promise")
	return Promise{
		Index: index,
		Ref:   ref,
		Raw:   fmt.Sprintf(`{"index":%d,"ref":%q,"recipient":%q,"amount":%q}`, index, ref, recipient, amount.String()),
	}, nil
}

func (s *Sim) FundReceived(ctx context.Context, index int, _ Sender) (Receipt, error) {
	if err := s.begin(ctx, OpFundReceived); err != nil {
		return Receipt{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.Contracts[index]
	if !ok {
		return Receipt{}, &LedgerError{Op: OpFundReceived, Err: fmt.Errorf("unknown contract index %d", index), Rejected: true}
	}
	c.Received = true
	s.Contracts[index] = c
	return s.receipt("receive", index), nil
}

func (s *Sim) RevertFund(ctx context.Context, index int, _ Sender) (Receipt, error) {
	if err := s.begin(ctx, OpRevertFund); err != nil {
		return Receipt{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.Contracts[index]
	if !ok {
		return Receipt{}, &LedgerError{Op: OpRevertFund, Err: fmt.Errorf("unknown contract index %d", index), Rejected: true}
	}
	c.Received = false
	s.Contracts[index] = c
	return s.receipt("revert", index), nil
}

func (s *Sim) Spend(ctx context.Context, recipient string, amount decimal.Decimal, _ Sender) (Receipt, error) {
	if err := s.begin(ctx, OpSpend); err != nil {
		return Receipt{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return Receipt{
		Ref: fmt.Sprintf("sim-spend-%d", s.seq),
		Raw: fmt.Sprintf(`{"op":"spend","recipient":%q,"amount":%q}`, recipient, amount.String()),
	}, nil
}

func (s *Sim) SpendAll(ctx context.Context, recipient string, _ Sender) (Receipt, error) {
	if err := s.begin(ctx, OpSpendAll); err != nil {
		return Receipt{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return Receipt{
		Ref: fmt.Sprintf("sim-spendall-%d", s.seq),
		Raw: fmt.Sprintf(`{"op":"spendAll","recipient":%q}`, recipient),
	}, nil
}

// begin applies the injected delay and failure for op, honoring ctx.
func (s *Sim) begin(ctx context.Context, op Op) error {
	s.mu.Lock()
	delay := s.delays[op]
	failure := s.failures[op]
	if failure != nil {
		delete(s.failures, op)
	}
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return failure
}

func (s *Sim) ref(kind string) string {
	s.seq++
	return fmt.Sprintf("sim-%s-%d", kind, s.seq)
}

func (s *Sim) receipt(kind string, index int) Receipt {
	r := s.ref(kind)
	return Receipt{Ref: r, Raw: fmt.Sprintf(`{"op":%q,"index":%d,"ref":%q}`, kind, index, r)}
}
