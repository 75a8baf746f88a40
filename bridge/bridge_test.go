package bridge_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/microcredit-engine/bridge"
)

var sender = bridge.Sender{Address: "0xsender", Secret: "secret"}

// =============================================================================
// SIM
// =============================================================================

func TestSim_PromiseIndicesAreSequential(t *testing.T) {
	s := bridge.NewSim()
	ctx := context.Background()

	for want := 0; want < 3; want++ {
		p, err := s.PromiseToFund(ctx, "0xbacker", decimal.NewFromInt(100), sender)
		require.NoError(t, err)
		assert.Equal(t, want, p.Index)
		assert.NotEmpty(t, p.Ref)
		assert.NotEmpty(t, p.Raw)
	}
	assert.Len(t, s.Contracts, 3)
	assert.Equal(t, "0xbacker", s.Contracts[0].Recipient)
}

func TestSim_ReceiveAndRevert(t *testing.T) {
	s := bridge.NewSim()
	ctx := context.Background()

	p, err := s.PromiseToFund(ctx, "0xbacker", decimal.NewFromInt(100), sender)
	require.NoError(t, err)

	_, err = s.FundReceived(ctx, p.Index, sender)
	require.NoError(t, err)
	assert.True(t, s.Contracts[p.Index].Received)

	_, err = s.RevertFund(ctx, p.Index, sender)
	require.NoError(t, err)
	assert.False(t, s.Contracts[p.Index].Received)
}

func TestSim_UnknownIndexIsRejection(t *testing.T) {
	s := bridge.NewSim()

	_, err := s.FundReceived(context.Background(), 42, sender)
	require.Error(t, err)
	assert.True(t, bridge.IsRejected(err))
	assert.True(t, bridge.IsLedger(err))
}

func TestSim_FailNextIsOneShot(t *testing.T) {
	s := bridge.NewSim()
	ctx := context.Background()

	s.FailNext(bridge.OpPromiseToFund, &bridge.LedgerError{
		Op: bridge.OpPromiseToFund, Err: errors.New("down"),
	})

	_, err := s.PromiseToFund(ctx, "0xbacker", decimal.NewFromInt(100), sender)
	require.Error(t, err)

	_, err = s.PromiseToFund(ctx, "0xbacker", decimal.NewFromInt(100), sender)
	assert.NoError(t, err, "failure injection is consumed by the first call")
}

// =============================================================================
// INSTRUMENTED
// =============================================================================

func TestInstrumented_PassesThroughSuccess(t *testing.T) {
	b := bridge.NewInstrumented(bridge.NewSim(), time.Second, 0, zap.NewNop())

	p, err := b.PromiseToFund(context.Background(), "0xbacker", decimal.NewFromInt(100), sender)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Index)
}

func TestInstrumented_DeadlineClassifiedAsTimeout(t *testing.T) {
	// GIVEN: A ledger slower than the per-call timeout
	// WHEN: Promising funds
	// THEN: The error is a ledger timeout, distinguishable from a rejection

	inner := bridge.NewSim()
	inner.DelayFor(bridge.OpPromiseToFund, 100*time.Millisecond)
	b := bridge.NewInstrumented(inner, 10*time.Millisecond, 0, zap.NewNop())

	_, err := b.PromiseToFund(context.Background(), "0xbacker", decimal.NewFromInt(100), sender)
	require.Error(t, err)
	assert.True(t, bridge.IsLedger(err))
	assert.True(t, bridge.IsTimeout(err))
	assert.False(t, bridge.IsRejected(err))
}

func TestInstrumented_WrapsUnknownErrors(t *testing.T) {
	// Arbitrary inner failures surface as a ledger error, neither timeout
	// nor rejection.
	inner := bridge.NewSim()
	inner.FailNext(bridge.OpSpend, errors.New("connection reset"))
	b := bridge.NewInstrumented(inner, time.Second, 0, zap.NewNop())

	_, err := b.Spend(context.Background(), "0xbacker", decimal.NewFromInt(10), sender)
	require.Error(t, err)
	assert.True(t, bridge.IsLedger(err))
	assert.False(t, bridge.IsTimeout(err))
	assert.False(t, bridge.IsRejected(err))
}

func TestInstrumented_PreservesRejections(t *testing.T) {
	inner := bridge.NewSim()
	b := bridge.NewInstrumented(inner, time.Second, 0, zap.NewNop())

	_, err := b.FundReceived(context.Background(), 42, sender)
	require.Error(t, err)
	assert.True(t, bridge.IsRejected(err))
}
