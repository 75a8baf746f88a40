package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/microcredit-engine/credit"
	"github.com/warp/microcredit-engine/credit/store"
)

func draftCampaign(merchant, id string) *credit.Campaign {
	now := time.Now()
	return &credit.Campaign{
		ID:           credit.CampaignID(id),
		MerchantID:   credit.MerchantID(merchant),
		Title:        "Test Campaign",
		Quantitative: true,
		MinAllowed:   credit.NewTokens(10),
		MaxAllowed:   credit.NewTokens(150),
		MaxAmount:    credit.NewTokens(1000),
		RedeemStarts: now,
		RedeemEnds:   now.AddDate(0, 1, 0),
		StartsAt:     now,
		ExpiresAt:    now.AddDate(0, 2, 0),
		Status:       credit.CampaignDraft,
	}
}

func newSupport(campaign, id string, createdAt time.Time) *credit.Support {
	return &credit.Support{
		ID:             credit.SupportID(id),
		CampaignID:     credit.CampaignID(campaign),
		BackerID:       "mem-1",
		InitialTokens:  credit.NewTokens(100),
		RedeemedTokens: credit.ZeroTokens(),
		ContractIndex:  credit.UnbridgedIndex,
		Method:         credit.MethodCash,
		Status:         credit.SupportOrder,
		CreatedAt:      createdAt,
	}
}

// =============================================================================
// CAMPAIGN STORE
// =============================================================================

func TestMemory_PublishCampaign_Once(t *testing.T) {
	// GIVEN: A draft campaign
	// WHEN: Publishing it twice
	// THEN: The first publish sets address and hash; the second fails

	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SaveCampaign(ctx, draftCampaign("mer-1", "c1")))
	require.NoError(t, m.PublishCampaign(ctx, "mer-1", "c1", "0xabc", "0xhash"))

	c, err := m.GetCampaign(ctx, "mer-1", "c1")
	require.NoError(t, err)
	assert.True(t, c.Published())
	assert.Equal(t, "0xabc", c.LedgerAddress)
	assert.Equal(t, "0xhash", c.PublishTxHash)

	err = m.PublishCampaign(ctx, "mer-1", "c1", "0xother", "0xother")
	assert.ErrorIs(t, err, credit.ErrCampaignImmutable)
}

func TestMemory_PublishedCampaign_Immutable(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	c := draftCampaign("mer-1", "c1")
	require.NoError(t, m.SaveCampaign(ctx, c))
	require.NoError(t, m.PublishCampaign(ctx, "mer-1", "c1", "0xabc", "0xhash"))

	assert.ErrorIs(t, m.SaveCampaign(ctx, c), credit.ErrCampaignImmutable)
	assert.ErrorIs(t, m.RemoveCampaign(ctx, "mer-1", "c1"), credit.ErrCampaignImmutable)
}

func TestMemory_RemoveDraftCampaign(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SaveCampaign(ctx, draftCampaign("mer-1", "c1")))
	require.NoError(t, m.RemoveCampaign(ctx, "mer-1", "c1"))

	_, err := m.GetCampaign(ctx, "mer-1", "c1")
	assert.ErrorIs(t, err, credit.ErrCampaignNotFound)
}

// =============================================================================
// SUPPORT STORE
// =============================================================================

func TestMemory_CreateSupport_RejectsDuplicate(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	s := newSupport("c1", "s1", time.Now())
	require.NoError(t, m.CreateSupport(ctx, "mer-1", s))

	err := m.CreateSupport(ctx, "mer-1", s)
	assert.ErrorIs(t, err, credit.ErrDuplicateSupport)
}

func TestMemory_UpdateSupport_FailedMutationLeavesRecordUntouched(t *testing.T) {
	// GIVEN: A stored support
	// WHEN: The mutation callback returns an error after modifying state
	// THEN: The stored record is unchanged

	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.CreateSupport(ctx, "mer-1", newSupport("c1", "s1", time.Now())))

	boom := errors.New("guard failed")
	_, err := m.UpdateSupport(ctx, "mer-1", "c1", "s1", func(s *credit.Support) error {
		s.RedeemedTokens = credit.NewTokens(50)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	s, err := m.GetSupport(ctx, "mer-1", "c1", "s1")
	require.NoError(t, err)
	assert.True(t, s.RedeemedTokens.IsZero())
}

func TestMemory_UpdateSupport_CommitsMutation(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.CreateSupport(ctx, "mer-1", newSupport("c1", "s1", time.Now())))

	updated, err := m.UpdateSupport(ctx, "mer-1", "c1", "s1", func(s *credit.Support) error {
		s.ContractIndex = 7
		s.ContractRef = "ref-7"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, updated.ContractIndex)

	s, err := m.GetSupport(ctx, "mer-1", "c1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 7, s.ContractIndex)
	assert.Equal(t, "ref-7", s.ContractRef)
}

func TestMemory_UpdateSupport_ConcurrentIncrementsAreNotLost(t *testing.T) {
	// GIVEN: A stored support with 100 initial tokens
	// WHEN: 50 goroutines each redeem one token via UpdateSupport
	// THEN: Every increment survives; the final balance is exactly 50

	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.CreateSupport(ctx, "mer-1", newSupport("c1", "s1", time.Now())))

	const workers = 50
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.UpdateSupport(ctx, "mer-1", "c1", "s1", func(s *credit.Support) error {
				s.RedeemedTokens = s.RedeemedTokens.Add(credit.NewTokens(1))
				return nil
			})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	s, err := m.GetSupport(ctx, "mer-1", "c1", "s1")
	require.NoError(t, err)
	assert.True(t, s.RedeemedTokens.Equal(credit.NewTokens(workers)))
}

func TestMemory_ListUnbridged(t *testing.T) {
	// GIVEN: An old unbridged support, a fresh unbridged one and a bridged one
	// WHEN: Listing unbridged supports older than 10 minutes
	// THEN: Only the old unbridged support is returned

	m := store.NewMemory()
	ctx := context.Background()
	now := time.Now()

	old := newSupport("c1", "s-old", now.Add(-time.Hour))
	fresh := newSupport("c1", "s-fresh", now)
	bridged := newSupport("c1", "s-bridged", now.Add(-time.Hour))
	bridged.ContractIndex = 3

	require.NoError(t, m.CreateSupport(ctx, "mer-1", old))
	require.NoError(t, m.CreateSupport(ctx, "mer-1", fresh))
	require.NoError(t, m.CreateSupport(ctx, "mer-1", bridged))

	stuck, err := m.ListUnbridged(ctx, now.Add(-10*time.Minute))
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, credit.SupportID("s-old"), stuck[0].ID)
}

// =============================================================================
// TRANSACTION LOG
// =============================================================================

func TestMemory_Append_RejectsDuplicateID(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	rec := credit.TransactionRecord{ID: "tx-1", Type: credit.TxPromiseFund, MemberID: "mem-1"}
	require.NoError(t, m.Append(ctx, rec))

	err := m.Append(ctx, rec)
	assert.ErrorIs(t, err, credit.ErrDuplicateTransaction)
}

func TestMemory_Query_FiltersAndWindows(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	base := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)

	for i, rec := range []credit.TransactionRecord{
		{ID: "tx-1", Type: credit.TxPromiseFund, MemberID: "mem-1", PartnerID: "mer-1"},
		{ID: "tx-2", Type: credit.TxReceiveFund, MemberID: "mem-1", PartnerID: "mer-1"},
		{ID: "tx-3", Type: credit.TxPromiseFund, MemberID: "mem-2", PartnerID: "mer-1"},
		{ID: "tx-4", Type: credit.TxSpendFund, MemberID: "mem-1", PartnerID: "mer-2"},
	} {
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, m.Append(ctx, rec))
	}

	// Member filter, newest first.
	recs, err := m.Query(ctx, credit.TransactionFilter{Member: "mem-1", Page: credit.Everything()})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, credit.TransactionID("tx-4"), recs[0].ID)

	// Type filter.
	recs, err = m.Query(ctx, credit.TransactionFilter{
		Types: []credit.TransactionType{credit.TxPromiseFund},
		Page:  credit.Everything(),
	})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	// Window: page 1 of size 2 over all records.
	recs, err = m.Query(ctx, credit.TransactionFilter{Page: credit.ParsePage("2-1-0")})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, credit.TransactionID("tx-2"), recs[0].ID)
	assert.Equal(t, credit.TransactionID("tx-1"), recs[1].ID)
}
