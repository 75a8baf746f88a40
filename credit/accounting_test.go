package credit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/microcredit-engine/credit"
)

func support(campaign string, status credit.SupportStatus, initial, redeemed float64) *credit.Support {
	return &credit.Support{
		ID:             credit.SupportID("s-" + campaign),
		CampaignID:     credit.CampaignID(campaign),
		Status:         status,
		InitialTokens:  credit.NewTokens(initial),
		RedeemedTokens: credit.NewTokens(redeemed),
	}
}

func TestAggregateTokens_SplitsByStatus(t *testing.T) {
	// GIVEN: Supports in both lifecycle states across two campaigns
	// WHEN: Aggregating
	// THEN: Sums are keyed by campaign and split order vs confirmation

	supports := []*credit.Support{
		support("c1", credit.SupportOrder, 100, 0),
		support("c1", credit.SupportConfirmation, 50, 20),
		support("c1", credit.SupportConfirmation, 30, 30),
		support("c2", credit.SupportOrder, 10, 0),
	}

	byID := credit.AggregateTokens(supports)
	require.Len(t, byID, 2)

	c1 := byID["c1"]
	assert.True(t, c1.Ordered.Initial.Equal(credit.NewTokens(100)))
	assert.Equal(t, 1, c1.Ordered.Count)
	assert.True(t, c1.Confirmed.Initial.Equal(credit.NewTokens(80)))
	assert.True(t, c1.Confirmed.Redeemed.Equal(credit.NewTokens(50)))
	assert.Equal(t, 2, c1.Confirmed.Count)
	assert.True(t, c1.Total().Equal(credit.NewTokens(180)))

	c2 := byID["c2"]
	assert.True(t, c2.Ordered.Initial.Equal(credit.NewTokens(10)))
	assert.Equal(t, 0, c2.Confirmed.Count)
}

func TestMergeListings_CampaignsWithoutSupports(t *testing.T) {
	// Campaigns with no supports still get a listing, with zero sums.
	campaigns := []*credit.Campaign{
		{ID: "c1", Title: "Spring"},
		{ID: "c2", Title: "Summer"},
	}
	supports := []*credit.Support{
		support("c1", credit.SupportConfirmation, 75, 25),
	}

	listings := credit.MergeListings(campaigns, supports)
	require.Len(t, listings, 2)

	assert.Equal(t, credit.CampaignID("c1"), listings[0].Campaign.ID)
	assert.True(t, listings[0].Tokens.Confirmed.Initial.Equal(credit.NewTokens(75)))

	assert.Equal(t, credit.CampaignID("c2"), listings[1].Campaign.ID)
	assert.True(t, listings[1].Tokens.Total().IsZero())
}
