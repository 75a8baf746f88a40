package credit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/microcredit-engine/credit"
)

func TestTokens_Arithmetic(t *testing.T) {
	a := credit.NewTokens(100.5)
	b := credit.NewTokens(40.25)

	assert.True(t, a.Sub(b).Equal(credit.NewTokens(60.25)))
	assert.True(t, a.Add(b).Equal(credit.NewTokens(140.75)))
	assert.True(t, a.GreaterThan(b))
	assert.True(t, b.LessThan(a))
	assert.True(t, credit.ZeroTokens().IsZero())
}

func TestParseTokens_InvalidYieldsZero(t *testing.T) {
	assert.True(t, credit.ParseTokens("not-a-number").IsZero())
	assert.True(t, credit.ParseTokens("").IsZero())
	assert.True(t, credit.ParseTokens("12.5").Equal(credit.NewTokens(12.5)))
}

func TestSupport_TokenInvariant(t *testing.T) {
	// GIVEN: A support with 100 initial tokens
	// WHEN: Redeemed tokens stay within [0, initial]
	// THEN: The invariant check passes; outside it fails

	s := &credit.Support{
		InitialTokens:  credit.NewTokens(100),
		RedeemedTokens: credit.NewTokens(40),
	}
	assert.NoError(t, s.CheckTokenInvariant())
	assert.True(t, s.Remaining().Equal(credit.NewTokens(60)))

	s.RedeemedTokens = credit.NewTokens(100)
	assert.NoError(t, s.CheckTokenInvariant(), "redeemed == initial is allowed")

	s.RedeemedTokens = credit.NewTokens(101)
	assert.Error(t, s.CheckTokenInvariant())

	s.RedeemedTokens = credit.NewTokens(-1)
	assert.Error(t, s.CheckTokenInvariant())
}

func TestSupport_Bridged(t *testing.T) {
	s := &credit.Support{ContractIndex: credit.UnbridgedIndex}
	assert.False(t, s.Bridged())

	s.ContractIndex = 0
	assert.True(t, s.Bridged(), "index 0 is a valid contract")
}

func TestCampaign_RedeemWindow(t *testing.T) {
	start := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	c := &credit.Campaign{
		Status:       credit.CampaignPublished,
		RedeemStarts: start,
		RedeemEnds:   end,
	}

	assert.False(t, c.RedeemWindowOpen(start.Add(-time.Hour)))
	assert.True(t, c.RedeemWindowOpen(start))
	assert.True(t, c.RedeemWindowOpen(start.AddDate(0, 0, 15)))
	assert.True(t, c.RedeemWindowOpen(end))
	assert.False(t, c.RedeemWindowOpen(end.Add(time.Hour)))
}

func TestCampaign_AcceptingSupports(t *testing.T) {
	// Supports may be earned any time before the redeem window closes,
	// but only on a published campaign.
	end := time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)
	c := &credit.Campaign{Status: credit.CampaignDraft, RedeemEnds: end}

	assert.False(t, c.AcceptingSupports(end.Add(-time.Hour)), "draft never accepts")

	c.Status = credit.CampaignPublished
	assert.True(t, c.AcceptingSupports(end.Add(-time.Hour)))
	assert.False(t, c.AcceptingSupports(end))
}

func TestRole_Capabilities(t *testing.T) {
	assert.False(t, credit.RoleMember.CanConfirm())
	assert.False(t, credit.RoleMember.CanEarnFor())
	assert.True(t, credit.RolePartner.CanConfirm())
	assert.True(t, credit.RolePartner.CanEarnFor())
	assert.True(t, credit.RoleAdmin.CanConfirm())
	assert.True(t, credit.RoleAdmin.CanEarnFor())
}
