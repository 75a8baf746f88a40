/*
accounting.go - Token aggregation for campaign reporting

PURPOSE:
  Pure functions computing aggregate initial/redeemed token sums per
  campaign from raw support records, split by support status. Used only
  for reporting on campaign listings.

NOT A SOURCE OF TRUTH:
  Balance checks during redemption read the specific support record,
  never these aggregates. Aggregates lag and must not gate transitions.
*/
package credit

// TokenAggregate sums token columns for one status subset of a campaign.
type TokenAggregate struct {
	Initial  Tokens
	Redeemed Tokens
	Count    int
}

func (a TokenAggregate) add(s *Support) TokenAggregate {
	return TokenAggregate{
		Initial:  a.Initial.Add(s.InitialTokens),
		Redeemed: a.Redeemed.Add(s.RedeemedTokens),
		Count:    a.Count + 1,
	}
}

// CampaignTokens carries both status subsets for one campaign.
type CampaignTokens struct {
	CampaignID CampaignID
	Ordered    TokenAggregate // status == order
	Confirmed  TokenAggregate // status == confirmation
}

// Total returns initial tokens across both subsets.
func (c CampaignTokens) Total() Tokens {
	return c.Ordered.Initial.Add(c.Confirmed.Initial)
}

// AggregateTokens folds raw support records into per-campaign sums,
// keyed by campaign ID.
func AggregateTokens(supports []*Support) map[CampaignID]CampaignTokens {
	out := make(map[CampaignID]CampaignTokens)
	for _, s := range supports {
		agg, ok := out[s.CampaignID]
		if !ok {
			agg = CampaignTokens{
				CampaignID: s.CampaignID,
				Ordered:    TokenAggregate{Initial: ZeroTokens(), Redeemed: ZeroTokens()},
				Confirmed:  TokenAggregate{Initial: ZeroTokens(), Redeemed: ZeroTokens()},
			}
		}
		switch s.Status {
		case SupportConfirmation:
			agg.Confirmed = agg.Confirmed.add(s)
		default:
			agg.Ordered = agg.Ordered.add(s)
		}
		out[s.CampaignID] = agg
	}
	return out
}

// CampaignListing is a campaign with its token aggregates merged on,
// the shape returned by campaign list reads.
type CampaignListing struct {
	Campaign *Campaign
	Tokens   CampaignTokens
}

// MergeListings attaches aggregates to each campaign by ID. Campaigns
// with no supports get zero aggregates.
func MergeListings(campaigns []*Campaign, supports []*Support) []CampaignListing {
	byID := AggregateTokens(supports)
	out := make([]CampaignListing, 0, len(campaigns))
	for _, c := range campaigns {
		agg, ok := byID[c.ID]
		if !ok {
			agg = CampaignTokens{
				CampaignID: c.ID,
				Ordered:    TokenAggregate{Initial: ZeroTokens(), Redeemed: ZeroTokens()},
				Confirmed:  TokenAggregate{Initial: ZeroTokens(), Redeemed: ZeroTokens()},
			}
		}
		out = append(out, CampaignListing{Campaign: c, Tokens: agg})
	}
	return out
}
