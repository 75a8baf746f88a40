/*
Package engine orchestrates the support lifecycle across two systems of
record.

PURPOSE:
  A support (one backer's pledge) moves through earn, confirm, redeem,
  revert and spend. Each transition couples a document-store mutation
  with a call to the external ledger bridge and an append to the
  transaction log, with no shared transaction across the two systems.
  This package owns that sequencing.

ORDERING:
  Each request runs a strict pipeline: validate, repository mutation,
  bridge call, log write. The local mutation is applied before the
  bridge call, so the support row exists the moment the pledge is
  accepted; the bridge result (contract index, ref) is written back only
  after the bridge confirms. A bridge failure after the local write is
  never rolled back: it leaves the support in a detectable inconsistent
  state (ContractIndex == -1, or a missing log entry) and the caller
  gets an error, never a false success. Reconciliation of such supports
  is externally owned; this package only detects them (reconcile.go).

IDEMPOTENT RETRY:
  Bridge calls are not idempotent at the ledger level. Retries are keyed
  on the support ID: an earn retry for an existing support never creates
  a duplicate row, and a support that already carries a contract index
  is never re-promised. The local record, not the ledger, is the
  idempotency key.

SEE ALSO:
  - pipeline.go: The sequential pipeline type
  - reconcile.go: Detection sweep for unbridged supports
  - ../credit: Domain types, repository interfaces
  - ../bridge: Ledger call contract
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/warp/microcredit-engine/bridge"
	"github.com/warp/microcredit-engine/credit"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// AddressBook resolves a member to their ledger address. Member
// profiles are owned elsewhere; the engine only needs the address.
type AddressBook interface {
	AddressOf(ctx context.Context, member credit.MemberID) (string, error)
}

// StaticAddressBook is a fixed member-to-address mapping (for testing/dev).
type StaticAddressBook map[credit.MemberID]string

func (b StaticAddressBook) AddressOf(_ context.Context, member credit.MemberID) (string, error) {
	addr, ok := b[member]
	if !ok {
		return "", fmt.Errorf("no ledger address for member %s", member)
	}
	return addr, nil
}

// BadgeStats is the 12-month rolling aggregate fed to the Ranker.
type BadgeStats struct {
	Amount       credit.Tokens
	Stores       int // distinct partners pledged to
	Transactions int
}

// Ranker maps badge stats to a tier name. The tier scheme is owned by
// the caller.
type Ranker func(BadgeStats) string

// Engine sequences lifecycle transitions. All dependencies are
// injected; there are no process-global collaborators.
type Engine struct {
	Campaigns credit.CampaignStore
	Supports  credit.SupportStore
	Log       credit.TransactionLog
	Bridge    bridge.Bridge
	Sender    bridge.Sender
	Addresses AddressBook
	Ranker    Ranker
	Logger    *zap.Logger

	// Clock is overridable for deterministic tests. Nil means time.Now.
	Clock func() time.Time

	// seq disambiguates generated IDs minted under the same clock reading.
	seq atomic.Uint64
}

func (e *Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

func (e *Engine) log() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

// =============================================================================
// EARN - Create a support and promise funds on the ledger
// =============================================================================

// EarnInput describes an earn request. SupportID is optional: callers
// retrying a failed earn pass the support ID from the first attempt.
type EarnInput struct {
	Partner  credit.MerchantID
	Campaign credit.CampaignID
	Backer   credit.MemberID
	Amount   credit.Tokens
	Method   credit.Method
	Paid     bool // off-chain payment already received; settle immediately

	SupportID credit.SupportID
}

// EarnResult reports what happened. How is "promised" for a fresh
// pledge, "replayed" when the support was already bridged, and
// "confirmed" when a pre-paid earn settled in the same request.
type EarnResult struct {
	Support   *credit.Support
	PaymentID string
	How       string
}

// Earn validates the campaign guards, creates (or finds) the support
// with status order and ContractIndex -1, promises the funds on the
// ledger, writes the contract index back and logs PromiseFund. A paid
// earn continues into confirmation.
//
// Guards: campaign published; now before redeem window close; amount
// within [MinAllowed, MaxAllowed]; cumulative issued tokens within
// MaxAmount for quantitative campaigns.
func (e *Engine) Earn(ctx context.Context, in EarnInput) (*EarnResult, error) {
	if !in.Amount.IsPositive() {
		return nil, &credit.ValidationError{Field: "amount", Message: "must be positive"}
	}
	if in.Backer == "" {
		return nil, &credit.ValidationError{Field: "backer", Message: "required"}
	}

	var (
		campaign   *credit.Campaign
		support    *credit.Support
		backerAddr string
		promise    bridge.Promise
		paymentID  string
		replayed   bool
	)
	now := e.now()

	p := newPipeline()

	p.step("guards", func(ctx context.Context) error {
		var err error
		campaign, err = e.Campaigns.GetCampaign(ctx, in.Partner, in.Campaign)
		if err != nil {
			return err
		}
		if !campaign.Published() {
			return credit.ErrCampaignNotPublished
		}
		if !campaign.AcceptingSupports(now) {
			return &credit.StateConflictError{Code: "campaign_closed", Message: "redeem window has ended"}
		}
		if in.Amount.LessThan(campaign.MinAllowed) || in.Amount.GreaterThan(campaign.MaxAllowed) {
			return &credit.AmountOutOfRangeError{
				CampaignID: campaign.ID,
				Amount:     in.Amount,
				Min:        campaign.MinAllowed,
				Max:        campaign.MaxAllowed,
			}
		}
		if campaign.Quantitative && campaign.MaxAmount.IsPositive() {
			existing, err := e.Supports.ListSupports(ctx, in.Partner, in.Campaign)
			if err != nil {
				return err
			}
			issued := credit.ZeroTokens()
			for _, s := range existing {
				if in.SupportID != "" && s.ID == in.SupportID {
					continue // retry: don't count the first attempt twice
				}
				issued = issued.Add(s.InitialTokens)
			}
			if issued.Add(in.Amount).GreaterThan(campaign.MaxAmount) {
				return &credit.CampaignFullError{
					CampaignID: campaign.ID,
					Issued:     issued,
					Cap:        campaign.MaxAmount,
					Requested:  in.Amount,
				}
			}
		}

		backerAddr, err = e.Addresses.AddressOf(ctx, in.Backer)
		if err != nil {
			return &credit.ValidationError{Field: "backer", Message: err.Error()}
		}
		return nil
	})

	p.step("record", func(ctx context.Context) error {
		if in.SupportID != "" {
			existing, err := e.Supports.GetSupport(ctx, in.Partner, in.Campaign, in.SupportID)
			switch {
			case err == nil:
				// Retry path: never create a duplicate row, and never let
				// the promised amount drift from the persisted one.
				if !existing.InitialTokens.Equal(in.Amount) {
					return &credit.StateConflictError{
						Code:    "retry_amount_mismatch",
						Message: fmt.Sprintf("support %s was created for %s tokens", existing.ID, existing.InitialTokens),
					}
				}
				support = existing
				replayed = existing.Bridged()
				return nil
			case errors.Is(err, credit.ErrSupportNotFound):
				// First attempt with a caller-chosen ID.
			default:
				return err
			}
		}

		id := in.SupportID
		if id == "" {
			id = credit.SupportID(fmt.Sprintf("sup-%d-%d", now.UnixNano(), e.seq.Add(1)))
		}
		support = &credit.Support{
			ID:             id,
			CampaignID:     in.Campaign,
			BackerID:       in.Backer,
			InitialTokens:  in.Amount,
			RedeemedTokens: credit.ZeroTokens(),
			ContractIndex:  credit.UnbridgedIndex,
			Method:         in.Method,
			Status:         credit.SupportOrder,
			CreatedAt:      now,
		}
		return e.Supports.CreateSupport(ctx, in.Partner, support)
	})

	p.step("promise", func(ctx context.Context) error {
		if replayed {
			return nil // already bridged; never re-issue the promise
		}
		var err error
		promise, err = e.Bridge.PromiseToFund(ctx, backerAddr, in.Amount.Value, e.Sender)
		return err
	})

	p.step("write-back", func(ctx context.Context) error {
		if replayed {
			return nil
		}
		paymentID = fmt.Sprintf("pay-%d-%d", now.UnixNano(), e.seq.Add(1))
		var err error
		support, err = e.Supports.UpdateSupport(ctx, in.Partner, in.Campaign, support.ID,
			func(s *credit.Support) error {
				if s.Bridged() {
					// A concurrent retry won the race; keep its result.
					return nil
				}
				s.ContractIndex = promise.Index
				s.ContractRef = promise.Ref
				s.PaymentID = paymentID
				return nil
			})
		return err
	})

	p.step("log", func(ctx context.Context) error {
		if replayed {
			return nil
		}
		return e.appendRecord(ctx, campaign, support, credit.TxPromiseFund, in.Amount, promise.Raw)
	})

	if err := p.run(ctx); err != nil {
		if support != nil && !support.Bridged() {
			e.log().Warn("earn left support unbridged",
				zap.String("support", string(support.ID)),
				zap.String("campaign", string(in.Campaign)),
				zap.Error(err))
		}
		return nil, err
	}

	result := &EarnResult{Support: support, PaymentID: support.PaymentID, How: "promised"}
	if replayed {
		result.How = "replayed"
		return result, nil
	}

	// Pre-paid earns settle in the same request.
	if in.Paid {
		updated, err := e.toggle(ctx, campaign, support)
		if err != nil {
			return nil, err
		}
		result.Support = updated
		result.How = "confirmed"
	}
	return result, nil
}

// =============================================================================
// CONFIRM / REVERT - Toggle settlement state
// =============================================================================

// Confirm toggles a support between order and confirmation. Moving into
// confirmation settles the pledge on the ledger (fundReceived); moving
// back out rolls it back (revertFund). Token balances are untouched in
// both directions.
func (e *Engine) Confirm(ctx context.Context, partner credit.MerchantID, campaignID credit.CampaignID, supportID credit.SupportID) (*credit.Support, error) {
	campaign, err := e.Campaigns.GetCampaign(ctx, partner, campaignID)
	if err != nil {
		return nil, err
	}
	support, err := e.Supports.GetSupport(ctx, partner, campaignID, supportID)
	if err != nil {
		return nil, err
	}
	return e.toggle(ctx, campaign, support)
}

// toggle runs the confirm/revert pipeline for a loaded support.
func (e *Engine) toggle(ctx context.Context, campaign *credit.Campaign, support *credit.Support) (*credit.Support, error) {
	if !support.Bridged() {
		return nil, &credit.StateConflictError{
			Code:    "not_bridged",
			Message: "support has no contract index; promise has not resolved",
		}
	}

	entering := support.Status == credit.SupportOrder // order -> confirmation
	var (
		updated *credit.Support
		receipt bridge.Receipt
	)

	p := newPipeline()

	p.step("flip", func(ctx context.Context) error {
		var err error
		updated, err = e.Supports.UpdateSupport(ctx, campaign.MerchantID, campaign.ID, support.ID,
			func(s *credit.Support) error {
				if entering {
					s.Status = credit.SupportConfirmation
				} else {
					s.Status = credit.SupportOrder
				}
				return nil
			})
		return err
	})

	p.step("bridge", func(ctx context.Context) error {
		var err error
		if entering {
			receipt, err = e.Bridge.FundReceived(ctx, support.ContractIndex, e.Sender)
		} else {
			receipt, err = e.Bridge.RevertFund(ctx, support.ContractIndex, e.Sender)
		}
		return err
	})

	p.step("log", func(ctx context.Context) error {
		txType := credit.TxReceiveFund
		if !entering {
			txType = credit.TxRevertFund
		}
		return e.appendRecord(ctx, campaign, updated, txType, updated.InitialTokens, receipt.Raw)
	})

	if err := p.run(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

// =============================================================================
// REDEEM - Consume tokens and spend on the ledger
// =============================================================================

type RedeemInput struct {
	Partner  credit.MerchantID
	Campaign credit.CampaignID
	Support  credit.SupportID
	Tokens   credit.Tokens // ignored for non-quantitative campaigns
}

type RedeemResult struct {
	Support *credit.Support
	Spent   credit.Tokens
	Ref     string
}

// Redeem increments the support's redeemed tokens and consumes them on
// the ledger. Non-quantitative campaigns redeem the full remaining
// balance in one step.
//
// Guards: redeem window open; support settled (confirmation); requested
// tokens within the remaining balance. The token invariant
// 0 <= redeemed <= initial holds after every transition.
func (e *Engine) Redeem(ctx context.Context, in RedeemInput) (*RedeemResult, error) {
	var (
		campaign   *credit.Campaign
		updated    *credit.Support
		backerAddr string
		spent      credit.Tokens
		receipt    bridge.Receipt
	)
	now := e.now()

	p := newPipeline()

	p.step("guards", func(ctx context.Context) error {
		var err error
		campaign, err = e.Campaigns.GetCampaign(ctx, in.Partner, in.Campaign)
		if err != nil {
			return err
		}
		if !campaign.Published() {
			return credit.ErrCampaignNotPublished
		}
		if !campaign.RedeemWindowOpen(now) {
			return &credit.StateConflictError{Code: "outside_redeem_window", Message: "redeem window is closed"}
		}
		if campaign.Quantitative && !in.Tokens.IsPositive() {
			return &credit.ValidationError{Field: "tokens", Message: "must be positive"}
		}

		// Resolve the spend address up front: once the consume step has
		// committed, every remaining failure must be a ledger failure,
		// not a validation one.
		sup, err := e.Supports.GetSupport(ctx, in.Partner, in.Campaign, in.Support)
		if err != nil {
			return err
		}
		backerAddr, err = e.Addresses.AddressOf(ctx, sup.BackerID)
		if err != nil {
			return &credit.ValidationError{Field: "backer", Message: err.Error()}
		}
		return nil
	})

	p.step("consume", func(ctx context.Context) error {
		var err error
		updated, err = e.Supports.UpdateSupport(ctx, in.Partner, in.Campaign, in.Support,
			func(s *credit.Support) error {
				if s.Status != credit.SupportConfirmation {
					return &credit.StateConflictError{
						Code:    "not_confirmed",
						Message: "support has not been settled by the partner",
					}
				}
				spent = in.Tokens
				if !campaign.Quantitative {
					spent = s.Remaining()
				}
				if spent.GreaterThan(s.Remaining()) {
					return &credit.InsufficientTokensError{
						SupportID: s.ID,
						Remaining: s.Remaining(),
						Requested: spent,
					}
				}
				s.RedeemedTokens = s.RedeemedTokens.Add(spent)
				return s.CheckTokenInvariant()
			})
		return err
	})

	p.step("spend", func(ctx context.Context) error {
		var err error
		if campaign.Quantitative {
			receipt, err = e.Bridge.Spend(ctx, backerAddr, spent.Value, e.Sender)
		} else {
			receipt, err = e.Bridge.SpendAll(ctx, backerAddr, e.Sender)
		}
		return err
	})

	p.step("log", func(ctx context.Context) error {
		return e.appendRecord(ctx, campaign, updated, credit.TxSpendFund, spent, receipt.Raw)
	})

	if err := p.run(ctx); err != nil {
		return nil, err
	}
	return &RedeemResult{Support: updated, Spent: spent, Ref: receipt.Ref}, nil
}

// =============================================================================
// READS - Transaction history, badge, campaign listings
// =============================================================================

// Transactions returns the caller's lifecycle records, newest first,
// windowed by the offset descriptor. Members see records where they are
// the backer; partners see records on their campaigns; admins see all.
func (e *Engine) Transactions(ctx context.Context, actor credit.Actor, offset string) ([]credit.TransactionRecord, error) {
	f := credit.TransactionFilter{
		Types: credit.LifecycleTypes,
		Page:  credit.ParsePageAt(offset, e.now()),
	}
	switch actor.Role {
	case credit.RoleMember:
		f.Member = credit.MemberID(actor.ID)
	case credit.RolePartner:
		f.Partner = credit.MerchantID(actor.ID)
	case credit.RoleAdmin:
		// unfiltered
	}
	return e.Log.Query(ctx, f)
}

// BadgeView is the 12-month rolling pledge aggregate with its tier.
type BadgeView struct {
	Amount       credit.Tokens
	Stores       int
	Transactions int
	Rank         string
}

// Badge aggregates the member's PromiseFund records over the trailing
// twelve months and maps them through the injected Ranker.
func (e *Engine) Badge(ctx context.Context, member credit.MemberID) (*BadgeView, error) {
	since := e.now().AddDate(-1, 0, 0)
	recs, err := e.Log.Query(ctx, credit.TransactionFilter{
		Member: member,
		Types:  []credit.TransactionType{credit.TxPromiseFund},
		Since:  since,
		Page:   credit.Everything(),
	})
	if err != nil {
		return nil, err
	}

	stats := BadgeStats{Amount: credit.ZeroTokens()}
	partners := make(map[credit.MerchantID]bool)
	for _, rec := range recs {
		stats.Amount = stats.Amount.Add(rec.Tokens)
		stats.Transactions++
		partners[rec.PartnerID] = true
	}
	stats.Stores = len(partners)

	view := &BadgeView{
		Amount:       stats.Amount,
		Stores:       stats.Stores,
		Transactions: stats.Transactions,
	}
	if e.Ranker != nil {
		view.Rank = e.Ranker(stats)
	}
	return view, nil
}

// CampaignListings returns the merchant's campaigns with token
// aggregates merged on, windowed by the offset descriptor.
func (e *Engine) CampaignListings(ctx context.Context, merchant credit.MerchantID, offset string) ([]credit.CampaignListing, error) {
	page := credit.ParsePageAt(offset, e.now())
	campaigns, err := e.Campaigns.ListCampaigns(ctx, merchant, page)
	if err != nil {
		return nil, err
	}
	supports, err := e.Supports.ListSupportsByMerchant(ctx, merchant)
	if err != nil {
		return nil, err
	}
	return credit.MergeListings(campaigns, supports), nil
}

// =============================================================================
// HELPERS
// =============================================================================

// appendRecord writes one audit record for a successful bridge call.
// Promise records carry a deterministic ID so a replayed earn cannot
// double-log; a duplicate append is treated as already recorded.
func (e *Engine) appendRecord(ctx context.Context, campaign *credit.Campaign, s *credit.Support, txType credit.TransactionType, tokens credit.Tokens, raw string) error {
	now := e.now()
	var id credit.TransactionID
	if txType == credit.TxPromiseFund {
		id = credit.TransactionID(fmt.Sprintf("%s-promise", s.ID))
	} else {
		id = credit.TransactionID(fmt.Sprintf("%s-%s-%d", s.ID, txType, now.UnixNano()))
	}

	err := e.Log.Append(ctx, credit.TransactionRecord{
		ID:            id,
		Type:          txType,
		PartnerID:     campaign.MerchantID,
		MemberID:      s.BackerID,
		CampaignID:    campaign.ID,
		CampaignTitle: campaign.Title,
		LedgerAddress: campaign.LedgerAddress,
		SupportID:     s.ID,
		ContractIndex: s.ContractIndex,
		Tokens:        tokens,
		RawResult:     raw,
		CreatedAt:     now,
	})
	if errors.Is(err, credit.ErrDuplicateTransaction) {
		return nil
	}
	return err
}
