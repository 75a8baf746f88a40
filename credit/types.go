/*
Package credit provides the core domain model for the microcredit engine.

PURPOSE:
  This package contains the types and pure algorithms shared by every
  other package: campaigns, supports (a single backer's pledge), the
  append-only transaction records that mirror external ledger calls,
  token arithmetic, and the pagination window computation used by all
  list reads.

KEY CONCEPTS IN THIS FILE (types.go):
  - Tokens: A token quantity backed by decimal.Decimal (no float drift)
  - Campaign: A merchant-defined microcredit program
  - Support: One backer's pledge and token balance within a campaign
  - TransactionRecord: Immutable audit entry, one per ledger-bridge call
  - Role: Closed capability enum (member/partner/admin)

DESIGN PRINCIPLES:
  1. Immutability: TransactionRecords are never modified or deleted
  2. Precision: decimal.Decimal for all token math
  3. Type Safety: Strong typing for IDs prevents mixing merchants,
     campaigns, supports and members
  4. Detectability: A support whose bridge call never resolved keeps
     ContractIndex == -1 and is queryable in that state

SEE ALSO:
  - errors.go: Error taxonomy (validation/conflict/persistence/ledger)
  - store.go: Repository interfaces
  - accounting.go: Token aggregation for campaign listings
  - paging.go: Pagination window computation
*/
package credit

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TOKENS - Token quantity (decimal-backed)
// =============================================================================

type Tokens struct {
	Value decimal.Decimal
}

func NewTokens(value float64) Tokens {
	return Tokens{Value: decimal.NewFromFloat(value)}
}

func NewTokensFromInt(value int64) Tokens {
	return Tokens{Value: decimal.NewFromInt(value)}
}

func ZeroTokens() Tokens { return Tokens{Value: decimal.Zero} }

func (t Tokens) Add(o Tokens) Tokens         { return Tokens{Value: t.Value.Add(o.Value)} }
func (t Tokens) Sub(o Tokens) Tokens         { return Tokens{Value: t.Value.Sub(o.Value)} }
func (t Tokens) IsZero() bool                { return t.Value.IsZero() }
func (t Tokens) IsNegative() bool            { return t.Value.IsNegative() }
func (t Tokens) IsPositive() bool            { return t.Value.IsPositive() }
func (t Tokens) GreaterThan(o Tokens) bool   { return t.Value.GreaterThan(o.Value) }
func (t Tokens) LessThan(o Tokens) bool      { return t.Value.LessThan(o.Value) }
func (t Tokens) Equal(o Tokens) bool         { return t.Value.Equal(o.Value) }
func (t Tokens) String() string              { return t.Value.String() }
func (t Tokens) Float64() float64            { f, _ := t.Value.Float64(); return f }

// ParseTokens parses a decimal string. Invalid input yields zero tokens.
func ParseTokens(s string) Tokens {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroTokens()
	}
	return Tokens{Value: d}
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type MerchantID string
type CampaignID string
type SupportID string
type MemberID string
type TransactionID string

// =============================================================================
// ROLE - Closed capability enum
// =============================================================================

// Role replaces ad hoc string comparison on an "access" field with a
// closed set of capabilities checked explicitly.
type Role int

const (
	RoleMember Role = iota
	RolePartner
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleMember:
		return "member"
	case RolePartner:
		return "partner"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// CanConfirm reports whether the role may toggle a support between
// order and confirmation. Only the campaign owner (or an admin) may.
func (r Role) CanConfirm() bool { return r == RolePartner || r == RoleAdmin }

// CanEarnFor reports whether the role may create a support on behalf of
// another member.
func (r Role) CanEarnFor() bool { return r == RolePartner || r == RoleAdmin }

// Actor is a resolved caller identity.
type Actor struct {
	ID   string
	Role Role
}

// =============================================================================
// CAMPAIGN - Merchant-defined microcredit program
// =============================================================================

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignPublished CampaignStatus = "published"
)

// Campaign is immutable once published, except for the status, ledger
// address and transaction hash fields which are set exactly once at
// publication.
type Campaign struct {
	ID         CampaignID
	MerchantID MerchantID
	Title      string

	// Quantitative campaigns track per-support token amounts; a
	// non-quantitative campaign redeems all-or-nothing.
	Quantitative bool

	MinAllowed Tokens // per-support lower bound
	MaxAllowed Tokens // per-support upper bound
	MaxAmount  Tokens // cumulative cap across all supports (quantitative only)

	RedeemStarts time.Time
	RedeemEnds   time.Time
	StartsAt     time.Time
	ExpiresAt    time.Time

	Status        CampaignStatus
	LedgerAddress string // set at publication
	PublishTxHash string // set at publication

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Published reports whether the campaign has been published.
func (c *Campaign) Published() bool { return c.Status == CampaignPublished }

// RedeemWindowOpen reports whether now falls inside [RedeemStarts, RedeemEnds].
func (c *Campaign) RedeemWindowOpen(now time.Time) bool {
	return !now.Before(c.RedeemStarts) && !now.After(c.RedeemEnds)
}

// AcceptingSupports reports whether new supports may still be earned.
// Supports can be earned any time before the redeem window closes.
func (c *Campaign) AcceptingSupports(now time.Time) bool {
	return c.Published() && now.Before(c.RedeemEnds)
}

// =============================================================================
// SUPPORT - One backer's pledge within a campaign
// =============================================================================

type SupportStatus string

const (
	// SupportOrder: pledge recorded, not yet settled by the partner.
	SupportOrder SupportStatus = "order"
	// SupportConfirmation: partner has acknowledged receipt of funds.
	SupportConfirmation SupportStatus = "confirmation"
)

// Method identifies how the backer pays off-chain.
type Method string

const (
	MethodCash     Method = "cash"
	MethodTransfer Method = "transfer"
	MethodCard     Method = "card"
)

// UnbridgedIndex is the ContractIndex of a support whose promise call
// has not (yet) resolved on the external ledger.
const UnbridgedIndex = -1

// Support is a financial record: created by an earn action, mutated by
// confirm/redeem/revert, never physically deleted.
//
// INVARIANTS:
//   - 0 <= RedeemedTokens <= InitialTokens at all times
//   - ContractIndex transitions from -1 to a non-negative value exactly
//     once, when the promise step succeeds on the ledger
type Support struct {
	ID         SupportID
	CampaignID CampaignID
	BackerID   MemberID

	InitialTokens  Tokens
	RedeemedTokens Tokens

	ContractIndex int // -1 until bridged
	ContractRef   string
	PaymentID     string
	Method        Method
	Status        SupportStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Bridged reports whether the ledger promise for this support resolved.
func (s *Support) Bridged() bool { return s.ContractIndex >= 0 }

// Remaining returns the tokens still redeemable on this support.
func (s *Support) Remaining() Tokens { return s.InitialTokens.Sub(s.RedeemedTokens) }

// CheckTokenInvariant verifies 0 <= redeemed <= initial.
func (s *Support) CheckTokenInvariant() error {
	if s.RedeemedTokens.IsNegative() || s.RedeemedTokens.GreaterThan(s.InitialTokens) {
		return &StateConflictError{
			Code:    "token_invariant_violated",
			Message: "redeemed tokens outside [0, initial]",
		}
	}
	return nil
}

// =============================================================================
// TRANSACTION RECORD - Append-only mirror of ledger-bridge calls
// =============================================================================

type TransactionType string

const (
	TxPromiseFund TransactionType = "PromiseFund" // pledge registered on the ledger
	TxReceiveFund TransactionType = "ReceiveFund" // partner acknowledged funds
	TxRevertFund  TransactionType = "RevertFund"  // confirmation rolled back
	TxSpendFund   TransactionType = "SpendFund"   // tokens consumed
)

// LifecycleTypes are the four transaction types produced by the support
// lifecycle. List reads are restricted to these.
var LifecycleTypes = []TransactionType{TxPromiseFund, TxReceiveFund, TxRevertFund, TxSpendFund}

// TransactionRecord is the authoritative audit trail reconciling the
// document store against the external ledger. One record per successful
// bridge call. Never mutated or deleted.
type TransactionRecord struct {
	ID            TransactionID
	Type          TransactionType
	PartnerID     MerchantID
	MemberID      MemberID
	CampaignID    CampaignID
	CampaignTitle string
	LedgerAddress string
	SupportID     SupportID
	ContractIndex int
	Tokens        Tokens
	RawResult     string // raw bridge response, kept verbatim for replay
	CreatedAt     time.Time
}
