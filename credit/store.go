/*
store.go - Repository interfaces for the two systems of record

PURPOSE:
  Defines the boundary between the lifecycle engine and persistence.
  Three interfaces cover the document store side:

  CampaignStore:  Campaign records (mutable only while draft)
  SupportStore:   Support records nested under campaigns, with atomic
                  compound-key updates
  TransactionLog: Append-only mirror of every ledger-bridge call

ATOMICITY CONTRACT:
  UpdateSupport applies a mutation to the record identified by the
  composite (merchant, campaign, support) triple atomically with respect
  to other updates on the same triple. Concurrent increments of
  RedeemedTokens must not lose updates. Mutations on different supports
  proceed independently.

APPEND-ONLY CONTRACT:
  TransactionLog has no update or delete operation. Records are the
  authoritative audit trail reconciling the document store against the
  external ledger.

IMPLEMENTATIONS:
  - store/sqlite: production store (sqlx over SQLite, WAL)
  - credit/store: in-memory store for tests and dev

SEE ALSO:
  - types.go: Record shapes
  - ../engine: The only writer of supports and transaction records
*/
package credit

import (
	"context"
	"time"
)

// =============================================================================
// CAMPAIGN STORE
// =============================================================================

type CampaignStore interface {
	// SaveCampaign inserts a draft or updates an existing draft.
	// Returns ErrCampaignImmutable for published campaigns.
	SaveCampaign(ctx context.Context, c *Campaign) error

	// GetCampaign returns the campaign or ErrCampaignNotFound.
	GetCampaign(ctx context.Context, merchantID MerchantID, campaignID CampaignID) (*Campaign, error)

	// ListCampaigns returns campaigns for a merchant, newest first,
	// windowed by page. A Greater cutoff filters campaigns whose
	// ExpiresAt is already past.
	ListCampaigns(ctx context.Context, merchantID MerchantID, page Page) ([]*Campaign, error)

	// PublishCampaign flips a draft to published and records the ledger
	// address and publication transaction hash. These fields are set
	// exactly once; publishing a published campaign is ErrCampaignImmutable.
	PublishCampaign(ctx context.Context, merchantID MerchantID, campaignID CampaignID, ledgerAddress, txHash string) error

	// RemoveCampaign deletes a campaign that is still draft.
	// Published campaigns are financial records and cannot be removed.
	RemoveCampaign(ctx context.Context, merchantID MerchantID, campaignID CampaignID) error
}

// =============================================================================
// SUPPORT STORE
// =============================================================================

// SupportMutation edits a support in place. Returning an error aborts
// the update and leaves the record untouched.
type SupportMutation func(*Support) error

type SupportStore interface {
	// CreateSupport inserts a new support under (merchant, campaign).
	// Returns ErrDuplicateSupport if the ID already exists there.
	CreateSupport(ctx context.Context, merchantID MerchantID, s *Support) error

	// GetSupport returns the support identified by the composite triple,
	// or ErrSupportNotFound.
	GetSupport(ctx context.Context, merchantID MerchantID, campaignID CampaignID, supportID SupportID) (*Support, error)

	// UpdateSupport atomically applies mutate to the support identified
	// by the composite triple. No lost updates on the same triple.
	UpdateSupport(ctx context.Context, merchantID MerchantID, campaignID CampaignID, supportID SupportID, mutate SupportMutation) (*Support, error)

	// ListSupports returns all supports of a campaign, oldest first.
	ListSupports(ctx context.Context, merchantID MerchantID, campaignID CampaignID) ([]*Support, error)

	// ListSupportsByMerchant returns every support across the merchant's
	// campaigns. Feeds the token aggregation read path.
	ListSupportsByMerchant(ctx context.Context, merchantID MerchantID) ([]*Support, error)

	// ListUnbridged returns supports still at ContractIndex == -1
	// created before the cutoff. Feeds the reconciliation sweep.
	ListUnbridged(ctx context.Context, olderThan time.Time) ([]*Support, error)
}

// =============================================================================
// TRANSACTION LOG
// =============================================================================

// TransactionFilter selects records for list reads. Zero values match
// everything; Member and Partner are OR'd when both are set (a caller
// sees rows where they appear on either side).
type TransactionFilter struct {
	Member  MemberID
	Partner MerchantID
	Types   []TransactionType
	Since   time.Time
	Page    Page
}

type TransactionLog interface {
	// Append adds a record. The log is append-only: no update, no
	// delete. Duplicate IDs return ErrDuplicateTransaction.
	Append(ctx context.Context, rec TransactionRecord) error

	// Query returns matching records, newest first, windowed by the
	// filter's page.
	Query(ctx context.Context, f TransactionFilter) ([]TransactionRecord, error)
}
