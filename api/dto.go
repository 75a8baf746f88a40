/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  domain model from the external contract. Lifecycle responses travel
  in a uniform envelope:

    {"data": ..., "code": 200}     success
    {"message": "...", "code": ...} functional no-op
    {"error": "...", "code": ...}   failure

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *DTO: Response payloads placed under "data"

FIELD NAMES:
  Earn and redeem bodies use the historical underscore-prefixed amount
  fields ("_amount", "_tokens") the mobile clients already send.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/microcredit-engine/credit"
	"github.com/warp/microcredit-engine/engine"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// EarnRequest is the body of POST /api/earn/{partnerID}/{campaignID}.
type EarnRequest struct {
	Amount float64 `json:"_amount"`
	Method string  `json:"method"`
	Paid   bool    `json:"paid,omitempty"`
}

// RedeemRequest is the body of POST /api/redeem/{...}/{supportID}.
// SupportID may repeat the path parameter; the path wins.
type RedeemRequest struct {
	Tokens    float64 `json:"_tokens"`
	SupportID string  `json:"support_id,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// EarnDTO reports the outcome of an earn transition.
type EarnDTO struct {
	SupportID string `json:"support_id"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Method    string `json:"method"`
	How       string `json:"how"`
}

// SupportDTO is the full support record shape.
type SupportDTO struct {
	SupportID      string  `json:"support_id"`
	CampaignID     string  `json:"campaign_id"`
	BackerID       string  `json:"backer_id"`
	InitialTokens  float64 `json:"initialTokens"`
	RedeemedTokens float64 `json:"redeemedTokens"`
	ContractIndex  int     `json:"contractIndex"`
	ContractRef    string  `json:"contractRef,omitempty"`
	PaymentID      string  `json:"payment_id,omitempty"`
	Method         string  `json:"method"`
	Status         string  `json:"status"`
	CreatedAt      string  `json:"createdAt"`
	UpdatedAt      string  `json:"updatedAt"`
}

func toSupportDTO(s *credit.Support) SupportDTO {
	return SupportDTO{
		SupportID:      string(s.ID),
		CampaignID:     string(s.CampaignID),
		BackerID:       string(s.BackerID),
		InitialTokens:  s.InitialTokens.Float64(),
		RedeemedTokens: s.RedeemedTokens.Float64(),
		ContractIndex:  s.ContractIndex,
		ContractRef:    s.ContractRef,
		PaymentID:      s.PaymentID,
		Method:         string(s.Method),
		Status:         string(s.Status),
		CreatedAt:      s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      s.UpdatedAt.Format(time.RFC3339),
	}
}

// TransactionDTO is one audit record in transaction listings.
type TransactionDTO struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	PartnerID     string  `json:"partner_id"`
	MemberID      string  `json:"member_id"`
	CampaignID    string  `json:"campaign_id"`
	CampaignTitle string  `json:"campaign_title"`
	LedgerAddress string  `json:"ledger_address,omitempty"`
	SupportID     string  `json:"support_id"`
	ContractIndex int     `json:"contractIndex"`
	Tokens        float64 `json:"tokens"`
	CreatedAt     string  `json:"createdAt"`
}

func toTransactionDTOs(recs []credit.TransactionRecord) []TransactionDTO {
	dtos := make([]TransactionDTO, len(recs))
	for i, r := range recs {
		dtos[i] = TransactionDTO{
			ID:            string(r.ID),
			Type:          string(r.Type),
			PartnerID:     string(r.PartnerID),
			MemberID:      string(r.MemberID),
			CampaignID:    string(r.CampaignID),
			CampaignTitle: r.CampaignTitle,
			LedgerAddress: r.LedgerAddress,
			SupportID:     string(r.SupportID),
			ContractIndex: r.ContractIndex,
			Tokens:        r.Tokens.Float64(),
			CreatedAt:     r.CreatedAt.Format(time.RFC3339),
		}
	}
	return dtos
}

// BadgeDTO is the 12-month rolling pledge aggregate.
type BadgeDTO struct {
	Amount       float64 `json:"amount"`
	Stores       int     `json:"stores"`
	Transactions int     `json:"transactions"`
	Rank         string  `json:"rank,omitempty"`
}

func toBadgeDTO(v *engine.BadgeView) BadgeDTO {
	return BadgeDTO{
		Amount:       v.Amount.Float64(),
		Stores:       v.Stores,
		Transactions: v.Transactions,
		Rank:         v.Rank,
	}
}

// CampaignListingDTO is a campaign with token aggregates merged on.
type CampaignListingDTO struct {
	CampaignID    string  `json:"campaign_id"`
	Title         string  `json:"title"`
	Quantitative  bool    `json:"quantitative"`
	Status        string  `json:"status"`
	LedgerAddress string  `json:"ledger_address,omitempty"`
	RedeemStarts  string  `json:"redeemStarts"`
	RedeemEnds    string  `json:"redeemEnds"`
	ExpiresAt     string  `json:"expiresAt"`
	OrderInitial  float64 `json:"orderInitial"`
	OrderRedeemed float64 `json:"orderRedeemed"`
	ConfInitial   float64 `json:"confirmationInitial"`
	ConfRedeemed  float64 `json:"confirmationRedeemed"`
}

func toCampaignListingDTOs(listings []credit.CampaignListing) []CampaignListingDTO {
	dtos := make([]CampaignListingDTO, len(listings))
	for i, l := range listings {
		dtos[i] = CampaignListingDTO{
			CampaignID:    string(l.Campaign.ID),
			Title:         l.Campaign.Title,
			Quantitative:  l.Campaign.Quantitative,
			Status:        string(l.Campaign.Status),
			LedgerAddress: l.Campaign.LedgerAddress,
			RedeemStarts:  l.Campaign.RedeemStarts.Format(time.RFC3339),
			RedeemEnds:    l.Campaign.RedeemEnds.Format(time.RFC3339),
			ExpiresAt:     l.Campaign.ExpiresAt.Format(time.RFC3339),
			OrderInitial:  l.Tokens.Ordered.Initial.Float64(),
			OrderRedeemed: l.Tokens.Ordered.Redeemed.Float64(),
			ConfInitial:   l.Tokens.Confirmed.Initial.Float64(),
			ConfRedeemed:  l.Tokens.Confirmed.Redeemed.Float64(),
		}
	}
	return dtos
}
