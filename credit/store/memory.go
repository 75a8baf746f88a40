// Package store provides in-memory implementations of the credit
// repository interfaces (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/microcredit-engine/credit"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements credit.CampaignStore, credit.SupportStore and
// credit.TransactionLog. A single mutex covers all maps: support
// updates on the same composite key are serialized, which satisfies the
// no-lost-update contract.
type Memory struct {
	mu        sync.RWMutex
	campaigns map[campaignKey]*credit.Campaign
	supports  map[supportKey]*credit.Support
	log       []credit.TransactionRecord
	logIDs    map[credit.TransactionID]bool
}

type campaignKey struct {
	Merchant credit.MerchantID
	Campaign credit.CampaignID
}

type supportKey struct {
	Merchant credit.MerchantID
	Campaign credit.CampaignID
	Support  credit.SupportID
}

func NewMemory() *Memory {
	return &Memory{
		campaigns: make(map[campaignKey]*credit.Campaign),
		supports:  make(map[supportKey]*credit.Support),
		logIDs:    make(map[credit.TransactionID]bool),
	}
}

// =============================================================================
// CAMPAIGN STORE
// =============================================================================

func (m *Memory) SaveCampaign(_ context.Context, c *credit.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := campaignKey{Merchant: c.MerchantID, Campaign: c.ID}
	if existing, ok := m.campaigns[k]; ok && existing.Published() {
		return credit.ErrCampaignImmutable
	}
	cp := *c
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = time.Now()
	m.campaigns[k] = &cp
	return nil
}

func (m *Memory) GetCampaign(_ context.Context, merchantID credit.MerchantID, campaignID credit.CampaignID) (*credit.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.campaigns[campaignKey{Merchant: merchantID, Campaign: campaignID}]
	if !ok {
		return nil, credit.ErrCampaignNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) ListCampaigns(_ context.Context, merchantID credit.MerchantID, page credit.Page) ([]*credit.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*credit.Campaign
	for k, c := range m.campaigns {
		if k.Merchant != merchantID {
			continue
		}
		if page.Greater > 0 && c.ExpiresAt.UnixMilli() <= page.Greater {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	from, to := page.Window(len(out))
	return out[from:to], nil
}

func (m *Memory) PublishCampaign(_ context.Context, merchantID credit.MerchantID, campaignID credit.CampaignID, ledgerAddress, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := campaignKey{Merchant: merchantID, Campaign: campaignID}
	c, ok := m.campaigns[k]
	if !ok {
		return credit.ErrCampaignNotFound
	}
	if c.Published() {
		return credit.ErrCampaignImmutable
	}
	c.Status = credit.CampaignPublished
	c.LedgerAddress = ledgerAddress
	c.PublishTxHash = txHash
	c.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) RemoveCampaign(_ context.Context, merchantID credit.MerchantID, campaignID credit.CampaignID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := campaignKey{Merchant: merchantID, Campaign: campaignID}
	c, ok := m.campaigns[k]
	if !ok {
		return credit.ErrCampaignNotFound
	}
	if c.Published() {
		return credit.ErrCampaignImmutable
	}
	delete(m.campaigns, k)
	return nil
}

// =============================================================================
// SUPPORT STORE
// =============================================================================

func (m *Memory) CreateSupport(_ context.Context, merchantID credit.MerchantID, s *credit.Support) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := supportKey{Merchant: merchantID, Campaign: s.CampaignID, Support: s.ID}
	if _, ok := m.supports[k]; ok {
		return credit.ErrDuplicateSupport
	}
	cp := *s
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = cp.CreatedAt
	m.supports[k] = &cp
	return nil
}

func (m *Memory) GetSupport(_ context.Context, merchantID credit.MerchantID, campaignID credit.CampaignID, supportID credit.SupportID) (*credit.Support, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.supports[supportKey{Merchant: merchantID, Campaign: campaignID, Support: supportID}]
	if !ok {
		return nil, credit.ErrSupportNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) UpdateSupport(_ context.Context, merchantID credit.MerchantID, campaignID credit.CampaignID, supportID credit.SupportID, mutate credit.SupportMutation) (*credit.Support, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := supportKey{Merchant: merchantID, Campaign: campaignID, Support: supportID}
	s, ok := m.supports[k]
	if !ok {
		return nil, credit.ErrSupportNotFound
	}

	// Mutate a copy; only commit if the mutation succeeds.
	cp := *s
	if err := mutate(&cp); err != nil {
		return nil, err
	}
	cp.UpdatedAt = time.Now()
	m.supports[k] = &cp

	out := cp
	return &out, nil
}

func (m *Memory) ListSupports(_ context.Context, merchantID credit.MerchantID, campaignID credit.CampaignID) ([]*credit.Support, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*credit.Support
	for k, s := range m.supports {
		if k.Merchant != merchantID || k.Campaign != campaignID {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sortSupports(out)
	return out, nil
}

func (m *Memory) ListSupportsByMerchant(_ context.Context, merchantID credit.MerchantID) ([]*credit.Support, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*credit.Support
	for k, s := range m.supports {
		if k.Merchant != merchantID {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sortSupports(out)
	return out, nil
}

func (m *Memory) ListUnbridged(_ context.Context, olderThan time.Time) ([]*credit.Support, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*credit.Support
	for _, s := range m.supports {
		if s.Bridged() || !s.CreatedAt.Before(olderThan) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sortSupports(out)
	return out, nil
}

func sortSupports(ss []*credit.Support) {
	sort.Slice(ss, func(i, j int) bool {
		if ss[i].CreatedAt.Equal(ss[j].CreatedAt) {
			return ss[i].ID < ss[j].ID
		}
		return ss[i].CreatedAt.Before(ss[j].CreatedAt)
	})
}

// =============================================================================
// TRANSACTION LOG
// =============================================================================

func (m *Memory) Append(_ context.Context, rec credit.TransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.logIDs[rec.ID] {
		return credit.ErrDuplicateTransaction
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.log = append(m.log, rec)
	m.logIDs[rec.ID] = true
	return nil
}

func (m *Memory) Query(_ context.Context, f credit.TransactionFilter) ([]credit.TransactionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []credit.TransactionRecord
	for _, rec := range m.log {
		if !matches(rec, f) {
			continue
		}
		out = append(out, rec)
	}
	// Newest first.
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	from, to := f.Page.Window(len(out))
	return out[from:to], nil
}

func matches(rec credit.TransactionRecord, f credit.TransactionFilter) bool {
	if f.Member != "" || f.Partner != "" {
		// Caller must appear on either side.
		asMember := f.Member != "" && rec.MemberID == f.Member
		asPartner := f.Partner != "" && rec.PartnerID == f.Partner
		if !asMember && !asPartner {
			return false
		}
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if rec.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.Since.IsZero() && rec.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}
