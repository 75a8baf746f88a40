/*
Package sqlite provides the SQLite-backed document store.

PURPOSE:
  Implements credit.CampaignStore, credit.SupportStore and
  credit.TransactionLog on SQLite via sqlx. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  campaigns:           Merchant campaigns (mutable only while draft)
  supports:            Backer pledges, keyed by the composite
                       (merchant_id, campaign_id, id) triple
  ledger_transactions: Append-only mirror of every bridge call

ATOMIC COMPOUND UPDATES:
  UpdateSupport runs read-mutate-write inside a database transaction
  against the composite key, serialized by the store's write mutex.
  Concurrent redeems on the same support cannot lose increments;
  updates on different supports do not interfere beyond the brief
  write lock.

APPEND-ONLY ENFORCEMENT:
  The ledger_transactions table has no UPDATE and no DELETE statement
  anywhere in this package. The log is the audit trail reconciling the
  document store against the external ledger.

WAL MODE:
  Opened with WAL for better concurrency: readers don't block, single
  writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/microcredit.db")
  if err != nil { ... }
  defer store.Close()

SEE ALSO:
  - credit/store.go: Interface contracts
  - credit/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/microcredit-engine/credit"
)

// Store implements the three credit repository interfaces on SQLite.
type Store struct {
	db *sqlx.DB
	mu sync.Mutex // serializes writers; SQLite allows one at a time
}

// New opens (or creates) the database at dbPath and migrates the
// schema. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite allows a single writer, and ":memory:"
	// databases exist per connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS campaigns (
		id TEXT NOT NULL,
		merchant_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		quantitative INTEGER NOT NULL DEFAULT 0,
		min_allowed TEXT NOT NULL,
		max_allowed TEXT NOT NULL,
		max_amount TEXT NOT NULL,
		redeem_starts TEXT NOT NULL,
		redeem_ends TEXT NOT NULL,
		starts_at TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		status TEXT NOT NULL,
		ledger_address TEXT NOT NULL DEFAULT '',
		publish_tx_hash TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (merchant_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_campaigns_merchant_created
		ON campaigns(merchant_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS supports (
		id TEXT NOT NULL,
		merchant_id TEXT NOT NULL,
		campaign_id TEXT NOT NULL,
		backer_id TEXT NOT NULL,
		initial_tokens TEXT NOT NULL,
		redeemed_tokens TEXT NOT NULL,
		contract_index INTEGER NOT NULL DEFAULT -1,
		contract_ref TEXT NOT NULL DEFAULT '',
		payment_id TEXT NOT NULL DEFAULT '',
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (merchant_id, campaign_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_supports_merchant
		ON supports(merchant_id, created_at);

	-- Reconciliation sweep: supports stuck without a contract index
	CREATE INDEX IF NOT EXISTS idx_supports_unbridged
		ON supports(contract_index, created_at)
		WHERE contract_index = -1;

	-- Append-only: no UPDATE or DELETE is ever issued on this table
	CREATE TABLE IF NOT EXISTS ledger_transactions (
		id TEXT PRIMARY KEY,
		tx_type TEXT NOT NULL,
		partner_id TEXT NOT NULL,
		member_id TEXT NOT NULL,
		campaign_id TEXT NOT NULL,
		campaign_title TEXT NOT NULL DEFAULT '',
		ledger_address TEXT NOT NULL DEFAULT '',
		support_id TEXT NOT NULL,
		contract_index INTEGER NOT NULL,
		tokens TEXT NOT NULL,
		raw_result TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_tx_member
		ON ledger_transactions(member_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_ledger_tx_partner
		ON ledger_transactions(partner_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_ledger_tx_type
		ON ledger_transactions(tx_type);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ROW TYPES
// =============================================================================

type campaignRow struct {
	ID            string `db:"id"`
	MerchantID    string `db:"merchant_id"`
	Title         string `db:"title"`
	Quantitative  bool   `db:"quantitative"`
	MinAllowed    string `db:"min_allowed"`
	MaxAllowed    string `db:"max_allowed"`
	MaxAmount     string `db:"max_amount"`
	RedeemStarts  string `db:"redeem_starts"`
	RedeemEnds    string `db:"redeem_ends"`
	StartsAt      string `db:"starts_at"`
	ExpiresAt     string `db:"expires_at"`
	Status        string `db:"status"`
	LedgerAddress string `db:"ledger_address"`
	PublishTxHash string `db:"publish_tx_hash"`
	CreatedAt     string `db:"created_at"`
	UpdatedAt     string `db:"updated_at"`
}

func (r campaignRow) domain() *credit.Campaign {
	return &credit.Campaign{
		ID:            credit.CampaignID(r.ID),
		MerchantID:    credit.MerchantID(r.MerchantID),
		Title:         r.Title,
		Quantitative:  r.Quantitative,
		MinAllowed:    credit.ParseTokens(r.MinAllowed),
		MaxAllowed:    credit.ParseTokens(r.MaxAllowed),
		MaxAmount:     credit.ParseTokens(r.MaxAmount),
		RedeemStarts:  parseTime(r.RedeemStarts),
		RedeemEnds:    parseTime(r.RedeemEnds),
		StartsAt:      parseTime(r.StartsAt),
		ExpiresAt:     parseTime(r.ExpiresAt),
		Status:        credit.CampaignStatus(r.Status),
		LedgerAddress: r.LedgerAddress,
		PublishTxHash: r.PublishTxHash,
		CreatedAt:     parseTime(r.CreatedAt),
		UpdatedAt:     parseTime(r.UpdatedAt),
	}
}

type supportRow struct {
	ID             string `db:"id"`
	MerchantID     string `db:"merchant_id"`
	CampaignID     string `db:"campaign_id"`
	BackerID       string `db:"backer_id"`
	InitialTokens  string `db:"initial_tokens"`
	RedeemedTokens string `db:"redeemed_tokens"`
	ContractIndex  int    `db:"contract_index"`
	ContractRef    string `db:"contract_ref"`
	PaymentID      string `db:"payment_id"`
	Method         string `db:"method"`
	Status         string `db:"status"`
	CreatedAt      string `db:"created_at"`
	UpdatedAt      string `db:"updated_at"`
}

func (r supportRow) domain() *credit.Support {
	return &credit.Support{
		ID:             credit.SupportID(r.ID),
		CampaignID:     credit.CampaignID(r.CampaignID),
		BackerID:       credit.MemberID(r.BackerID),
		InitialTokens:  credit.ParseTokens(r.InitialTokens),
		RedeemedTokens: credit.ParseTokens(r.RedeemedTokens),
		ContractIndex:  r.ContractIndex,
		ContractRef:    r.ContractRef,
		PaymentID:      r.PaymentID,
		Method:         credit.Method(r.Method),
		Status:         credit.SupportStatus(r.Status),
		CreatedAt:      parseTime(r.CreatedAt),
		UpdatedAt:      parseTime(r.UpdatedAt),
	}
}

type transactionRow struct {
	ID            string `db:"id"`
	TxType        string `db:"tx_type"`
	PartnerID     string `db:"partner_id"`
	MemberID      string `db:"member_id"`
	CampaignID    string `db:"campaign_id"`
	CampaignTitle string `db:"campaign_title"`
	LedgerAddress string `db:"ledger_address"`
	SupportID     string `db:"support_id"`
	ContractIndex int    `db:"contract_index"`
	Tokens        string `db:"tokens"`
	RawResult     string `db:"raw_result"`
	CreatedAt     string `db:"created_at"`
}

func (r transactionRow) domain() credit.TransactionRecord {
	return credit.TransactionRecord{
		ID:            credit.TransactionID(r.ID),
		Type:          credit.TransactionType(r.TxType),
		PartnerID:     credit.MerchantID(r.PartnerID),
		MemberID:      credit.MemberID(r.MemberID),
		CampaignID:    credit.CampaignID(r.CampaignID),
		CampaignTitle: r.CampaignTitle,
		LedgerAddress: r.LedgerAddress,
		SupportID:     credit.SupportID(r.SupportID),
		ContractIndex: r.ContractIndex,
		Tokens:        credit.ParseTokens(r.Tokens),
		RawResult:     r.RawResult,
		CreatedAt:     parseTime(r.CreatedAt),
	}
}

// =============================================================================
// CAMPAIGN STORE (credit.CampaignStore interface)
// =============================================================================

func (s *Store) SaveCampaign(ctx context.Context, c *credit.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.getCampaignRow(ctx, string(c.MerchantID), string(c.ID))
	if err != nil && !errors.Is(err, credit.ErrCampaignNotFound) {
		return err
	}
	if existing != nil && existing.Status == string(credit.CampaignPublished) {
		return credit.ErrCampaignImmutable
	}

	now := time.Now().UTC()
	createdAt := now
	if existing != nil {
		createdAt = parseTime(existing.CreatedAt)
	} else if !c.CreatedAt.IsZero() {
		createdAt = c.CreatedAt
	}

	query := `
		INSERT INTO campaigns
		(id, merchant_id, title, quantitative, min_allowed, max_allowed, max_amount,
		 redeem_starts, redeem_ends, starts_at, expires_at, status,
		 ledger_address, publish_tx_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (merchant_id, id) DO UPDATE SET
			title = excluded.title,
			quantitative = excluded.quantitative,
			min_allowed = excluded.min_allowed,
			max_allowed = excluded.max_allowed,
			max_amount = excluded.max_amount,
			redeem_starts = excluded.redeem_starts,
			redeem_ends = excluded.redeem_ends,
			starts_at = excluded.starts_at,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		c.ID, c.MerchantID, c.Title, c.Quantitative,
		c.MinAllowed.String(), c.MaxAllowed.String(), c.MaxAmount.String(),
		formatTime(c.RedeemStarts), formatTime(c.RedeemEnds),
		formatTime(c.StartsAt), formatTime(c.ExpiresAt),
		string(credit.CampaignDraft), "", "",
		formatTime(createdAt), formatTime(now),
	)
	if err != nil {
		return &credit.PersistenceError{Op: "SaveCampaign", Err: err}
	}
	return nil
}

func (s *Store) GetCampaign(ctx context.Context, merchantID credit.MerchantID, campaignID credit.CampaignID) (*credit.Campaign, error) {
	row, err := s.getCampaignRow(ctx, string(merchantID), string(campaignID))
	if err != nil {
		return nil, err
	}
	return row.domain(), nil
}

func (s *Store) getCampaignRow(ctx context.Context, merchantID, campaignID string) (*campaignRow, error) {
	var row campaignRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM campaigns WHERE merchant_id = ? AND id = ?`,
		merchantID, campaignID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, credit.ErrCampaignNotFound
	}
	if err != nil {
		return nil, &credit.PersistenceError{Op: "GetCampaign", Err: err}
	}
	return &row, nil
}

func (s *Store) ListCampaigns(ctx context.Context, merchantID credit.MerchantID, page credit.Page) ([]*credit.Campaign, error) {
	query := `SELECT * FROM campaigns WHERE merchant_id = ?`
	args := []any{string(merchantID)}

	if page.Greater > 0 {
		query += ` AND expires_at > ?`
		args = append(args, formatTime(time.UnixMilli(page.Greater).UTC()))
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	query, args = applyWindow(query, args, page)

	var rows []campaignRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, &credit.PersistenceError{Op: "ListCampaigns", Err: err}
	}

	out := make([]*credit.Campaign, len(rows))
	for i, r := range rows {
		out[i] = r.domain()
	}
	return out, nil
}

func (s *Store) PublishCampaign(ctx context.Context, merchantID credit.MerchantID, campaignID credit.CampaignID, ledgerAddress, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// status/address/tx-hash are set exactly once: the WHERE clause only
	// matches drafts, so a second publish updates nothing.
	res, err := s.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = ?, ledger_address = ?, publish_tx_hash = ?, updated_at = ?
		WHERE merchant_id = ? AND id = ? AND status = ?`,
		string(credit.CampaignPublished), ledgerAddress, txHash,
		formatTime(time.Now().UTC()),
		string(merchantID), string(campaignID), string(credit.CampaignDraft),
	)
	if err != nil {
		return &credit.PersistenceError{Op: "PublishCampaign", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &credit.PersistenceError{Op: "PublishCampaign", Err: err}
	}
	if n == 0 {
		if _, err := s.getCampaignRow(ctx, string(merchantID), string(campaignID)); err != nil {
			return err
		}
		return credit.ErrCampaignImmutable
	}
	return nil
}

func (s *Store) RemoveCampaign(ctx context.Context, merchantID credit.MerchantID, campaignID credit.CampaignID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Only drafts may be removed; published campaigns are financial records.
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM campaigns
		WHERE merchant_id = ? AND id = ? AND status = ?`,
		string(merchantID), string(campaignID), string(credit.CampaignDraft),
	)
	if err != nil {
		return &credit.PersistenceError{Op: "RemoveCampaign", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &credit.PersistenceError{Op: "RemoveCampaign", Err: err}
	}
	if n == 0 {
		if _, err := s.getCampaignRow(ctx, string(merchantID), string(campaignID)); err != nil {
			return err
		}
		return credit.ErrCampaignImmutable
	}
	return nil
}

// =============================================================================
// SUPPORT STORE (credit.SupportStore interface)
// =============================================================================

func (s *Store) CreateSupport(ctx context.Context, merchantID credit.MerchantID, sup *credit.Support) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := sup.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO supports
		(id, merchant_id, campaign_id, backer_id, initial_tokens, redeemed_tokens,
		 contract_index, contract_ref, payment_id, method, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sup.ID, merchantID, sup.CampaignID, sup.BackerID,
		sup.InitialTokens.String(), sup.RedeemedTokens.String(),
		sup.ContractIndex, sup.ContractRef, sup.PaymentID,
		sup.Method, sup.Status,
		formatTime(createdAt), formatTime(createdAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return credit.ErrDuplicateSupport
		}
		return &credit.PersistenceError{Op: "CreateSupport", Err: err}
	}
	return nil
}

func (s *Store) GetSupport(ctx context.Context, merchantID credit.MerchantID, campaignID credit.CampaignID, supportID credit.SupportID) (*credit.Support, error) {
	var row supportRow
	err := s.db.GetContext(ctx, &row, `
		SELECT * FROM supports
		WHERE merchant_id = ? AND campaign_id = ? AND id = ?`,
		merchantID, campaignID, supportID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, credit.ErrSupportNotFound
	}
	if err != nil {
		return nil, &credit.PersistenceError{Op: "GetSupport", Err: err}
	}
	return row.domain(), nil
}

// UpdateSupport applies mutate inside a database transaction keyed on
// the composite triple. The write mutex plus the transactional
// read-mutate-write guarantees no lost updates on the same support.
func (s *Store) UpdateSupport(ctx context.Context, merchantID credit.MerchantID, campaignID credit.CampaignID, supportID credit.SupportID, mutate credit.SupportMutation) (*credit.Support, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, &credit.PersistenceError{Op: "UpdateSupport", Err: err}
	}
	defer tx.Rollback()

	var row supportRow
	err = tx.GetContext(ctx, &row, `
		SELECT * FROM supports
		WHERE merchant_id = ? AND campaign_id = ? AND id = ?`,
		merchantID, campaignID, supportID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, credit.ErrSupportNotFound
	}
	if err != nil {
		return nil, &credit.PersistenceError{Op: "UpdateSupport", Err: err}
	}

	sup := row.domain()
	if err := mutate(sup); err != nil {
		return nil, err
	}
	sup.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE supports
		SET initial_tokens = ?, redeemed_tokens = ?, contract_index = ?,
		    contract_ref = ?, payment_id = ?, method = ?, status = ?, updated_at = ?
		WHERE merchant_id = ? AND campaign_id = ? AND id = ?`,
		sup.InitialTokens.String(), sup.RedeemedTokens.String(), sup.ContractIndex,
		sup.ContractRef, sup.PaymentID, sup.Method, sup.Status,
		formatTime(sup.UpdatedAt),
		merchantID, campaignID, supportID,
	)
	if err != nil {
		return nil, &credit.PersistenceError{Op: "UpdateSupport", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return nil, &credit.PersistenceError{Op: "UpdateSupport", Err: err}
	}
	return sup, nil
}

func (s *Store) ListSupports(ctx context.Context, merchantID credit.MerchantID, campaignID credit.CampaignID) ([]*credit.Support, error) {
	var rows []supportRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM supports
		WHERE merchant_id = ? AND campaign_id = ?
		ORDER BY created_at ASC, rowid ASC`,
		merchantID, campaignID)
	if err != nil {
		return nil, &credit.PersistenceError{Op: "ListSupports", Err: err}
	}
	return supportsOf(rows), nil
}

func (s *Store) ListSupportsByMerchant(ctx context.Context, merchantID credit.MerchantID) ([]*credit.Support, error) {
	var rows []supportRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM supports
		WHERE merchant_id = ?
		ORDER BY created_at ASC, rowid ASC`,
		merchantID)
	if err != nil {
		return nil, &credit.PersistenceError{Op: "ListSupportsByMerchant", Err: err}
	}
	return supportsOf(rows), nil
}

func (s *Store) ListUnbridged(ctx context.Context, olderThan time.Time) ([]*credit.Support, error) {
	var rows []supportRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM supports
		WHERE contract_index = -1 AND created_at < ?
		ORDER BY created_at ASC, rowid ASC`,
		formatTime(olderThan.UTC()))
	if err != nil {
		return nil, &credit.PersistenceError{Op: "ListUnbridged", Err: err}
	}
	return supportsOf(rows), nil
}

func supportsOf(rows []supportRow) []*credit.Support {
	out := make([]*credit.Support, len(rows))
	for i, r := range rows {
		out[i] = r.domain()
	}
	return out
}

// =============================================================================
// TRANSACTION LOG (credit.TransactionLog interface)
// =============================================================================

func (s *Store) Append(ctx context.Context, rec credit.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_transactions
		(id, tx_type, partner_id, member_id, campaign_id, campaign_title,
		 ledger_address, support_id, contract_index, tokens, raw_result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Type, rec.PartnerID, rec.MemberID, rec.CampaignID,
		rec.CampaignTitle, rec.LedgerAddress, rec.SupportID,
		rec.ContractIndex, rec.Tokens.String(), rec.RawResult,
		formatTime(createdAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return credit.ErrDuplicateTransaction
		}
		return &credit.PersistenceError{Op: "Append", Err: err}
	}
	return nil
}

func (s *Store) Query(ctx context.Context, f credit.TransactionFilter) ([]credit.TransactionRecord, error) {
	query := `SELECT * FROM ledger_transactions WHERE 1=1`
	var args []any

	switch {
	case f.Member != "" && f.Partner != "":
		query += ` AND (member_id = ? OR partner_id = ?)`
		args = append(args, string(f.Member), string(f.Partner))
	case f.Member != "":
		query += ` AND member_id = ?`
		args = append(args, string(f.Member))
	case f.Partner != "":
		query += ` AND partner_id = ?`
		args = append(args, string(f.Partner))
	}

	if len(f.Types) > 0 {
		placeholders := strings.Repeat("?,", len(f.Types))
		query += ` AND tx_type IN (` + placeholders[:len(placeholders)-1] + `)`
		for _, t := range f.Types {
			args = append(args, string(t))
		}
	}
	if !f.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, formatTime(f.Since.UTC()))
	}

	query += ` ORDER BY created_at DESC, rowid DESC`
	query, args = applyWindow(query, args, f.Page)

	var rows []transactionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, &credit.PersistenceError{Op: "Query", Err: err}
	}

	out := make([]credit.TransactionRecord, len(rows))
	for i, r := range rows {
		out[i] = r.domain()
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// applyWindow appends LIMIT/OFFSET for a page window. The page's Limit
// is an end offset, so the row count is Limit - Skip.
func applyWindow(query string, args []any, page credit.Page) (string, []any) {
	limit := -1 // SQLite: no limit
	if !page.Unbounded() {
		limit = page.Limit - page.Skip
		if limit < 0 {
			limit = 0
		}
	}
	query += ` LIMIT ? OFFSET ?`
	return query, append(args, limit, page.Skip)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
