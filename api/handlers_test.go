package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/microcredit-engine/api"
	"github.com/warp/microcredit-engine/bridge"
	"github.com/warp/microcredit-engine/credit"
	"github.com/warp/microcredit-engine/credit/store"
	"github.com/warp/microcredit-engine/engine"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	router http.Handler
	store  *store.Memory
	sim    *bridge.Sim
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		store: store.NewMemory(),
		sim:   bridge.NewSim(),
	}
	eng := &engine.Engine{
		Campaigns: ts.store,
		Supports:  ts.store,
		Log:       ts.store,
		Bridge:    ts.sim,
		Sender:    bridge.Sender{Address: "0xsender"},
		Addresses: engine.StaticAddressBook{
			"mem-1": "0xmem1",
			"mem-2": "0xmem2",
		},
		Logger: zap.NewNop(),
	}
	ts.router = api.NewRouter(api.NewHandler(eng, zap.NewNop()))
	return ts
}

func (ts *testServer) publishCampaign(t *testing.T, merchant, id string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, ts.store.SaveCampaign(ctx, &credit.Campaign{
		ID:           credit.CampaignID(id),
		MerchantID:   credit.MerchantID(merchant),
		Title:        "Neighborhood Fund",
		Quantitative: true,
		MinAllowed:   credit.NewTokens(10),
		MaxAllowed:   credit.NewTokens(150),
		MaxAmount:    credit.NewTokens(1000),
		RedeemStarts: now.Add(-time.Hour),
		RedeemEnds:   now.AddDate(0, 1, 0),
		StartsAt:     now.Add(-time.Hour),
		ExpiresAt:    now.AddDate(0, 2, 0),
	}))
	require.NoError(t, ts.store.PublishCampaign(ctx,
		credit.MerchantID(merchant), credit.CampaignID(id), "0xcampaign", "0xpublish"))
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

type response struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Code    int             `json:"code"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (ts *testServer) earn(t *testing.T, member string, amount float64) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/earn/mer-1/c1",
		map[string]any{"_amount": amount, "method": "cash"},
		map[string]string{"X-Member-ID": member})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var dto struct {
		SupportID string `json:"support_id"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &dto))
	require.NotEmpty(t, dto.SupportID)
	return dto.SupportID
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestAPI_EarnConfirmRedeem(t *testing.T) {
	// GIVEN: A published campaign
	// WHEN: A member earns, the partner confirms, then redeems 40 tokens
	// THEN: Each step succeeds and the support carries the running balance

	ts := newTestServer(t)
	ts.publishCampaign(t, "mer-1", "c1")

	supportID := ts.earn(t, "mem-1", 100)

	w := ts.do(t, http.MethodPut, "/api/confirm/mer-1/c1/"+supportID, nil,
		map[string]string{"X-Partner-ID": "mer-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var dto struct {
		Status         string  `json:"status"`
		ContractIndex  int     `json:"contractIndex"`
		RedeemedTokens float64 `json:"redeemedTokens"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &dto))
	assert.Equal(t, "confirmation", dto.Status)
	assert.GreaterOrEqual(t, dto.ContractIndex, 0)

	w = ts.do(t, http.MethodPost, "/api/redeem/mer-1/c1/"+supportID,
		map[string]any{"_tokens": 40.0},
		map[string]string{"X-Partner-ID": "mer-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "redeem_completed", decode(t, w).Message)
}

func TestAPI_Earn_MissingIdentity(t *testing.T) {
	// No identity header gets the legacy soft failure, not a 4xx.
	ts := newTestServer(t)
	ts.publishCampaign(t, "mer-1", "c1")

	w := ts.do(t, http.MethodPost, "/api/earn/mer-1/c1",
		map[string]any{"_amount": 100.0, "method": "cash"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user_not_exists", decode(t, w).Message)
}

func TestAPI_Earn_OnBehalf_RequiresPartner(t *testing.T) {
	ts := newTestServer(t)
	ts.publishCampaign(t, "mer-1", "c1")

	// A member cannot pledge for someone else.
	w := ts.do(t, http.MethodPost, "/api/earn/mer-1/c1/mem-2",
		map[string]any{"_amount": 100.0, "method": "cash"},
		map[string]string{"X-Member-ID": "mem-1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// The partner can.
	w = ts.do(t, http.MethodPost, "/api/earn/mer-1/c1/mem-2",
		map[string]any{"_amount": 100.0, "method": "cash"},
		map[string]string{"X-Partner-ID": "mer-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestAPI_Earn_UnknownCampaign(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/earn/mer-1/nope",
		map[string]any{"_amount": 100.0, "method": "cash"},
		map[string]string{"X-Member-ID": "mem-1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_Earn_AmountOutOfRange(t *testing.T) {
	ts := newTestServer(t)
	ts.publishCampaign(t, "mer-1", "c1")

	w := ts.do(t, http.MethodPost, "/api/earn/mer-1/c1",
		map[string]any{"_amount": 500.0, "method": "cash"},
		map[string]string{"X-Member-ID": "mem-1"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NotEmpty(t, decode(t, w).Error)
}

func TestAPI_Earn_BridgeFailure(t *testing.T) {
	// A ledger failure surfaces as 502, never as success.
	ts := newTestServer(t)
	ts.publishCampaign(t, "mer-1", "c1")

	ts.sim.FailNext(bridge.OpPromiseToFund, &bridge.LedgerError{
		Op: bridge.OpPromiseToFund, Timeout: true,
	})
	w := ts.do(t, http.MethodPost, "/api/earn/mer-1/c1",
		map[string]any{"_amount": 100.0, "method": "cash"},
		map[string]string{"X-Member-ID": "mem-1"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAPI_Confirm_MemberForbidden(t *testing.T) {
	ts := newTestServer(t)
	ts.publishCampaign(t, "mer-1", "c1")
	supportID := ts.earn(t, "mem-1", 100)

	w := ts.do(t, http.MethodPut, "/api/confirm/mer-1/c1/"+supportID, nil,
		map[string]string{"X-Member-ID": "mem-1"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAPI_Redeem_Overdraw(t *testing.T) {
	ts := newTestServer(t)
	ts.publishCampaign(t, "mer-1", "c1")
	supportID := ts.earn(t, "mem-1", 100)

	w := ts.do(t, http.MethodPut, "/api/confirm/mer-1/c1/"+supportID, nil,
		map[string]string{"X-Partner-ID": "mer-1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/redeem/mer-1/c1/"+supportID,
		map[string]any{"_tokens": 140.0},
		map[string]string{"X-Partner-ID": "mer-1"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

// =============================================================================
// READS
// =============================================================================

func TestAPI_Transactions(t *testing.T) {
	ts := newTestServer(t)
	ts.publishCampaign(t, "mer-1", "c1")
	ts.earn(t, "mem-1", 100)
	ts.earn(t, "mem-2", 50)

	w := ts.do(t, http.MethodGet, "/api/transactions/0-0-0", nil,
		map[string]string{"X-Member-ID": "mem-1"})
	require.Equal(t, http.StatusOK, w.Code)

	var recs []struct {
		Type     string `json:"type"`
		MemberID string `json:"member_id"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "PromiseFund", recs[0].Type)
	assert.Equal(t, "mem-1", recs[0].MemberID)

	w = ts.do(t, http.MethodGet, "/api/transactions/0-0-0", nil,
		map[string]string{"X-Partner-ID": "mer-1"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &recs))
	assert.Len(t, recs, 2)
}

func TestAPI_Badge(t *testing.T) {
	ts := newTestServer(t)
	ts.publishCampaign(t, "mer-1", "c1")
	ts.earn(t, "mem-1", 100)

	w := ts.do(t, http.MethodGet, "/api/badge", nil,
		map[string]string{"X-Member-ID": "mem-1"})
	require.Equal(t, http.StatusOK, w.Code)

	var badge struct {
		Amount       float64 `json:"amount"`
		Stores       int     `json:"stores"`
		Transactions int     `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &badge))
	assert.Equal(t, 100.0, badge.Amount)
	assert.Equal(t, 1, badge.Stores)
	assert.Equal(t, 1, badge.Transactions)
}

func TestAPI_Campaigns(t *testing.T) {
	ts := newTestServer(t)
	ts.publishCampaign(t, "mer-1", "c1")
	ts.earn(t, "mem-1", 100)

	w := ts.do(t, http.MethodGet, "/api/campaigns/0-0-0", nil,
		map[string]string{"X-Partner-ID": "mer-1"})
	require.Equal(t, http.StatusOK, w.Code)

	var listings []struct {
		CampaignID   string  `json:"campaign_id"`
		OrderInitial float64 `json:"orderInitial"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &listings))
	require.Len(t, listings, 1)
	assert.Equal(t, "c1", listings[0].CampaignID)
	assert.Equal(t, 100.0, listings[0].OrderInitial)
}

func TestAPI_Healthz(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
