/*
handlers.go - HTTP handlers for the support lifecycle

PURPOSE:
  Exposes the lifecycle engine via REST. Handles HTTP request/response,
  JSON serialization and the response envelope, and delegates every
  transition to the engine.

ENDPOINTS:
  Lifecycle:
    POST /api/earn/{partnerID}/{campaignID}        Earn (backer acts)
    POST /api/earn/{partnerID}/{campaignID}/{to}   Earn on behalf of a member
    PUT  /api/confirm/{partnerID}/{campaignID}/{supportID}  Toggle settlement
    POST /api/redeem/{partnerID}/{campaignID}/{supportID}   Redeem + spend

  Reads:
    GET /api/transactions/{offset}   Caller's lifecycle records
    GET /api/badge                   12-month pledge aggregate
    GET /api/campaigns/{offset}      Campaign listings with token sums

CALLER IDENTITY:
  Session issuance is owned elsewhere; the gateway forwards the resolved
  identity in X-Member-ID / X-Partner-ID headers. A request with neither
  header gets the "user_not_exists" no-op envelope.

ERROR MAPPING:
  400 validation, 404 not found, 409 state conflict, 502 ledger
  failure, 503 persistence failure (retryable), 500 otherwise.

SEE ALSO:
  - dto.go: Request/response shapes
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/microcredit-engine/bridge"
	"github.com/warp/microcredit-engine/credit"
	"github.com/warp/microcredit-engine/engine"
)

// Handler holds the handler dependencies.
type Handler struct {
	Engine *engine.Engine
	Logger *zap.Logger
}

func NewHandler(eng *engine.Engine, logger *zap.Logger) *Handler {
	return &Handler{Engine: eng, Logger: logger}
}

// =============================================================================
// LIFECYCLE HANDLERS
// =============================================================================

// Earn handles POST /api/earn/{partnerID}/{campaignID} and the
// /{to} variant where a partner pledges on behalf of a member.
func (h *Handler) Earn(w http.ResponseWriter, r *http.Request) {
	partnerID := credit.MerchantID(chi.URLParam(r, "partnerID"))
	campaignID := credit.CampaignID(chi.URLParam(r, "campaignID"))

	backer, ok := h.earnBacker(w, r)
	if !ok {
		return
	}

	var req EarnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &credit.ValidationError{Field: "body", Message: "invalid JSON"})
		return
	}

	result, err := h.Engine.Earn(r.Context(), engine.EarnInput{
		Partner:  partnerID,
		Campaign: campaignID,
		Backer:   backer,
		Amount:   credit.NewTokens(req.Amount),
		Method:   credit.Method(req.Method),
		Paid:     req.Paid,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeData(w, http.StatusCreated, EarnDTO{
		SupportID: string(result.Support.ID),
		PaymentID: result.PaymentID,
		Status:    string(result.Support.Status),
		Method:    string(result.Support.Method),
		How:       result.How,
	})
}

// earnBacker resolves who the new support belongs to. The /{to} variant
// requires a partner-capable caller.
func (h *Handler) earnBacker(w http.ResponseWriter, r *http.Request) (credit.MemberID, bool) {
	if to := chi.URLParam(r, "to"); to != "" {
		actor, ok := callerIdentity(r)
		if !ok {
			writeMessage(w, http.StatusOK, "user_not_exists")
			return "", false
		}
		if !actor.Role.CanEarnFor() {
			h.writeError(w, &credit.StateConflictError{Code: "forbidden", Message: "only partners may earn on behalf of a member"})
			return "", false
		}
		return credit.MemberID(to), true
	}

	member := r.Header.Get("X-Member-ID")
	if member == "" {
		writeMessage(w, http.StatusOK, "user_not_exists")
		return "", false
	}
	return credit.MemberID(member), true
}

// Confirm handles PUT /api/confirm/{partnerID}/{campaignID}/{supportID}.
// Toggles the support between order and confirmation.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerIdentity(r)
	if !ok {
		writeMessage(w, http.StatusOK, "user_not_exists")
		return
	}
	if !actor.Role.CanConfirm() {
		h.writeError(w, &credit.StateConflictError{Code: "forbidden", Message: "only the campaign partner may confirm"})
		return
	}

	support, err := h.Engine.Confirm(r.Context(),
		credit.MerchantID(chi.URLParam(r, "partnerID")),
		credit.CampaignID(chi.URLParam(r, "campaignID")),
		credit.SupportID(chi.URLParam(r, "supportID")),
	)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, toSupportDTO(support))
}

// Redeem handles POST /api/redeem/{partnerID}/{campaignID}/{supportID}.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &credit.ValidationError{Field: "body", Message: "invalid JSON"})
		return
	}

	supportID := chi.URLParam(r, "supportID")
	if supportID == "" {
		supportID = req.SupportID
	}

	_, err := h.Engine.Redeem(r.Context(), engine.RedeemInput{
		Partner:  credit.MerchantID(chi.URLParam(r, "partnerID")),
		Campaign: credit.CampaignID(chi.URLParam(r, "campaignID")),
		Support:  credit.SupportID(supportID),
		Tokens:   credit.NewTokens(req.Tokens),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "redeem_completed")
}

// =============================================================================
// READ HANDLERS
// =============================================================================

// Transactions handles GET /api/transactions/{offset}.
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerIdentity(r)
	if !ok {
		writeMessage(w, http.StatusOK, "user_not_exists")
		return
	}

	recs, err := h.Engine.Transactions(r.Context(), actor, chi.URLParam(r, "offset"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, toTransactionDTOs(recs))
}

// Badge handles GET /api/badge.
func (h *Handler) Badge(w http.ResponseWriter, r *http.Request) {
	member := r.Header.Get("X-Member-ID")
	if member == "" {
		writeMessage(w, http.StatusOK, "user_not_exists")
		return
	}

	view, err := h.Engine.Badge(r.Context(), credit.MemberID(member))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, toBadgeDTO(view))
}

// Campaigns handles GET /api/campaigns/{offset}: the partner's
// campaigns with token aggregates merged on.
func (h *Handler) Campaigns(w http.ResponseWriter, r *http.Request) {
	partner := r.Header.Get("X-Partner-ID")
	if partner == "" {
		writeMessage(w, http.StatusOK, "user_not_exists")
		return
	}

	listings, err := h.Engine.CampaignListings(r.Context(),
		credit.MerchantID(partner), chi.URLParam(r, "offset"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, toCampaignListingDTOs(listings))
}

// Healthz handles GET /api/healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// ENVELOPE & ERROR MAPPING
// =============================================================================

// callerIdentity resolves the forwarded identity headers into an actor.
// Partner identity wins when both headers are present.
func callerIdentity(r *http.Request) (credit.Actor, bool) {
	if partner := r.Header.Get("X-Partner-ID"); partner != "" {
		return credit.Actor{ID: partner, Role: credit.RolePartner}, true
	}
	if member := r.Header.Get("X-Member-ID"); member != "" {
		return credit.Actor{ID: member, Role: credit.RoleMember}, true
	}
	return credit.Actor{}, false
}

type envelope struct {
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Data: data, Code: status})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Message: message, Code: status})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, credit.ErrValidation):
		status = http.StatusBadRequest
	case credit.IsNotFound(err):
		status = http.StatusNotFound
	case credit.IsConflict(err), errors.Is(err, credit.ErrCampaignNotPublished),
		errors.Is(err, credit.ErrCampaignImmutable):
		status = http.StatusConflict
	case bridge.IsLedger(err):
		status = http.StatusBadGateway
	case errors.Is(err, credit.ErrPersistence):
		status = http.StatusServiceUnavailable
	}

	if h.Logger != nil && status >= http.StatusInternalServerError {
		h.Logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, envelope{Error: err.Error(), Code: status})
}
