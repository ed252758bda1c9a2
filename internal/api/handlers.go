/**
 * @description
 * This file contains the HTTP handlers for the settlement-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/payverge/settlement-service/internal/app"
	"github.com/payverge/settlement-service/internal/domain"
	"github.com/payverge/settlement-service/internal/store"
)

// SettlementHandlers holds the application service that handlers will use.
type SettlementHandlers struct {
	service *app.Service
}

// NewSettlementHandlers creates a new instance of SettlementHandlers.
func NewSettlementHandlers(service *app.Service) *SettlementHandlers {
	return &SettlementHandlers{service: service}
}

// settleRequest is the body for manual settlement batches.
type settleRequest struct {
	Selections []domain.SettlementSelection `json:"selections"`
}

// InitiatePaymentHandler handles payment creation through the Connector
// Gateway.
func (h *SettlementHandlers) InitiatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.InitiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=initiate_payment outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.service.InitiatePayment(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidPayment):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrMerchantNotFound):
			h.writeError(w, http.StatusNotFound, "Merchant not found")
		case errors.Is(err, app.ErrUpstreamFailure):
			h.writeError(w, http.StatusBadGateway, "Payment provider is unavailable")
		default:
			log.Printf("level=error component=api endpoint=initiate_payment outcome=error merchant_id=%s err=%v", req.MerchantID, err)
			h.writeError(w, http.StatusInternalServerError, "Failed to initiate payment")
		}
		return
	}

	log.Printf("level=info component=api endpoint=initiate_payment outcome=accepted merchant_id=%s amount=%d connector=%s",
		req.MerchantID, req.Amount, req.Connector)
	h.writeJSON(w, http.StatusCreated, resp)
}

// VerifyTransactionHandler re-fetches a transaction's status from the
// Connector Gateway and applies it, covering lost webhooks.
func (h *SettlementHandlers) VerifyTransactionHandler(w http.ResponseWriter, r *http.Request) {
	gatewayReference := strings.TrimSpace(chi.URLParam(r, "gatewayReference"))

	change, err := h.service.VerifyTransaction(r.Context(), gatewayReference)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidPayment):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrTransactionNotFound):
			h.writeError(w, http.StatusNotFound, "Transaction not found")
		case errors.Is(err, app.ErrUpstreamFailure):
			h.writeError(w, http.StatusBadGateway, "Payment provider is unavailable")
		default:
			log.Printf("level=error component=api endpoint=verify_transaction outcome=error gateway_reference=%s err=%v", gatewayReference, err)
			h.writeError(w, http.StatusInternalServerError, "Failed to verify transaction")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"applied":         change.Applied,
		"previous_status": change.Previous,
		"transaction":     change.Transaction,
	})
}

// MerchantLedgerHandler returns the merchant's balances and counters.
func (h *SettlementHandlers) MerchantLedgerHandler(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := h.parseIDParam(w, r, "merchantID")
	if !ok {
		return
	}

	merchant, err := h.service.GetMerchantLedger(r.Context(), merchantID)
	if err != nil {
		if errors.Is(err, store.ErrMerchantNotFound) {
			h.writeError(w, http.StatusNotFound, "Merchant not found")
			return
		}
		log.Printf("level=error component=api endpoint=merchant_ledger outcome=error merchant_id=%s err=%v", merchantID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load merchant ledger")
		return
	}
	h.writeJSON(w, http.StatusOK, merchant)
}

// MerchantActivityHandler returns the bounded recent-activity feed.
func (h *SettlementHandlers) MerchantActivityHandler(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := h.parseIDParam(w, r, "merchantID")
	if !ok {
		return
	}

	activity, err := h.service.GetMerchantActivity(r.Context(), merchantID)
	if err != nil {
		if errors.Is(err, store.ErrMerchantNotFound) {
			h.writeError(w, http.StatusNotFound, "Merchant not found")
			return
		}
		log.Printf("level=error component=api endpoint=merchant_activity outcome=error merchant_id=%s err=%v", merchantID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load merchant activity")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"activity": activity})
}

// ReconcileMerchantHandler recomputes the merchant's ledger from history and
// returns the rebuilt merchant.
func (h *SettlementHandlers) ReconcileMerchantHandler(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := h.parseIDParam(w, r, "merchantID")
	if !ok {
		return
	}

	merchant, err := h.service.Reconcile(r.Context(), merchantID)
	if err != nil {
		if errors.Is(err, store.ErrMerchantNotFound) {
			h.writeError(w, http.StatusNotFound, "Merchant not found")
			return
		}
		log.Printf("level=error component=api endpoint=reconcile outcome=error merchant_id=%s err=%v", merchantID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to reconcile merchant ledger")
		return
	}

	log.Printf("level=info component=api endpoint=reconcile outcome=completed merchant_id=%s", merchantID)
	h.writeJSON(w, http.StatusOK, merchant)
}

// SettleHandler executes a manual settlement batch.
func (h *SettlementHandlers) SettleHandler(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=settle outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.SettleManual(r.Context(), req.Selections)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrValidation):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrInsufficientUnsettledBalance):
			h.writeError(w, http.StatusConflict, err.Error())
		default:
			// A partially committed batch still returns its result so the
			// operator can see what settled before the failure.
			if result != nil {
				log.Printf("level=error component=api endpoint=settle outcome=partial_failure batch_id=%s err=%v", result.BatchID, err)
				h.writeJSON(w, http.StatusMultiStatus, result)
				return
			}
			log.Printf("level=error component=api endpoint=settle outcome=error err=%v", err)
			h.writeError(w, http.StatusInternalServerError, "Settlement failed")
		}
		return
	}

	log.Printf("level=info component=api endpoint=settle outcome=%s batch_id=%s settled=%d failed=%d",
		strings.ToLower(string(result.Status)), result.BatchID, len(result.Settled), len(result.FailedSettlements))
	h.writeJSON(w, http.StatusOK, result)
}

// GetSettlementHandler returns one settlement batch with its items.
func (h *SettlementHandlers) GetSettlementHandler(w http.ResponseWriter, r *http.Request) {
	settlementID, ok := h.parseIDParam(w, r, "settlementID")
	if !ok {
		return
	}

	settlement, err := h.service.GetSettlement(r.Context(), settlementID)
	if err != nil {
		if errors.Is(err, store.ErrSettlementNotFound) {
			h.writeError(w, http.StatusNotFound, "Settlement not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_settlement outcome=error settlement_id=%s err=%v", settlementID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load settlement")
		return
	}
	h.writeJSON(w, http.StatusOK, settlement)
}

// ListSettlementsHandler returns settlement history with optional merchant
// and date-range filters.
func (h *SettlementHandlers) ListSettlementsHandler(w http.ResponseWriter, r *http.Request) {
	opts, err := parseSettlementListOptions(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	settlements, err := h.service.ListSettlements(r.Context(), opts)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_settlements outcome=error err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to list settlements")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"settlements": settlements})
}

// CreateAutoSettlementHandler creates an auto-settlement config.
func (h *SettlementHandlers) CreateAutoSettlementHandler(w http.ResponseWriter, r *http.Request) {
	var cfg domain.AutoSettlementConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.service.CreateAutoSettlement(r.Context(), cfg)
	if err != nil {
		if errors.Is(err, app.ErrValidation) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("level=error component=api endpoint=create_auto_settlement outcome=error err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to create auto-settlement config")
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// UpdateAutoSettlementHandler updates a config and reconciles its timer.
func (h *SettlementHandlers) UpdateAutoSettlementHandler(w http.ResponseWriter, r *http.Request) {
	configID, ok := h.parseIDParam(w, r, "configID")
	if !ok {
		return
	}

	var cfg domain.AutoSettlementConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	cfg.ID = configID

	updated, err := h.service.UpdateAutoSettlement(r.Context(), cfg)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrValidation):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrAutoSettlementNotFound):
			h.writeError(w, http.StatusNotFound, "Auto-settlement config not found")
		default:
			log.Printf("level=error component=api endpoint=update_auto_settlement outcome=error config_id=%s err=%v", configID, err)
			h.writeError(w, http.StatusInternalServerError, "Failed to update auto-settlement config")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

// DeleteAutoSettlementHandler cancels the timer and removes the config.
func (h *SettlementHandlers) DeleteAutoSettlementHandler(w http.ResponseWriter, r *http.Request) {
	configID, ok := h.parseIDParam(w, r, "configID")
	if !ok {
		return
	}

	if err := h.service.DeleteAutoSettlement(r.Context(), configID); err != nil {
		if errors.Is(err, store.ErrAutoSettlementNotFound) {
			h.writeError(w, http.StatusNotFound, "Auto-settlement config not found")
			return
		}
		log.Printf("level=error component=api endpoint=delete_auto_settlement outcome=error config_id=%s err=%v", configID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to delete auto-settlement config")
		return
	}
	h.writeJSON(w, http.StatusNoContent, nil)
}

// GetAutoSettlementHandler returns one config.
func (h *SettlementHandlers) GetAutoSettlementHandler(w http.ResponseWriter, r *http.Request) {
	configID, ok := h.parseIDParam(w, r, "configID")
	if !ok {
		return
	}

	cfg, err := h.service.GetAutoSettlement(r.Context(), configID)
	if err != nil {
		if errors.Is(err, store.ErrAutoSettlementNotFound) {
			h.writeError(w, http.StatusNotFound, "Auto-settlement config not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_auto_settlement outcome=error config_id=%s err=%v", configID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load auto-settlement config")
		return
	}
	h.writeJSON(w, http.StatusOK, cfg)
}

// ListAutoSettlementsHandler returns every config.
func (h *SettlementHandlers) ListAutoSettlementsHandler(w http.ResponseWriter, r *http.Request) {
	configs, err := h.service.ListAutoSettlements(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=list_auto_settlements outcome=error err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to list auto-settlement configs")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"configs": configs})
}

// RunAutoSettlementHandler fires a config's sweep immediately.
func (h *SettlementHandlers) RunAutoSettlementHandler(w http.ResponseWriter, r *http.Request) {
	configID, ok := h.parseIDParam(w, r, "configID")
	if !ok {
		return
	}

	result, err := h.service.RunAutoSettlementNow(r.Context(), configID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrAutoSettlementNotFound):
			h.writeError(w, http.StatusNotFound, "Auto-settlement config not found")
		case errors.Is(err, app.ErrValidation):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("level=error component=api endpoint=run_auto_settlement outcome=error config_id=%s err=%v", configID, err)
			h.writeError(w, http.StatusInternalServerError, "Auto-settlement run failed")
		}
		return
	}

	if result == nil {
		// Inactive config or nothing eligible; no batch was created.
		h.writeJSON(w, http.StatusOK, map[string]string{"message": "nothing to settle"})
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func parseSettlementListOptions(r *http.Request) (domain.SettlementListOptions, error) {
	var opts domain.SettlementListOptions
	q := r.URL.Query()

	if raw := strings.TrimSpace(q.Get("merchant_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return opts, errors.New("invalid merchant_id filter")
		}
		opts.MerchantID = &id
	}
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return opts, errors.New("invalid from filter, expected RFC3339 timestamp")
		}
		opts.From = &ts
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return opts, errors.New("invalid to filter, expected RFC3339 timestamp")
		}
		opts.To = &ts
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return opts, errors.New("invalid limit filter")
		}
		opts.Limit = limit
	}
	if raw := strings.TrimSpace(q.Get("offset")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return opts, errors.New("invalid offset filter")
		}
		opts.Offset = offset
	}
	return opts, nil
}

func (h *SettlementHandlers) parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// writeJSON is a helper for writing JSON responses.
func (h *SettlementHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *SettlementHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
