/**
 * @description
 * This file sets up the HTTP router for the settlement-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SettlementRoutes creates and returns a new router for the settlement service.
func SettlementRoutes(h *SettlementHandlers, jwksURL, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Service-to-service endpoints authenticated with the internal API key.
	r.Group(func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalAPIKey))

		r.Post("/payments", h.InitiatePaymentHandler)
	})

	// Admin dashboard endpoints authenticated with Clerk-issued JWTs.
	r.Group(func(r chi.Router) {
		r.Use(ClerkAuthMiddleware(jwksURL))

		r.Get("/merchants/{merchantID}/ledger", h.MerchantLedgerHandler)
		r.Get("/merchants/{merchantID}/activity", h.MerchantActivityHandler)
		r.Post("/merchants/{merchantID}/reconcile", h.ReconcileMerchantHandler)

		r.Post("/transactions/{gatewayReference}/verify", h.VerifyTransactionHandler)

		r.Post("/settlements", h.SettleHandler)
		r.Get("/settlements", h.ListSettlementsHandler)
		r.Get("/settlements/{settlementID}", h.GetSettlementHandler)

		r.Post("/auto-settlements", h.CreateAutoSettlementHandler)
		r.Get("/auto-settlements", h.ListAutoSettlementsHandler)
		r.Get("/auto-settlements/{configID}", h.GetAutoSettlementHandler)
		r.Put("/auto-settlements/{configID}", h.UpdateAutoSettlementHandler)
		r.Delete("/auto-settlements/{configID}", h.DeleteAutoSettlementHandler)
		r.Post("/auto-settlements/{configID}/run", h.RunAutoSettlementHandler)
	})

	return r
}
