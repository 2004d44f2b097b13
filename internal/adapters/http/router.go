package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mayanksahu17/binary-system-sub003/internal/application"
	"github.com/mayanksahu17/binary-system-sub003/internal/ports"
)

type Handler struct {
	service *application.Service
}

func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// TokenVerifier validates a bearer token and yields the caller identity.
// A nil verifier falls back to trusting the gateway-injected headers.
type TokenVerifier interface {
	Verify(token string) (ports.UserIdentity, error)
}

func NewRouter(handler *Handler, verifier TokenVerifier) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(metricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ok", nil) })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ready", nil) })
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(verifier))
			r.Post("/tree/users", handler.placeUser)
			r.Get("/tree/users/{user_id}", handler.getNode)
			r.Post("/tree/flush", handler.flushTree)

			r.Post("/investments", handler.registerInvestment)
			r.Get("/investments/{investment_id}", handler.getInvestment)
			r.Post("/investments/{investment_id}/propagate", handler.propagateInvestment)

			r.Post("/calculations/run", handler.runCalculations)
			r.Post("/calculations/users/{user_id}/settle", handler.settleUser)
			r.Get("/settlements/{user_id}", handler.listSettlements)

			r.Get("/wallets/{user_id}", handler.listWallets)
			r.Get("/wallets/{user_id}/transactions", handler.listTransactions)
			r.Post("/wallets/{user_id}/withdrawals", handler.requestWithdrawal)
			r.Post("/withdrawals/{withdrawal_id}/confirm", handler.confirmWithdrawal)
			r.Post("/withdrawals/{withdrawal_id}/reject", handler.rejectWithdrawal)
		})
	})
	return r
}
