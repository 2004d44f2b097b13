package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mayanksahu17/binary-system-sub003/internal/adapters/metrics"
	"github.com/mayanksahu17/binary-system-sub003/internal/application"
	"github.com/mayanksahu17/binary-system-sub003/internal/contracts"
	"github.com/mayanksahu17/binary-system-sub003/internal/domain"
	"github.com/mayanksahu17/binary-system-sub003/internal/ports"
)

func (h *Handler) placeUser(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.PlaceUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	node, err := h.service.PlaceUser(r.Context(), actor, application.PlaceUserInput{
		UserID:    strings.TrimSpace(req.UserID),
		SponsorID: strings.TrimSpace(req.SponsorID),
		Leg:       domain.Leg(strings.ToLower(strings.TrimSpace(req.Leg))),
	})
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusCreated, "", node)
}

func (h *Handler) getNode(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	node, err := h.service.GetNode(r.Context(), actor, chi.URLParam(r, "user_id"))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", node)
}

func (h *Handler) flushTree(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if err := h.service.FlushTree(r.Context(), actor); err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "tree volumes flushed", nil)
}

func (h *Handler) registerInvestment(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.RegisterInvestmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	investment, err := h.service.RegisterInvestment(r.Context(), actor, application.RegisterInvestmentInput{
		UserID:         strings.TrimSpace(req.UserID),
		PackageID:      strings.TrimSpace(req.PackageID),
		InvestedAmount: req.InvestedAmount,
		DepositAmount:  req.DepositAmount,
		Type:           domain.InvestmentType(strings.ToLower(strings.TrimSpace(req.Type))),
		ExpiresOn:      req.ExpiresOn,
	})
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusCreated, "", investment)
}

func (h *Handler) getInvestment(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	investment, err := h.service.GetInvestment(r.Context(), actor, chi.URLParam(r, "investment_id"))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", investment)
}

func (h *Handler) propagateInvestment(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	result, err := h.service.PropagateInvestment(r.Context(), actor, chi.URLParam(r, "investment_id"))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", result)
}

func (h *Handler) runCalculations(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.RunCalculationsRequest
	// An empty body means run everything for today.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	start := time.Now()
	report, err := h.service.RunDailyCalculations(r.Context(), actor, application.RunCalculationsInput{
		Date:            strings.TrimSpace(req.Date),
		IncludeROI:      boolOrDefault(req.IncludeROI, true),
		IncludeBinary:   boolOrDefault(req.IncludeBinary, true),
		IncludeReferral: boolOrDefault(req.IncludeReferral, true),
		Force:           req.Force,
	})
	if err != nil {
		metrics.BatchRunsTotal.WithLabelValues("error").Inc()
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	metrics.BatchRunsTotal.WithLabelValues("success").Inc()
	metrics.BatchDuration.Observe(time.Since(start).Seconds())
	metrics.BinaryBonusPaid.Add(report.BonusesPaid)
	writeSuccess(w, http.StatusOK, "", report)
}

func (h *Handler) settleUser(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	settlement, err := h.service.SettleUser(r.Context(), actor, chi.URLParam(r, "user_id"))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", settlement)
}

func (h *Handler) listSettlements(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	userID := chi.URLParam(r, "user_id")
	limit := parseIntOrDefault(r.URL.Query().Get("limit"), 20)
	offset := parseIntOrDefault(r.URL.Query().Get("offset"), 0)
	out, err := h.service.ListSettlements(r.Context(), actor, userID, limit, offset)
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"items": out.Items,
		"pagination": contracts.Pagination{
			Limit:  limit,
			Offset: offset,
			Total:  out.Total,
		},
	})
}

func (h *Handler) listWallets(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	wallets, err := h.service.ListWallets(r.Context(), actor, chi.URLParam(r, "user_id"))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", wallets)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	limit := parseIntOrDefault(r.URL.Query().Get("limit"), 20)
	offset := parseIntOrDefault(r.URL.Query().Get("offset"), 0)
	out, err := h.service.ListTransactions(r.Context(), actor, ports.TransactionFilter{
		UserID:     chi.URLParam(r, "user_id"),
		WalletType: domain.WalletType(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("wallet_type")))),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"items": out.Items,
		"pagination": contracts.Pagination{
			Limit:  limit,
			Offset: offset,
			Total:  out.Total,
		},
	})
}

func (h *Handler) requestWithdrawal(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	var req contracts.WithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), requestIDFromContext(r.Context()))
		return
	}
	withdrawal, err := h.service.RequestWithdrawal(r.Context(), actor, chi.URLParam(r, "user_id"),
		domain.WalletType(strings.ToLower(strings.TrimSpace(req.WalletType))), req.Amount)
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusCreated, "", withdrawal)
}

func (h *Handler) confirmWithdrawal(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	withdrawal, err := h.service.ConfirmWithdrawal(r.Context(), actor, chi.URLParam(r, "withdrawal_id"))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", withdrawal)
}

func (h *Handler) rejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	withdrawal, err := h.service.RejectWithdrawal(r.Context(), actor, chi.URLParam(r, "withdrawal_id"))
	if err != nil {
		status, code := mapDomainError(err)
		writeError(w, status, code, err.Error(), requestIDFromContext(r.Context()))
		return
	}
	writeSuccess(w, http.StatusOK, "", withdrawal)
}

func parseIntOrDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func boolOrDefault(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
