package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/boddenberg/pj-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Transactions: list, groups, CRUD, lifecycle actions
// ============================================================

type transactionResponse struct {
	Transaction domain.Transaction `json:"transaction"`
	Actions     domain.Actions     `json:"actions"`
	SignedMinor int64              `json:"signedMinor"`
	Display     string             `json:"display"`
	DayKey      string             `json:"dayKey,omitempty"`
}

type groupResponse struct {
	DateKey    string                `json:"dateKey"`
	Time       int64                 `json:"time"`
	Total      float64               `json:"total"`
	TotalMinor int64                 `json:"totalMinor"`
	Display    string                `json:"display"`
	Items      []transactionResponse `json:"items"`
}

type balanceResponse struct {
	BalanceMinor int64   `json:"balanceMinor"`
	Balance      float64 `json:"balance"`
	Display      string  `json:"display"`
}

func toResponse(t domain.Transaction, now time.Time) transactionResponse {
	key, _ := domain.ToDayKey(t.EffectiveDate())
	return transactionResponse{
		Transaction: t,
		Actions:     domain.ActionsFor(t, now),
		SignedMinor: t.SignedMinor(),
		Display:     domain.FormatBRL(t.SignedMinor()),
		DayKey:      key,
	}
}

func toResponses(list []domain.Transaction, now time.Time) []transactionResponse {
	out := make([]transactionResponse, 0, len(list))
	for _, t := range list {
		out = append(out, toResponse(t, now))
	}
	return out
}

// parseQuery reads the search box filter: q, type, status, includeDismissed.
func parseQuery(r *http.Request) (domain.Query, error) {
	v := r.URL.Query()
	q := domain.Query{
		Text:   v.Get("q"),
		Type:   domain.TransactionType(v.Get("type")),
		Status: domain.Status(v.Get("status")),
	}
	if q.Type != "" && !q.Type.Valid() {
		return q, &domain.ErrValidation{Field: "type", Message: "unknown transaction type"}
	}
	if q.Status != "" && !q.Status.Valid() {
		return q, &domain.ErrValidation{Field: "status", Message: "unknown status"}
	}
	if raw := v.Get("includeDismissed"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return q, &domain.ErrValidation{Field: "includeDismissed", Message: "must be a boolean"}
		}
		q.IncludeDismissed = b
	}
	return q, nil
}

func listTransactionsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/transactions")
		defer span.End()

		q, err := parseQuery(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		list := svc.List(q)
		span.SetAttributes(attribute.Int("transactions.count", len(list)))
		writeJSON(w, http.StatusOK, map[string]any{
			"transactions": toResponses(list, svc.Now()),
			"total":        len(list),
		})
	}
}

func groupTransactionsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/transactions/groups")
		defer span.End()

		q, err := parseQuery(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		now := svc.Now()
		groups := svc.Groups(q)
		resp := make([]groupResponse, 0, len(groups))
		for _, g := range groups {
			resp = append(resp, groupResponse{
				DateKey:    g.DateKey,
				Time:       g.Time,
				Total:      g.Total(),
				TotalMinor: g.TotalMinor,
				Display:    domain.FormatBRL(g.TotalMinor),
				Items:      toResponses(g.Items, now),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"groups": resp})
	}
}

func refreshTransactionsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions/refresh")
		defer span.End()

		v := r.URL.Query()
		filter := domain.ListFilter{
			Query:  v.Get("q"),
			Type:   domain.TransactionType(v.Get("type")),
			Status: domain.Status(v.Get("status")),
			Sort:   v.Get("sort"),
			Order:  v.Get("order"),
			Page:   parsePositiveInt(r, "page"),
			Limit:  parsePositiveInt(r, "limit"),
		}

		if err := svc.FetchAll(ctx, filter); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		list := svc.List(domain.Query{})
		writeJSON(w, http.StatusOK, map[string]any{
			"transactions": toResponses(list, svc.Now()),
			"total":        len(list),
		})
	}
}

func getTransactionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/transactions/{id}")
		defer span.End()

		t, err := svc.Get(chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(*t, svc.Now()))
	}
}

func createTransactionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions")
		defer span.End()

		var draft domain.Draft
		if err := decodeBody(w, r, &draft); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		t, err := svc.Add(ctx, draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, toResponse(*t, svc.Now()))
	}
}

func patchTransactionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/transactions/{id}")
		defer span.End()

		var patch domain.TransactionPatch
		if err := decodeBody(w, r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		t, err := svc.Patch(ctx, chi.URLParam(r, "id"), patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(*t, svc.Now()))
	}
}

func deleteTransactionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/transactions/{id}")
		defer span.End()

		if err := svc.Remove(ctx, chi.URLParam(r, "id")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// cancel and restore answer 202: the local change is done, the backend
// confirmation is still in flight.
func cancelTransactionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions/{id}/cancel")
		defer span.End()

		t, err := svc.Cancel(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, toResponse(*t, svc.Now()))
	}
}

func restoreTransactionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions/{id}/restore")
		defer span.End()

		t, err := svc.Restore(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, toResponse(*t, svc.Now()))
	}
}

func dismissTransactionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "POST /v1/transactions/{id}/dismiss")
		defer span.End()

		t, err := svc.Dismiss(chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(*t, svc.Now()))
	}
}

func balanceHandler(svc *service.LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cents := svc.Balance()
		writeJSON(w, http.StatusOK, balanceResponse{
			BalanceMinor: cents,
			Balance:      domain.FromMinorUnits(cents),
			Display:      domain.FormatBRL(cents),
		})
	}
}
