package jsonserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/pj-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/infra/jsonserver"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/infra/resilience"

	"go.uber.org/zap"
)

func newClient(srv *httptest.Server) *jsonserver.Client {
	return jsonserver.NewClient(
		srv.Client(),
		srv.URL+"/",
		resilience.NewCircuitBreaker("jsonserver-test"),
		resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond},
		zap.NewNop(),
	)
}

func TestListTransactions_QueryParams(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transactions" {
			t.Errorf("expected path /transactions, got %s", r.URL.Path)
		}
		got = r.URL.Query().Encode()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"type":"deposit","description":"Salário","amount":1500,"date":"2025-11-01","status":"processed"}]`))
	}))
	defer srv.Close()

	list, err := newClient(srv).ListTransactions(context.Background(), domain.ListFilter{
		Query: "sal", Type: domain.TypeDeposit, Sort: "date", Order: "desc", Page: 2, Limit: 20,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(list) != 1 || list[0].ID != "1" {
		t.Fatalf("expected one record with id 1, got %+v", list)
	}
	want := "_limit=20&_order=desc&_page=2&_sort=date&q=sal&type=deposit"
	if got != want {
		t.Errorf("expected query %s, got %s", want, got)
	}
}

func TestListTransactions_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	list, err := newClient(srv).ListTransactions(context.Background(), domain.ListFilter{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("expected empty non-nil list, got %v", list)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestCreateTransaction(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Idempotency-Key") == "" {
			t.Error("expected Idempotency-Key header")
		}
		body, _ := io.ReadAll(r.Body)
		var doc map[string]any
		_ = json.Unmarshal(body, &doc)
		if _, ok := doc["id"]; ok {
			t.Error("expected create body without id")
		}
		doc["id"] = "a7f3"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(doc)
	}))
	defer srv.Close()

	created, err := newClient(srv).CreateTransaction(context.Background(), domain.Transaction{
		ID: "local", Type: domain.TypePix, Description: "Aluguel", Amount: 900, Date: "2025-11-01",
		Status: domain.StatusScheduled,
		Pix:    &domain.PixDetails{PixType: domain.PixScheduled, ScheduledFor: "2025-11-10"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if created.ID != "a7f3" {
		t.Errorf("expected id a7f3, got %s", created.ID)
	}
	if sf, _ := created.ScheduledFor(); sf != "2025-11-10" {
		t.Errorf("expected scheduledFor 2025-11-10, got %q", sf)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestCreateTransaction_NotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newClient(srv).CreateTransaction(context.Background(), domain.Transaction{Type: domain.TypeDeposit, Amount: 1})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected exactly 1 call, got %d", calls)
	}
}

func TestPatchTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/transactions/t1" {
			t.Errorf("expected PATCH /transactions/t1, got %s %s", r.Method, r.URL.Path)
		}
		var fields map[string]any
		_ = json.NewDecoder(r.Body).Decode(&fields)
		if fields["status"] != "cancelled" {
			t.Errorf("expected status cancelled, got %v", fields["status"])
		}
		if v, ok := fields["processingUntil"]; !ok || v != nil {
			t.Errorf("expected processingUntil null, got %v", v)
		}
		_, _ = w.Write([]byte(`{"id":"t1","type":"payment","amount":10,"date":"2025-11-05","status":"cancelled","previousStatus":"scheduled"}`))
	}))
	defer srv.Close()

	updated, err := newClient(srv).PatchTransaction(context.Background(), "t1", map[string]any{
		"status":          domain.StatusCancelled,
		"previousStatus":  domain.StatusScheduled,
		"processingUntil": nil,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if updated.Status != domain.StatusCancelled || updated.PreviousStatus != domain.StatusScheduled {
		t.Errorf("expected cancelled/scheduled, got %s/%s", updated.Status, updated.PreviousStatus)
	}
}

func TestPatchTransaction_NotFound(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := newClient(srv).PatchTransaction(context.Background(), "gone", map[string]any{"status": "cancelled"})
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if notFound.ID != "gone" {
		t.Errorf("expected id gone, got %s", notFound.ID)
	}
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) || ext.Service != "jsonserver/patch" {
		t.Errorf("expected jsonserver/patch external error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected 404 not retried, got %d calls", calls)
	}
}

func TestDeleteTransaction(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if err := newClient(srv).DeleteTransaction(context.Background(), "t9"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if method != http.MethodDelete || path != "/transactions/t9" {
		t.Errorf("expected DELETE /transactions/t9, got %s %s", method, path)
	}
}

func TestClient_CircuitOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := jsonserver.NewClient(srv.Client(), srv.URL, resilience.NewCircuitBreaker("trip-test"),
		resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond}, zap.NewNop())

	var err error
	for i := 0; i < 6; i++ {
		_, err = c.ListTransactions(context.Background(), domain.ListFilter{})
	}
	var open *domain.ErrCircuitOpen
	if !errors.As(err, &open) {
		t.Fatalf("expected ErrCircuitOpen after repeated failures, got %v", err)
	}
}
