package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/pj-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/handler"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/infra/clock"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/infra/jsonserver"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/infra/notify"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/infra/observability"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/service"

	"go.uber.org/zap"
)

// fakeJSONServer keeps /transactions documents in memory, the way json-server does.
type fakeJSONServer struct {
	mu     sync.Mutex
	docs   []map[string]any
	nextID int
}

func (s *fakeJSONServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/transactions"), "/")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && id == "":
		json.NewEncoder(w).Encode(s.docs)
	case r.Method == http.MethodPost && id == "":
		var doc map[string]any
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.nextID++
		doc["id"] = strconv.Itoa(s.nextID)
		s.docs = append(s.docs, doc)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(doc)
	case r.Method == http.MethodPatch:
		var fields map[string]any
		_ = json.NewDecoder(r.Body).Decode(&fields)
		for _, doc := range s.docs {
			if doc["id"] == id {
				for k, v := range fields {
					doc[k] = v
				}
				json.NewEncoder(w).Encode(doc)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{}`))
	case r.Method == http.MethodDelete:
		for i, doc := range s.docs {
			if doc["id"] == id {
				s.docs = append(s.docs[:i], s.docs[i+1:]...)
				w.Write([]byte(`{}`))
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{}`))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *fakeJSONServer) status(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range s.docs {
		if doc["id"] == id {
			v, _ := doc["status"].(string)
			return v
		}
	}
	return ""
}

// TestIntegration_FullFlow drives the router, the ledger service and the real
// json-server client against an in-memory backend.
func TestIntegration_FullFlow(t *testing.T) {
	backend := &fakeJSONServer{docs: []map[string]any{}}
	backendServer := httptest.NewServer(backend)
	defer backendServer.Close()

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	feed := notify.New(time.Minute, 20, metrics, logger)
	defer feed.Close()

	fake := clock.NewFake(time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC))
	store := jsonserver.NewClient(
		backendServer.Client(),
		backendServer.URL,
		resilience.NewCircuitBreaker("integration"),
		resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond},
		logger,
	)
	svc := service.NewLedgerService(store, feed, fake, metrics, logger, service.Options{ProcessingWindow: 10 * time.Second})
	defer svc.Close()

	router := handler.NewRouter(svc, feed, metrics, logger)
	srv := httptest.NewServer(router)
	defer srv.Close()

	post := func(path, body string) *http.Response {
		t.Helper()
		resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		return resp
	}

	// 1. Load the empty ledger
	resp := post("/v1/transactions/refresh", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d", resp.StatusCode)
	}

	// 2. Create an immediate deposit and a scheduled pix
	resp = post("/v1/transactions", `{"type":"deposit","description":"Salário","amount":1500,"date":"2025-11-01"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create deposit: expected 201, got %d", resp.StatusCode)
	}
	resp = post("/v1/transactions", `{"type":"pix","description":"Aluguel","amount":900,"pixType":"scheduled","scheduledFor":"2025-11-10"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create pix: expected 201, got %d", resp.StatusCode)
	}
	if backend.status("1") != "processing" || backend.status("2") != "scheduled" {
		t.Fatalf("expected processing/scheduled in backend, got %s/%s", backend.status("1"), backend.status("2"))
	}

	// 3. The sweep settles the deposit once its window elapses
	fake.Advance(10 * time.Second)
	svc.Wait()
	if got := backend.status("1"); got != "processed" {
		t.Errorf("expected deposit processed in backend, got %s", got)
	}

	// 4. Cancel and restore the pix
	resp = post("/v1/transactions/2/cancel", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("cancel: expected 202, got %d", resp.StatusCode)
	}
	svc.Wait()
	if got := backend.status("2"); got != "cancelled" {
		t.Errorf("expected pix cancelled in backend, got %s", got)
	}

	resp = post("/v1/transactions/2/restore", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("restore: expected 202, got %d", resp.StatusCode)
	}
	svc.Wait()
	if got := backend.status("2"); got != "scheduled" {
		t.Errorf("expected pix scheduled in backend, got %s", got)
	}

	// 5. Balance counts both records
	balResp, err := http.Get(srv.URL + "/v1/balance")
	if err != nil {
		t.Fatalf("GET /v1/balance: %v", err)
	}
	defer balResp.Body.Close()
	var bal struct {
		BalanceMinor int64 `json:"balanceMinor"`
	}
	json.NewDecoder(balResp.Body).Decode(&bal)
	if bal.BalanceMinor != 60000 {
		t.Errorf("expected balance 60000, got %d", bal.BalanceMinor)
	}

	// 6. A refetch agrees with the local state
	if err := svc.FetchAll(context.Background(), domain.ListFilter{}); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if got, _ := svc.Get("1"); got == nil || got.Status != domain.StatusProcessed {
		t.Errorf("expected deposit processed after refetch, got %+v", got)
	}
}
