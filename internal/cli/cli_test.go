package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/subcommands"
)

const backendRecords = `[
	{"id":"1","type":"withdraw","description":"Saque","amount":50,"date":"2025-11-01","status":"processed"},
	{"id":"2","type":"deposit","description":"Depósito","amount":120,"date":"2025-11-01","status":"processed"},
	{"id":"3","type":"payment","description":"Boleto","amount":10,"date":"2099-11-02","status":"scheduled"}
]`

type backend struct {
	mu      sync.Mutex
	patches map[string]map[string]any
}

func newBackend(t *testing.T) (*httptest.Server, *backend) {
	b := &backend{patches: map[string]map[string]any{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/transactions":
			_, _ = w.Write([]byte(backendRecords))
		case r.Method == http.MethodPatch:
			var fields map[string]any
			_ = json.NewDecoder(r.Body).Decode(&fields)
			id := strings.TrimPrefix(r.URL.Path, "/transactions/")
			b.mu.Lock()
			b.patches[id] = fields
			b.mu.Unlock()
			_, _ = w.Write([]byte(`{"id":"` + id + `","type":"payment","description":"Boleto","amount":10,"date":"2099-11-02","status":"cancelled","previousStatus":"scheduled"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, b
}

func run(t *testing.T, cmd subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	f := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetFlags(f)
	if err := f.Parse(args); err != nil {
		t.Fatalf("expected flags to parse, got %v", err)
	}
	return cmd.Execute(context.Background(), f)
}

func TestList(t *testing.T) {
	srv, _ := newBackend(t)
	var out, errOut bytes.Buffer
	cmd := &listCmd{common: common{out: &out, err: &errOut}}

	if status := run(t, cmd, "-api", srv.URL, "-tz", "UTC"); status != subcommands.ExitSuccess {
		t.Fatalf("expected success, got %v: %s", status, errOut.String())
	}
	s := out.String()
	for _, want := range []string{"02/11/2099", "01/11/2025", "Saque", "TOTAL"} {
		if !strings.Contains(strings.ToUpper(s), strings.ToUpper(want)) {
			t.Errorf("expected %q in output:\n%s", want, s)
		}
	}
	if strings.Index(s, "02/11/2099") > strings.Index(s, "01/11/2025") {
		t.Error("expected newest day first")
	}
}

func TestList_BadStatus(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := &listCmd{common: common{out: &out, err: &errOut}}
	if status := run(t, cmd, "-status", "pending"); status != subcommands.ExitUsageError {
		t.Errorf("expected usage error, got %v", status)
	}
}

// flakyBackend fails the first listing with a 503, then serves the records.
func flakyBackend(t *testing.T) (*httptest.Server, *atomic.Int32) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(backendRecords))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestOpen_NoRetryByDefault(t *testing.T) {
	srv, hits := flakyBackend(t)
	var out, errOut bytes.Buffer
	cmd := &balanceCmd{common: common{out: &out, err: &errOut}}

	if status := run(t, cmd, "-api", srv.URL, "-tz", "UTC"); status != subcommands.ExitFailure {
		t.Fatalf("expected failure, got %v", status)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("expected 1 backend call, got %d", got)
	}
	if !strings.Contains(errOut.String(), "Error:") {
		t.Errorf("expected error on stderr, got %q", errOut.String())
	}
}

func TestOpen_RetriesWhenAsked(t *testing.T) {
	srv, hits := flakyBackend(t)
	var out, errOut bytes.Buffer
	cmd := &balanceCmd{common: common{out: &out, err: &errOut}}

	if status := run(t, cmd, "-api", srv.URL, "-tz", "UTC", "-retries", "1", "-v"); status != subcommands.ExitSuccess {
		t.Fatalf("expected success, got %v: %s", status, errOut.String())
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("expected 2 backend calls, got %d", got)
	}
	if !strings.Contains(out.String(), "60,00") {
		t.Errorf("expected balance 60,00, got %q", out.String())
	}
}

func TestBalance(t *testing.T) {
	srv, _ := newBackend(t)
	var out, errOut bytes.Buffer
	cmd := &balanceCmd{common: common{out: &out, err: &errOut}}

	if status := run(t, cmd, "-api", srv.URL, "-tz", "UTC"); status != subcommands.ExitSuccess {
		t.Fatalf("expected success, got %v: %s", status, errOut.String())
	}
	if !strings.Contains(out.String(), "60,00") {
		t.Errorf("expected balance 60,00, got %q", out.String())
	}
}

func TestCancel(t *testing.T) {
	srv, b := newBackend(t)
	var out, errOut bytes.Buffer
	cmd := &cancelCmd{common: common{out: &out, err: &errOut}}

	if status := run(t, cmd, "-api", srv.URL, "-tz", "UTC", "3"); status != subcommands.ExitSuccess {
		t.Fatalf("expected success, got %v: %s", status, errOut.String())
	}
	b.mu.Lock()
	fields := b.patches["3"]
	b.mu.Unlock()
	if fields["status"] != "cancelled" || fields["previousStatus"] != "scheduled" {
		t.Errorf("expected cancel patch, got %v", fields)
	}
	if !strings.Contains(out.String(), "Transação cancelada.") {
		t.Errorf("expected cancel toast, got %q", out.String())
	}
}

func TestCancel_Settled(t *testing.T) {
	srv, _ := newBackend(t)
	var out, errOut bytes.Buffer
	cmd := &cancelCmd{common: common{out: &out, err: &errOut}}

	if status := run(t, cmd, "-api", srv.URL, "-tz", "UTC", "1"); status != subcommands.ExitFailure {
		t.Errorf("expected failure cancelling a processed transaction, got %v", status)
	}
}

func TestCancel_NeedsID(t *testing.T) {
	cmd := &cancelCmd{common: common{out: &bytes.Buffer{}, err: &bytes.Buffer{}}}
	if status := run(t, cmd); status != subcommands.ExitUsageError {
		t.Errorf("expected usage error, got %v", status)
	}
}
