// Package cli implements the ledgerctl subcommands. Every command loads the
// ledger from the transactions backend, applies one operation through the
// ledger service, waits for the backend confirmations and prints the
// resulting notifications.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/boddenberg/pj-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/infra/clock"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/infra/jsonserver"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/infra/observability"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/service"

	"github.com/google/subcommands"
	"go.uber.org/zap"
)

// Commands lists every ledgerctl subcommand.
var Commands = []subcommands.Command{
	&listCmd{},
	&balanceCmd{},
	&addCmd{},
	&cancelCmd{},
	&restoreCmd{},
	&rmCmd{},
}

// common carries the flags shared by all commands.
type common struct {
	api      string
	timeout  time.Duration
	timezone string
	retries  int
	verbose  bool

	out io.Writer // stdout unless set by tests
	err io.Writer
}

func (c *common) setFlags(f *flag.FlagSet) {
	api := os.Getenv("LEDGER_API_URL")
	if api == "" {
		api = "http://localhost:4000"
	}
	f.StringVar(&c.api, "api", api, "Base URL of the transactions backend.")
	f.DurationVar(&c.timeout, "timeout", 10*time.Second, "Timeout of each backend call.")
	f.IntVar(&c.retries, "retries", 0, "Retries of a failed backend read, edit or delete.")
	f.StringVar(&c.timezone, "tz", "America/Sao_Paulo", "Timezone that defines today.")
	f.BoolVar(&c.verbose, "v", false, "Verbose logging.")
}

func (c *common) stdout() io.Writer {
	if c.out != nil {
		return c.out
	}
	return os.Stdout
}

func (c *common) stderr() io.Writer {
	if c.err != nil {
		return c.err
	}
	return os.Stderr
}

// session is one loaded ledger.
type session struct {
	svc      *service.LedgerService
	notifier *consoleNotifier
}

// open builds the ledger service against the backend and loads it.
func (c *common) open(ctx context.Context, filter domain.ListFilter) (*session, error) {
	level := "warn"
	if c.verbose {
		level = "debug"
	}
	logger := observability.NewLogger(level, "ledgerctl").With(zap.String("api", c.api))

	loc, err := time.LoadLocation(c.timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", c.timezone, err)
	}

	store := jsonserver.NewClient(
		&http.Client{Timeout: c.timeout},
		c.api,
		resilience.NewCircuitBreaker("jsonserver"),
		resilience.Config{MaxRetries: c.retries, InitialBackoff: 100 * time.Millisecond},
		logger,
	)
	notifier := &consoleNotifier{out: c.stdout(), err: c.stderr()}
	svc := service.NewLedgerService(store, notifier, clock.Real{}, observability.NewMetrics(), logger, service.Options{
		Location: loc,
	})

	if err := svc.FetchAll(ctx, filter); err != nil {
		svc.Close()
		return nil, err
	}
	logger.Debug("ledger loaded", zap.Int("size", svc.Size()), zap.String("timezone", loc.String()))
	return &session{svc: svc, notifier: notifier}, nil
}

// close waits for pending confirmations and reports whether any failed.
func (s *session) close() subcommands.ExitStatus {
	s.svc.Close()
	if s.notifier.failed() {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// consoleNotifier prints toasts as they arrive.
type consoleNotifier struct {
	mu     sync.Mutex
	out    io.Writer
	err    io.Writer
	errors int
}

func (n *consoleNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.out, "✓", msg)
}

func (n *consoleNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors++
	fmt.Fprintln(n.err, "✗", msg)
}

func (n *consoleNotifier) failed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.errors > 0
}

// fail prints err and returns ExitFailure.
func (c *common) fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(c.stderr(), "Error:", err)
	return subcommands.ExitFailure
}
