package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/boddenberg/pj-ledger-bfa-go/internal/domain"

	"github.com/google/subcommands"
)

type addCmd struct {
	common
	txType       string
	amount       float64
	description  string
	date         string
	pixType      string
	scheduledFor string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "create a transaction" }
func (*addCmd) Usage() string {
	return `ledgerctl add -type <type> -amount <value> -description <text> [-date <yyyy-mm-dd>] [-pix-type normal|scheduled] [-scheduled-for <yyyy-mm-dd>]

  Creates a transaction. Immediate ones start as processing, future or
  scheduled pix ones as scheduled.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	c.common.setFlags(f)
	f.StringVar(&c.txType, "type", "", "deposit, transfer, payment, withdraw or pix.")
	f.Float64Var(&c.amount, "amount", 0, "Amount in reais, positive.")
	f.StringVar(&c.description, "description", "", "Description.")
	f.StringVar(&c.date, "date", "", "Date (yyyy-mm-dd). Optional for pix.")
	f.StringVar(&c.pixType, "pix-type", "normal", "Pix only: normal or scheduled.")
	f.StringVar(&c.scheduledFor, "scheduled-for", "", "Scheduled pix only: execution date.")
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	draft := domain.Draft{
		Type:        domain.TransactionType(c.txType),
		Description: c.description,
		Amount:      c.amount,
		Date:        c.date,
	}
	if draft.Type == domain.TypePix {
		draft.PixType = domain.PixType(c.pixType)
		draft.ScheduledFor = c.scheduledFor
	}

	s, err := c.open(ctx, domain.ListFilter{})
	if err != nil {
		return c.fail(err)
	}

	t, err := s.svc.Add(ctx, draft)
	if err != nil {
		s.svc.Close()
		return c.fail(err)
	}
	fmt.Fprintf(c.stdout(), "%s\t%s\t%s\n", t.ID, t.Status, domain.FormatBRL(t.SignedMinor()))
	return s.close()
}
