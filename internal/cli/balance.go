package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/boddenberg/pj-ledger-bfa-go/internal/domain"

	"github.com/google/subcommands"
)

type balanceCmd struct {
	common
}

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "print the ledger balance" }
func (*balanceCmd) Usage() string {
	return `ledgerctl balance

  Prints the signed sum of all transactions. Cancelled and failed ones count as zero.
`
}

func (c *balanceCmd) SetFlags(f *flag.FlagSet) { c.common.setFlags(f) }

func (c *balanceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := c.open(ctx, domain.ListFilter{})
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprintln(c.stdout(), domain.FormatBRL(s.svc.Balance()))
	return s.close()
}
