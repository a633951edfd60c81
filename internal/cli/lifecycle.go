package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/boddenberg/pj-ledger-bfa-go/internal/domain"

	"github.com/google/subcommands"
)

// byID runs op on the single id argument.
func (c *common) byID(ctx context.Context, f *flag.FlagSet, op func(context.Context, *session, string) error) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(c.stderr(), "Error: expected exactly one transaction id")
		return subcommands.ExitUsageError
	}
	s, err := c.open(ctx, domain.ListFilter{})
	if err != nil {
		return c.fail(err)
	}
	if err := op(ctx, s, f.Arg(0)); err != nil {
		s.svc.Close()
		return c.fail(err)
	}
	return s.close()
}

type cancelCmd struct {
	common
}

func (*cancelCmd) Name() string     { return "cancel" }
func (*cancelCmd) Synopsis() string { return "cancel a scheduled or processing transaction" }
func (*cancelCmd) Usage() string {
	return `ledgerctl cancel <id>
`
}

func (c *cancelCmd) SetFlags(f *flag.FlagSet) { c.common.setFlags(f) }

func (c *cancelCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.byID(ctx, f, func(ctx context.Context, s *session, id string) error {
		_, err := s.svc.Cancel(ctx, id)
		return err
	})
}

type restoreCmd struct {
	common
}

func (*restoreCmd) Name() string     { return "restore" }
func (*restoreCmd) Synopsis() string { return "restore a cancelled transaction" }
func (*restoreCmd) Usage() string {
	return `ledgerctl restore <id>
`
}

func (c *restoreCmd) SetFlags(f *flag.FlagSet) { c.common.setFlags(f) }

func (c *restoreCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.byID(ctx, f, func(ctx context.Context, s *session, id string) error {
		_, err := s.svc.Restore(ctx, id)
		return err
	})
}

type rmCmd struct {
	common
}

func (*rmCmd) Name() string     { return "rm" }
func (*rmCmd) Synopsis() string { return "delete a transaction" }
func (*rmCmd) Usage() string {
	return `ledgerctl rm <id>

  Deletes a transaction from the backend. Processed ones cannot be deleted.
`
}

func (c *rmCmd) SetFlags(f *flag.FlagSet) { c.common.setFlags(f) }

func (c *rmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.byID(ctx, f, func(ctx context.Context, s *session, id string) error {
		return s.svc.Remove(ctx, id)
	})
}
