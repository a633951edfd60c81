package cli

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/boddenberg/pj-ledger-bfa-go/internal/domain"

	"github.com/google/subcommands"
	"github.com/olekukonko/tablewriter"
)

type listCmd struct {
	common
	query  string
	txType string
	status string
	all    bool
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list transactions grouped by day" }
func (*listCmd) Usage() string {
	return `ledgerctl list [-q <text>] [-type <type>] [-status <status>] [-all]

  Prints one table per day, newest day first, with the day total.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	c.common.setFlags(f)
	f.StringVar(&c.query, "q", "", "Search description or type.")
	f.StringVar(&c.txType, "type", "", "Only this transaction type.")
	f.StringVar(&c.status, "status", "", "Only this status.")
	f.BoolVar(&c.all, "all", false, "Include dismissed cancelled transactions.")
}

func (c *listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	q := domain.Query{
		Text:             c.query,
		Type:             domain.TransactionType(c.txType),
		Status:           domain.Status(c.status),
		IncludeDismissed: c.all,
	}
	if q.Type != "" && !q.Type.Valid() {
		fmt.Fprintf(c.stderr(), "Error: unknown type %q\n", c.txType)
		return subcommands.ExitUsageError
	}
	if q.Status != "" && !q.Status.Valid() {
		fmt.Fprintf(c.stderr(), "Error: unknown status %q\n", c.status)
		return subcommands.ExitUsageError
	}

	s, err := c.open(ctx, domain.ListFilter{})
	if err != nil {
		return c.fail(err)
	}

	groups := s.svc.Groups(q)
	if len(groups) == 0 {
		fmt.Fprintln(c.stdout(), "Nenhuma transação encontrada.")
	}
	for _, g := range groups {
		renderGroup(c.stdout(), g)
	}
	return s.close()
}

func renderGroup(w io.Writer, g domain.TransactionGroup) {
	title := g.DateKey
	if title == "" {
		title = "Sem data"
	}
	fmt.Fprintf(w, "\n%s\n", title)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Tipo", "Descrição", "Status", "Valor"})
	for _, t := range g.Items {
		table.Append([]string{
			t.ID,
			typeLabel(t),
			t.Description,
			string(t.Status),
			domain.FormatBRL(t.SignedMinor()),
		})
	}
	table.SetFooter([]string{"", "", "", "Total", domain.FormatBRL(g.TotalMinor)})
	table.Render()
}

func typeLabel(t domain.Transaction) string {
	if sf, ok := t.ScheduledFor(); ok {
		return fmt.Sprintf("%s (agendado %s)", t.Type, sf)
	}
	return string(t.Type)
}
