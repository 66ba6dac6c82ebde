package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fintrack/internal/aggregator"
)

func newSummaryCmd(s *session) *cobra.Command {
	var (
		period     periodFlags
		next, prev bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show income, expenses and balance for a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if next && prev {
				return errors.New("--next and --prev are mutually exclusive")
			}
			ctx := cmd.Context()
			c, err := period.cursor(s.app.Summary.Cursor())
			if err != nil {
				return err
			}
			view, err := s.app.Summary.SetMonth(ctx, c.Month, c.Year)
			if err != nil {
				return err
			}
			switch {
			case next:
				view, err = s.app.Summary.NextMonth(ctx)
			case prev:
				view, err = s.app.Summary.PreviousMonth(ctx)
			}
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), view)
			return nil
		},
	}
	period.bind(cmd)
	cmd.Flags().BoolVar(&next, "next", false, "show the month after the selected one")
	cmd.Flags().BoolVar(&prev, "prev", false, "show the month before the selected one")
	return cmd
}

func printSummary(w io.Writer, v aggregator.MonthView) {
	fmt.Fprintf(w, "Summary for %s\n", v.Cursor)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Income:\t%s\t\n", formatAmount(v.TotalIncome.Value()))
	fmt.Fprintf(tw, "Expenses:\t%s\t\n", formatAmount(v.TotalExpense.Value()))
	fmt.Fprintf(tw, "Balance:\t%s\t\n", formatAmount(v.Balance()))
	tw.Flush()

	if len(v.CategoryTotals) == 0 {
		return
	}
	fmt.Fprintln(w, "\nBy category:")
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, ct := range v.CategoryTotals {
		fmt.Fprintf(tw, "  %s\t%s\n", ct.Category, formatAmount(ct.Total))
	}
	tw.Flush()
}
