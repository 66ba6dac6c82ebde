package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

type recordFlags struct {
	amount      string
	party       string // category for expenses, source for incomes
	description string
	date        string
}

func (f *recordFlags) bind(cmd *cobra.Command, partyFlag, partyUsage string, update bool) {
	cmd.Flags().StringVarP(&f.amount, "amount", "a", "", "amount, dot or comma as decimal separator")
	cmd.Flags().StringVarP(&f.party, partyFlag, partyFlag[:1], "", partyUsage)
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "free-form note")
	cmd.Flags().StringVar(&f.date, "date", "", "day of the record as YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired(partyFlag)
	if update {
		_ = cmd.MarkFlagRequired("date")
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

type periodFlags struct {
	month int
	year  int
}

func (f *periodFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.month, "month", "m", 0, "month 1-12 (default current)")
	cmd.Flags().IntVarP(&f.year, "year", "y", 0, "year (default current)")
}

// cursor resolves the flags against the aggregator's current month.
func (f periodFlags) cursor(current core.Cursor) (core.Cursor, error) {
	month, year := current.Month, current.Year
	if f.month != 0 {
		month = f.month
	}
	if f.year != 0 {
		year = f.year
	}
	return core.NewCursor(month, year)
}

func newExpenseCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expense",
		Short: "Record, change and list expenses",
	}

	var add recordFlags
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Record an expense",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			form, err := add.expenseForm(s.env.now())
			if err != nil {
				return err
			}
			e, err := s.app.Ledger.AddExpense(cmd.Context(), form)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added expense %d: %s %s on %s\n",
				e.ID, formatAmount(e.Amount), e.Category, e.Time().Format(time.DateOnly))
			return nil
		},
	}
	add.bind(addCmd, "category", "registered category name", false)

	var upd recordFlags
	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			form, err := upd.expenseForm(s.env.now())
			if err != nil {
				return err
			}
			if _, err := s.app.Ledger.UpdateExpense(cmd.Context(), id, form); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated expense %d\n", id)
			return nil
		},
	}
	upd.bind(updateCmd, "category", "registered category name", true)

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := s.app.Ledger.DeleteExpense(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted expense %d\n", id)
			return nil
		},
	}

	var period periodFlags
	var category string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the expenses of a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := period.cursor(s.app.Summary.Cursor())
			if err != nil {
				return err
			}
			view, err := s.app.Summary.SetMonth(cmd.Context(), c.Month, c.Year)
			if err != nil {
				return err
			}
			expenses := view.Expenses
			if category != "" {
				if expenses, err = s.app.Summary.CategoryExpenses(cmd.Context(), category); err != nil {
					return err
				}
			}
			printExpenses(cmd.OutOrStdout(), expenses)
			return nil
		},
	}
	period.bind(listCmd)
	listCmd.Flags().StringVarP(&category, "category", "c", "", "only this category")

	cmd.AddCommand(addCmd, updateCmd, deleteCmd, listCmd)
	return cmd
}

func newIncomeCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "income",
		Short: "Record, change and list incomes",
	}

	var add recordFlags
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Record an income",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			form, err := add.incomeForm(s.env.now())
			if err != nil {
				return err
			}
			in, err := s.app.Ledger.AddIncome(cmd.Context(), form)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added income %d: %s %s on %s\n",
				in.ID, formatAmount(in.Amount), in.Source, in.Time().Format(time.DateOnly))
			return nil
		},
	}
	add.bind(addCmd, "source", "where the money came from", false)

	var upd recordFlags
	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace an income",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			form, err := upd.incomeForm(s.env.now())
			if err != nil {
				return err
			}
			if _, err := s.app.Ledger.UpdateIncome(cmd.Context(), id, form); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated income %d\n", id)
			return nil
		},
	}
	upd.bind(updateCmd, "source", "where the money came from", true)

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an income",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := s.app.Ledger.DeleteIncome(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted income %d\n", id)
			return nil
		},
	}

	var period periodFlags
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the incomes of a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := period.cursor(s.app.Summary.Cursor())
			if err != nil {
				return err
			}
			view, err := s.app.Summary.SetMonth(cmd.Context(), c.Month, c.Year)
			if err != nil {
				return err
			}
			printIncomes(cmd.OutOrStdout(), view.Incomes)
			return nil
		},
	}
	period.bind(listCmd)

	cmd.AddCommand(addCmd, updateCmd, deleteCmd, listCmd)
	return cmd
}

func (f recordFlags) expenseForm(now time.Time) (services.ExpenseForm, error) {
	at, err := parseDay(f.date, now)
	if err != nil {
		return services.ExpenseForm{}, err
	}
	return services.ExpenseForm{Amount: f.amount, Category: f.party, Description: f.description, Date: at}, nil
}

func (f recordFlags) incomeForm(now time.Time) (services.IncomeForm, error) {
	at, err := parseDay(f.date, now)
	if err != nil {
		return services.IncomeForm{}, err
	}
	return services.IncomeForm{Amount: f.amount, Source: f.party, Description: f.description, Date: at}, nil
}

func printExpenses(w io.Writer, expenses []core.Expense) {
	if len(expenses) == 0 {
		fmt.Fprintln(w, "No expenses.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tCATEGORY\tAMOUNT\tDESCRIPTION")
	for _, e := range expenses {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.ID, e.Time().Format(time.DateOnly), e.Category, formatAmount(e.Amount), e.Description)
	}
	tw.Flush()
}

func printIncomes(w io.Writer, incomes []core.Income) {
	if len(incomes) == 0 {
		fmt.Fprintln(w, "No incomes.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tSOURCE\tAMOUNT\tDESCRIPTION")
	for _, in := range incomes {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", in.ID, in.Time().Format(time.DateOnly), in.Source, formatAmount(in.Amount), in.Description)
	}
	tw.Flush()
}
