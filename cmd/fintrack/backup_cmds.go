package main

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/services"
)

func newExportCmd(s *session) *cobra.Command {
	var private bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the whole ledger to a JSON backup file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			export := s.app.Backups.Export
			if private {
				export = s.app.Backups.ExportPrivate
			}
			res, err := export(cmd.Context())
			if err != nil {
				return err
			}
			if res.Fallback() {
				fmt.Fprintf(cmd.ErrOrStderr(), "Could not write to the downloads directory (%v), used the private backup directory\n", res.PrimaryErr)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", res.Path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&private, "private", false, "write to the private backup directory only")
	return cmd
}

func newImportCmd(s *session) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Add the records of a JSON backup to the ledger",
		Long:  `Import shows how many records the backup holds and asks for confirmation before adding them. Records are appended with fresh ids; existing records are kept.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			preview, err := s.app.Backups.PreviewFile(ctx, args[0])
			if err != nil {
				return err
			}
			printPreview(cmd, preview)

			if !yes && !confirm(cmd, "Import these records?") {
				fmt.Fprintln(cmd.OutOrStdout(), "Import cancelled.")
				return nil
			}

			res, err := s.app.Backups.Import(ctx, preview.Snapshot)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d expenses and %d incomes\n", res.Expenses, res.Incomes)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "import without asking")
	return cmd
}

func newBackupsCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List backups in the private backup directory, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			files, err := s.app.Backups.ListBackups()
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No backups.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED")
			for _, f := range files {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", f.Name, f.Size, f.ModTime.Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
}

func newRestoreLatestCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "restore-latest",
		Short: "Add the records of the last stored snapshot to the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, ok, err := s.app.Backups.RestoreLatest(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "No stored snapshot.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d expenses and %d incomes\n", res.Expenses, res.Incomes)
			return nil
		},
	}
}

func printPreview(cmd *cobra.Command, p services.Preview) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Backup contains %d expenses and %d incomes", p.Expenses, p.Incomes)
	if p.Snapshot.BackupDate > 0 {
		fmt.Fprintf(out, " (taken %s)", p.Snapshot.Time().Format(time.DateTime))
	}
	fmt.Fprintln(out)
}

func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", question)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
