package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCategoryCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "category",
		Aliases: []string{"categories"},
		Short:   "Manage expense categories",
	}

	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a custom category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			added, err := s.app.Categories.Add(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !added {
				fmt.Fprintf(cmd.OutOrStdout(), "Category %q already exists or is blank\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added category %q\n", args[0])
			return nil
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a category; expenses keep their category name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.app.Categories.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed category %q\n", args[0])
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := s.app.Categories.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range list {
				if c.IsCustom {
					fmt.Fprintf(cmd.OutOrStdout(), "%s (custom)\n", c.Name)
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), c.Name)
			}
			return nil
		},
	}

	orphansCmd := &cobra.Command{
		Use:   "orphans",
		Short: "List categories used by expenses but no longer registered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := s.app.Categories.OrphanedCategories(cmd.Context())
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No orphaned categories.")
				return nil
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}

	cmd.AddCommand(addCmd, removeCmd, listCmd, orphansCmd)
	return cmd
}
