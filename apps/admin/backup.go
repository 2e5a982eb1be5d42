package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ud-systems/UD-Leads-sub001/core/backup"
)

func (cli *commandLine) backupCmd() *cobra.Command {
	var slug string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, list and restore tenant backups",
	}
	cmd.PersistentFlags().StringVar(&slug, "tenant", "", "tenant slug")
	_ = cmd.MarkPersistentFlagRequired("tenant")

	createCmd := &cobra.Command{
		Use:  "create",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			tn, err := cli.tenant(ctx, slug)
			if err != nil {
				return err
			}
			b, err := cli.svcs.Backups.Create(ctx, tn.ID, "", backup.KindManual)
			if err != nil {
				return errors.Wrap(err, "creating backup")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup %s created: %d leads, %d visits, %d bytes\n",
				b.ID, b.Counts.Leads, b.Counts.Visits, b.Size)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:  "list",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			tn, err := cli.tenant(ctx, slug)
			if err != nil {
				return err
			}
			backups, err := cli.svcs.Backups.List(ctx, tn.ID)
			if err != nil {
				return errors.Wrap(err, "listing backups")
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tCREATED\tLEADS\tVISITS\tSIZE")
			for _, b := range backups {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
					b.ID, b.Kind, b.CreatedAt.Format("2006-01-02 15:04"), b.Counts.Leads, b.Counts.Visits, b.Size)
			}
			return w.Flush()
		},
	}

	var id string
	restoreCmd := &cobra.Command{
		Use:   "restore",
		Short: "Replace the tenant's data with a backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			tn, err := cli.tenant(ctx, slug)
			if err != nil {
				return err
			}
			counts, err := cli.svcs.Backups.Restore(ctx, tn.ID, id)
			if err != nil {
				return errors.Wrapf(err, "restoring backup %s", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d territories, %d leads, %d visits, %d rules, %d settings\n",
				counts.Territories, counts.Leads, counts.Visits, counts.Rules, counts.Settings)
			return nil
		},
	}
	restoreCmd.Flags().StringVar(&id, "id", "", "backup ID")
	_ = restoreCmd.MarkFlagRequired("id")

	cmd.AddCommand(createCmd, listCmd, restoreCmd)
	return cmd
}
