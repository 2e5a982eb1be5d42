package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ud-systems/UD-Leads-sub001/services/spreadsheet"
)

func (cli *commandLine) leadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Bulk lead operations",
	}

	var slug, path, actorName string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import leads from an .xlsx or .csv file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			tn, err := cli.tenant(ctx, slug)
			if err != nil {
				return err
			}
			actor, err := cli.svcs.Users.GetByUsernameOrEmail(ctx, tn.ID, actorName)
			if err != nil {
				return errors.Wrapf(err, "finding user %q", actorName)
			}

			file, err := os.Open(path)
			if err != nil {
				return errors.Wrap(err, "opening file")
			}
			defer file.Close()
			rows, err := spreadsheet.ReadLeads(file, filepath.Base(path))
			if err != nil {
				return errors.Wrap(err, "reading file")
			}

			res, err := cli.svcs.Leads.Import(ctx, tn.ID, rows, cli.validate, cli.translator, actor)
			if err != nil {
				return errors.Wrap(err, "importing leads")
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d leads created, %d rows skipped\n", res.Created, len(res.Skipped))
			for _, s := range res.Skipped {
				fmt.Fprintf(out, "  line %d: %s\n", s.Line, s.Reason)
			}
			return nil
		},
	}
	importCmd.Flags().StringVar(&slug, "tenant", "", "tenant slug")
	importCmd.Flags().StringVar(&path, "file", "", "path of the file to import")
	importCmd.Flags().StringVar(&actorName, "actor", "", "username of the user the leads are created by")
	for _, name := range []string{"tenant", "file", "actor"} {
		_ = importCmd.MarkFlagRequired(name)
	}

	cmd.AddCommand(importCmd)
	return cmd
}
