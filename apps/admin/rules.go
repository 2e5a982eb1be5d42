package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (cli *commandLine) rulesCmd() *cobra.Command {
	var slug, path string
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Import and export conversion rules as YAML",
	}
	cmd.PersistentFlags().StringVar(&slug, "tenant", "", "tenant slug")
	_ = cmd.MarkPersistentFlagRequired("tenant")

	importCmd := &cobra.Command{
		Use:  "import",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			tn, err := cli.tenant(ctx, slug)
			if err != nil {
				return err
			}
			file, err := os.Open(path)
			if err != nil {
				return errors.Wrap(err, "opening file")
			}
			defer file.Close()

			sum, err := cli.svcs.Rules.ImportYAML(ctx, tn.ID, file, cli.validate)
			if err != nil {
				return cli.describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d rules created, %d updated\n", sum.Created, sum.Updated)
			return nil
		},
	}
	importCmd.Flags().StringVar(&path, "file", "", "YAML file")
	_ = importCmd.MarkFlagRequired("file")

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the rules to --file, or to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			tn, err := cli.tenant(ctx, slug)
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if path != "" {
				file, err := os.Create(path)
				if err != nil {
					return errors.Wrap(err, "creating file")
				}
				defer file.Close()
				w = file
			}
			return errors.Wrap(cli.svcs.Rules.ExportYAML(ctx, tn.ID, w), "exporting rules")
		},
	}
	exportCmd.Flags().StringVar(&path, "file", "", "output file")

	cmd.AddCommand(importCmd, exportCmd)
	return cmd
}
