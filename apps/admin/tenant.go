package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ud-systems/UD-Leads-sub001/core/tenant"
)

func (cli *commandLine) tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage the companies using the application",
	}

	var nt tenant.NewTenant
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svcs, err := cli.services()
			if err != nil {
				return err
			}
			if err := nt.Validate(cli.validate, svcs.Tenants); err != nil {
				return cli.describe(err)
			}
			tn, err := svcs.Tenants.Create(cmd.Context(), nt)
			if err != nil {
				return errors.Wrap(err, "creating tenant")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tenant %q created: %s\n", tn.Slug, tn.ID)
			return nil
		},
	}
	createCmd.Flags().StringVar(&nt.Name, "name", "", "company name")
	createCmd.Flags().StringVar(&nt.Slug, "slug", "", "short name used to log in")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("slug")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svcs, err := cli.services()
			if err != nil {
				return err
			}
			tenants, err := svcs.Tenants.QueryAll(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "querying tenants")
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SLUG\tNAME\tACTIVE\tID")
			for _, tn := range tenants {
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", tn.Slug, tn.Name, tn.IsActive, tn.ID)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(createCmd, listCmd)
	return cmd
}
