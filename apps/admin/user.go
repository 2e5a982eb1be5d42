package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ud-systems/UD-Leads-sub001/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var (
		slug string
		nu   user.NewUser
	)
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user; the password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			tn, err := cli.tenant(ctx, slug)
			if err != nil {
				return err
			}
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}

			svcs := cli.svcs
			nu.TenantID = tn.ID
			nu.Password = pwd
			nu.PasswordConfirm = pwd
			if err := nu.Validate(cli.validate, svcs.Users); err != nil {
				return cli.describe(err)
			}
			usr, err := svcs.Users.Create(ctx, nu)
			if err != nil {
				return errors.Wrap(err, "creating user")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %q created in %q: %s\n", usr.Username, tn.Slug, usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&slug, "tenant", "", "tenant slug")
	cmd.Flags().StringVar(&nu.Username, "username", "", "login name")
	cmd.Flags().StringVar(&nu.Email, "email", "", "e-mail address")
	cmd.Flags().StringVar(&nu.Name, "name", "", "full name")
	cmd.Flags().StringArrayVar(&nu.Roles, "role", nil, "role, e.g. admin:owner (repeatable)")
	for _, name := range []string{"tenant", "username", "email"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var slug, uname string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password; the new one is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			tn, err := cli.tenant(ctx, slug)
			if err != nil {
				return err
			}
			svcs := cli.svcs
			usr, err := svcs.Users.GetByUsernameOrEmail(ctx, tn.ID, uname)
			if err != nil {
				return errors.Wrapf(err, "finding user %q", uname)
			}
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}

			uu := user.UpdateUser{Password: pwd, PasswordConfirm: pwd}
			if err := uu.Validate(usr, cli.validate, svcs.Users); err != nil {
				return cli.describe(err)
			}
			if _, err := svcs.Users.Update(ctx, usr, uu); err != nil {
				return errors.Wrap(err, "resetting password")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password of %q reset\n", usr.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&slug, "tenant", "", "tenant slug")
	cmd.Flags().StringVar(&uname, "username", "", "username or e-mail of the user")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
