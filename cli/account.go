package cli

import (
	"fmt"

	"chatdash/auth"

	"github.com/spf13/cobra"
)

func newRegisterCommand(opts *options) *cobra.Command {
	var in auth.RegisterInput
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a user account.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.directory.Register(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s %s (%s %s)\n", user.FirstName, user.LastName, user.CountryCode, user.MobileNumber)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.MobileNumber, "mobile", "", "Ten digit mobile number.")
	cmd.Flags().StringVar(&in.FirstName, "first", "", "First name.")
	cmd.Flags().StringVar(&in.LastName, "last", "", "Last name.")
	cmd.Flags().StringVar(&in.CountryCode, "country", "", "Dial code, e.g. +91.")
	return cmd
}

func newSignInCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "signin <mobile>",
		Short: "Sign in with a registered mobile number.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := auth.ValidateMobile(args[0]); err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.state.SignIn(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s %s\n", user.FirstName, user.LastName)
			return nil
		},
	}
}

func newSignOutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out the current user.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.state.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoAmICommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the signed-in user.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			user, ok := a.state.Current()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s %s)\n", user.FirstName, user.LastName, user.CountryCode, user.MobileNumber)
			return nil
		},
	}
}
