package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"chatdash/chatrooms"

	"github.com/spf13/cobra"
)

func newRoomsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "Manage the signed-in user's chatrooms (list, create, rename, delete).",
		Long: `Manage chatrooms of the signed-in user.

  chatdash rooms list
  chatdash rooms create <title>
  chatdash rooms rename <id> <title>
  chatdash rooms delete <id>`,
		SilenceUsage: true,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List chatrooms.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := openApp(cmd.Context(), opts.cfg)
				if err != nil {
					return err
				}
				defer a.Close()

				user, err := a.currentUser()
				if err != nil {
					return err
				}
				list, err := a.rooms.List(cmd.Context(), user.MobileNumber)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No chatrooms yet.")
					return nil
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTITLE\tCREATED")
				for _, room := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", room.ID, room.Title, room.CreatedAt.Local().Format("2006-01-02 15:04"))
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "create <title>",
			Short: "Create a chatroom.",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := openApp(cmd.Context(), opts.cfg)
				if err != nil {
					return err
				}
				defer a.Close()

				user, err := a.currentUser()
				if err != nil {
					return err
				}
				room, err := a.rooms.Create(cmd.Context(), user.MobileNumber, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s %q\n", room.ID, room.Title)
				return nil
			},
		},
		&cobra.Command{
			Use:   "rename <id> <title>",
			Short: "Rename a chatroom.",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := openApp(cmd.Context(), opts.cfg)
				if err != nil {
					return err
				}
				defer a.Close()

				user, err := a.currentUser()
				if err != nil {
					return err
				}
				if _, err := a.ownedRoom(cmd.Context(), args[0], user.MobileNumber); err != nil {
					return err
				}
				title := strings.Join(args[1:], " ")
				if err := a.rooms.Update(cmd.Context(), args[0], chatrooms.Patch{Title: &title}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", args[0], strings.TrimSpace(title))
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a chatroom.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := openApp(cmd.Context(), opts.cfg)
				if err != nil {
					return err
				}
				defer a.Close()

				user, err := a.currentUser()
				if err != nil {
					return err
				}
				if _, err := a.ownedRoom(cmd.Context(), args[0], user.MobileNumber); err != nil {
					return err
				}
				if err := a.rooms.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}
