package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

func newProfileCmd(app appFunc, out printerFunc) *cobra.Command {
	cmd := &cobra.Command{Use: "profile", Short: "Manage profiles"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List profiles; the active one is marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := app().book.State()
			out(cmd).emit(st, func(w io.Writer) {
				for i, p := range st.Profiles {
					mark := " "
					if p.ID == st.ActiveID() {
						mark = "*"
					}
					fmt.Fprintf(w, "%s %d %s %s (%d journals)\n", mark, i, p.ID, p.Name, len(p.Data.Journals))
				}
			})
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME",
		Short: "Create a profile and switch to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			a.goOnline(cmd.Context())
			id, err := a.book.AddProfile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out(cmd).emit(map[string]string{"id": id}, func(w io.Writer) { fmt.Fprintln(w, id) })
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename a profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			a.goOnline(cmd.Context())
			return a.book.RenameProfile(cmd.Context(), args[0], args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm ID",
		Short: "Delete a profile and everything in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			a.goOnline(cmd.Context())
			return a.book.DeleteProfile(cmd.Context(), args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "use ID",
		Short: "Switch the active profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			a.goOnline(cmd.Context())
			return a.book.SwitchProfile(cmd.Context(), args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "move ID POSITION",
		Short: "Move a profile to a zero-based position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("position: %w", err)
			}
			a := app()
			a.goOnline(cmd.Context())
			return a.book.MoveProfile(cmd.Context(), args[0], pos)
		},
	})
	return cmd
}
