package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/and161185/noteloom/internal/errs"
	"github.com/and161185/noteloom/internal/model"
	"github.com/spf13/cobra"
)

func activeData(a *app) (model.AppState, error) {
	p, ok := a.book.Active()
	if !ok {
		return model.AppState{}, fmt.Errorf("no active profile, create one with 'profile add': %w", errs.ErrNotFound)
	}
	return p.Data, nil
}

func newJournalCmd(app appFunc, out printerFunc) *cobra.Command {
	cmd := &cobra.Command{Use: "journal", Short: "Manage journals of the active profile"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List journals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := activeData(app())
			if err != nil {
				return err
			}
			counts := map[string]int{}
			for _, e := range data.Entries {
				counts[e.JournalID]++
			}
			out(cmd).emit(data.Journals, func(w io.Writer) {
				for _, j := range data.Journals {
					fmt.Fprintf(w, "%s %s (%d entries)\n", j.ID, j.Name, counts[j.ID])
				}
			})
			return nil
		},
	})

	var template string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			a.goOnline(cmd.Context())
			id, err := a.book.AddJournal(cmd.Context(), args[0], template)
			if err != nil {
				return err
			}
			out(cmd).emit(map[string]string{"id": id}, func(w io.Writer) { fmt.Fprintln(w, id) })
			return nil
		},
	}
	add.Flags().StringVar(&template, "template", "", "default template id")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename a journal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			a.goOnline(cmd.Context())
			return a.book.RenameJournal(cmd.Context(), args[0], args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm ID",
		Short: "Delete a journal and its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			a.goOnline(cmd.Context())
			return a.book.DeleteJournal(cmd.Context(), args[0])
		},
	})
	return cmd
}

func newEntryCmd(app appFunc, out printerFunc) *cobra.Command {
	cmd := &cobra.Command{Use: "entry", Short: "Manage entries of the active profile"}

	var listJournal string
	list := &cobra.Command{
		Use:   "list",
		Short: "List entries, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := activeData(app())
			if err != nil {
				return err
			}
			entries := make([]model.Entry, 0, len(data.Entries))
			for _, e := range data.Entries {
				if listJournal == "" || e.JournalID == listJournal {
					entries = append(entries, e)
				}
			}
			sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt < entries[j].CreatedAt })
			out(cmd).emit(entries, func(w io.Writer) {
				for _, e := range entries {
					fmt.Fprintf(w, "%s %s %s %s\n", e.ID, e.CreatedAt, e.JournalID, e.Title)
				}
			})
			return nil
		},
	}
	list.Flags().StringVar(&listJournal, "journal", "", "only entries of this journal")
	cmd.AddCommand(list)

	var (
		journalID  string
		templateID string
		title      string
		fields     []string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Create an entry",
		Long: `Add creates an entry in a journal of the active profile. Block and field
values are given as --field KEY=VALUE, keyed by block or custom field id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data := map[string]any{}
			for _, f := range fields {
				k, v, ok := strings.Cut(f, "=")
				if !ok || k == "" {
					return fmt.Errorf("field %q is not KEY=VALUE: %w", f, errs.ErrInvalid)
				}
				data[k] = v
			}
			a := app()
			a.goOnline(cmd.Context())
			id, err := a.book.AddEntry(cmd.Context(), model.Entry{
				JournalID:  journalID,
				TemplateID: templateID,
				Title:      title,
				Data:       data,
			})
			if err != nil {
				return err
			}
			out(cmd).emit(map[string]string{"id": id}, func(w io.Writer) { fmt.Fprintln(w, id) })
			return nil
		},
	}
	add.Flags().StringVarP(&journalID, "journal", "j", "", "journal id (required)")
	add.Flags().StringVar(&templateID, "template", "", "template id")
	add.Flags().StringVarP(&title, "title", "t", "", "entry title")
	add.Flags().StringArrayVarP(&fields, "field", "f", nil, "block or field value KEY=VALUE (repeatable)")
	_ = add.MarkFlagRequired("journal")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "rm ID",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			a.goOnline(cmd.Context())
			return a.book.DeleteEntry(cmd.Context(), args[0])
		},
	})
	return cmd
}
