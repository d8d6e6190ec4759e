package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/and161185/noteloom/internal/errs"
	"github.com/and161185/noteloom/internal/model"
	"github.com/spf13/cobra"
)

// setSetting returns s with the JSON field key set from its text form.
func setSetting(s model.Settings, key, value string) (model.Settings, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return s, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return s, err
	}
	cur, ok := m[key]
	if !ok {
		return s, fmt.Errorf("unknown setting %q: %w", key, errs.ErrInvalid)
	}

	var enc []byte
	switch cur[0] {
	case '"':
		enc, err = json.Marshal(value)
	default:
		f, perr := strconv.ParseFloat(value, 64)
		if perr != nil {
			return s, fmt.Errorf("setting %q needs a number: %w", key, errs.ErrInvalid)
		}
		enc, err = json.Marshal(f)
	}
	if err != nil {
		return s, err
	}
	m[key] = enc

	b, err = json.Marshal(m)
	if err != nil {
		return s, err
	}
	var out model.Settings
	if err := json.Unmarshal(b, &out); err != nil {
		return s, fmt.Errorf("setting %q: %w", key, errs.ErrInvalid)
	}
	return out, nil
}

func newSettingsCmd(app appFunc, out printerFunc) *cobra.Command {
	cmd := &cobra.Command{Use: "settings", Short: "Show or change appearance settings"}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := app().settings.Get()
			out(cmd).emit(s, func(w io.Writer) {
				fmt.Fprintf(w, "theme:       %s\n", s.Theme)
				fmt.Fprintf(w, "accentColor: %s\n", s.AccentColor)
				fmt.Fprintf(w, "fontFamily:  %s\n", s.FontFamily)
				fmt.Fprintf(w, "fontSize:    %g\n", s.FontSize)
				fmt.Fprintf(w, "lineSpacing: %g\n", s.LineSpacing)
				fmt.Fprintf(w, "textWidth:   %s\n", s.TextWidth)
				fmt.Fprintf(w, "viewDensity: %s\n", s.ViewDensity)
			})
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one setting, e.g. 'settings set theme light'",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			a.goOnline(cmd.Context())
			return a.settings.Update(cmd.Context(), func(s model.Settings) (model.Settings, error) {
				return setSetting(s, args[0], args[1])
			})
		},
	})
	return cmd
}
