package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/and161185/noteloom/internal/auth"
	"github.com/and161185/noteloom/internal/errs"
	"github.com/and161185/noteloom/internal/model"
	"github.com/and161185/noteloom/internal/syncer"
	"github.com/spf13/cobra"
)

func newLoginCmd(app appFunc, out printerFunc, d deps) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store credentials (username and secret phrase) on this device",
		Long: `Login derives the user id from the username and secret phrase and stores
them locally. The same credentials on another device reach the same data.
The secret phrase is read from the terminal, or from stdin when piped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			if strings.TrimSpace(username) == "" {
				return fmt.Errorf("--username is required: %w", errs.ErrInvalid)
			}
			var secret string
			var err error
			if d.isTerminal() {
				fmt.Fprint(cmd.ErrOrStderr(), "Secret phrase: ")
				secret, err = d.readSecret()
				fmt.Fprintln(cmd.ErrOrStderr())
			} else {
				secret, err = readLine(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read secret: %w", err)
			}
			id, err := a.accounts.ImportCredentials(cmd.Context(), username, secret)
			if err != nil {
				return err
			}

			res := struct {
				UserUUID string `json:"user_uuid"`
				Remote   string `json:"remote"`
			}{UserUUID: id, Remote: "disabled"}
			if a.cfg.SyncEnabled() {
				res.Remote = "failed"
				if auth.New(a.backend, a.log).Authenticate(cmd.Context(), strings.TrimSpace(username), strings.TrimSpace(secret), id) {
					res.Remote = "ok"
				}
			}
			out(cmd).emit(res, func(w io.Writer) {
				fmt.Fprintf(w, "Logged in. User id: %s\n", id)
				fmt.Fprintf(w, "Remote: %s\n", res.Remote)
			})
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	return cmd
}

type statusView struct {
	Username    string               `json:"username,omitempty"`
	UserUUID    string               `json:"user_uuid,omitempty"`
	SyncEnabled bool                 `json:"sync_enabled"`
	BackendURL  string               `json:"backend_url,omitempty"`
	Profiles    int                  `json:"profiles"`
	Active      string               `json:"active_profile,omitempty"`
	LastSync    map[string]time.Time `json:"last_sync"`
}

func newStatusCmd(app appFunc, out printerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show account, sync configuration and last sync times",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			ctx := cmd.Context()
			creds, _, err := a.accounts.Credentials(ctx)
			if err != nil {
				return err
			}
			v := statusView{
				Username:    creds.Username,
				UserUUID:    creds.UserUUID,
				SyncEnabled: a.cfg.SyncEnabled(),
				BackendURL:  a.cfg.BackendURL,
				Profiles:    len(a.profiles.Get().Profiles),
				LastSync:    map[string]time.Time{},
			}
			if p, ok := a.book.Active(); ok {
				v.Active = p.Name
			}
			for _, k := range []string{model.KeyProfilesState, model.KeySettings} {
				if t, ok := syncer.ReadLastSync(ctx, a.store, k); ok {
					v.LastSync[k] = t
				}
			}
			out(cmd).emit(v, func(w io.Writer) {
				if v.UserUUID == "" {
					fmt.Fprintln(w, "Not logged in")
				} else {
					fmt.Fprintf(w, "User:     %s (%s)\n", v.Username, v.UserUUID)
				}
				if v.SyncEnabled {
					fmt.Fprintf(w, "Sync:     %s\n", v.BackendURL)
				} else {
					fmt.Fprintln(w, "Sync:     disabled (local only)")
				}
				fmt.Fprintf(w, "Profiles: %d, active: %s\n", v.Profiles, v.Active)
				for _, k := range []string{model.KeyProfilesState, model.KeySettings} {
					if t, ok := v.LastSync[k]; ok {
						fmt.Fprintf(w, "Last sync %s: %s\n", k, t.Local().Format(time.DateTime))
					} else {
						fmt.Fprintf(w, "Last sync %s: never\n", k)
					}
				}
			})
			return nil
		},
	}
}

func newSyncCmd(app appFunc, out printerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push profiles and settings to the backend now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			res, err := a.accounts.SyncNow(cmd.Context(), a.targets()...)
			if errors.Is(err, errs.ErrUnauthorized) && len(res) == 0 {
				return fmt.Errorf("authentication failed: %w", err)
			}
			type row struct {
				Key      string    `json:"key"`
				LastSync time.Time `json:"last_sync,omitzero"`
				Error    string    `json:"error,omitempty"`
			}
			rows := make([]row, 0, len(res))
			for _, r := range res {
				x := row{Key: r.Key, LastSync: r.LastSync}
				if r.Err != nil {
					x.Error = r.Err.Error()
				}
				rows = append(rows, x)
			}
			out(cmd).emit(rows, func(w io.Writer) {
				for _, r := range rows {
					if r.Error != "" {
						fmt.Fprintf(w, "%-15s failed: %s\n", r.Key, r.Error)
					} else {
						fmt.Fprintf(w, "%-15s synced at %s\n", r.Key, r.LastSync.Local().Format(time.DateTime))
					}
				}
			})
			return err
		},
	}
}

func newPingCmd(app appFunc, out printerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test the connection to the backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app().accounts.TestConnection(cmd.Context()); err != nil {
				return err
			}
			out(cmd).emit(map[string]bool{"ok": true}, func(w io.Writer) { fmt.Fprintln(w, "ok") })
			return nil
		},
	}
}

func newWatchCmd(app appFunc, out printerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep syncing in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			if a.profiles.Syncer() == nil {
				return fmt.Errorf("watch needs a backend and stored credentials: %w", errs.ErrNotConfigured)
			}
			p := out(cmd)
			stopP := a.profiles.Subscribe(func(st model.ProfilesState) {
				p.emit(map[string]any{"event": "profiles", "profiles": len(st.Profiles)}, func(w io.Writer) {
					fmt.Fprintf(w, "profiles updated (%d profiles)\n", len(st.Profiles))
				})
			})
			defer stopP()
			stopS := a.settings.Subscribe(func(model.Settings) {
				p.emit(map[string]any{"event": "settings"}, func(w io.Writer) { fmt.Fprintln(w, "settings updated") })
			})
			defer stopS()

			a.goOnline(cmd.Context())
			fmt.Fprintf(cmd.ErrOrStderr(), "watching (profiles: %s, settings: %s); Ctrl-C to stop\n",
				a.profiles.Syncer().State(), a.settings.Syncer().State())
			<-cmd.Context().Done()
			return nil
		},
	}
}

func newDeleteAccountCmd(app appFunc, out printerFunc) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-account",
		Short: "Delete all synced data from the backend and forget the credentials",
		Long: `Delete-account removes every remote document of this user and the local
credentials. Local profiles and settings stay on this device.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing without --yes: %w", errs.ErrInvalid)
			}
			n, err := app().accounts.DeleteAccount(cmd.Context())
			if err != nil {
				return err
			}
			out(cmd).emit(map[string]int64{"deleted_rows": n}, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted %d remote documents. Local data kept.\n", n)
			})
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}
