package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/and161185/noteloom/internal/config"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configDir string
	dataDir   string
	jsonOut   bool
}

// run executes one command line and closes the app afterwards, also on failure.
func run(ctx context.Context, d deps, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var a *app
	root := newRootCmd(d, &a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if a != nil {
		// flush even after an interrupt
		a.close(context.WithoutCancel(ctx))
	}
	return err
}

// newRootCmd builds the command tree; *ap is opened before any subcommand runs.
func newRootCmd(d deps, ap **app) *cobra.Command {
	var f rootFlags
	root := &cobra.Command{
		Use:           "noteloom",
		Short:         "Offline-first journaling with optional sync",
		Version:       fmt.Sprintf("%s (%s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(f.configDir)
			if err != nil {
				return err
			}
			if f.dataDir != "" {
				cfg.DataDir = f.dataDir
			}
			log, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			*ap, err = openApp(cmd.Context(), cfg, log, d)
			return err
		},
	}
	root.PersistentFlags().StringVar(&f.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/noteloom)")
	root.PersistentFlags().StringVar(&f.dataDir, "data-dir", "", "data directory (default: data_dir from config)")
	root.PersistentFlags().BoolVar(&f.jsonOut, "json", false, "print JSON")

	get := func() *app { return *ap }
	out := func(cmd *cobra.Command) printer { return printer{w: cmd.OutOrStdout(), json: f.jsonOut} }

	root.AddCommand(
		newLoginCmd(get, out, d),
		newStatusCmd(get, out),
		newSyncCmd(get, out),
		newPingCmd(get, out),
		newWatchCmd(get, out),
		newDeleteAccountCmd(get, out),
		newProfileCmd(get, out),
		newJournalCmd(get, out),
		newEntryCmd(get, out),
		newSettingsCmd(get, out),
	)
	return root
}

type (
	appFunc     func() *app
	printerFunc func(*cobra.Command) printer
)

type printer struct {
	w    io.Writer
	json bool
}

// emit prints v as indented JSON in --json mode, otherwise runs text.
func (p printer) emit(v any, text func(w io.Writer)) {
	if p.json {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(v)
		return
	}
	text(p.w)
}
