package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/dirstore/internal/watch"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream changes to the store until interrupted",
		Long: `Stream record changes as they happen, including those made by other
processes. Records already present are not reported.

With --format json each event is one JSON line; with --format yaml each
event is a YAML document.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(rootOpts, cmd)
		},
	}
	return cmd
}

func runWatch(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watchOpts := watch.Options{Logger: opts.logger()}
	if opts.Config != nil {
		watchOpts.Debounce = opts.Config.Watch.Debounce
	}
	w := watch.New(st.Records(), watchOpts)

	f.VerboseLog("watching %s", st.Root())
	var writeErr error
	err = w.Run(ctx, func(e watch.Event) {
		if writeErr != nil {
			return
		}
		text := fmt.Sprintf("%s\t%s", e.Op, e.Key)
		if e.Type != "" {
			text += fmt.Sprintf("\t%s", e.Type)
		}
		writeErr = f.Stream(e, text)
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "watch failed", err)
	}
	if writeErr != nil {
		return WrapExitError(ExitCommandError, "failed to write event", writeErr)
	}
	return nil
}
