package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/dirstore/internal/store"
	"github.com/roach88/dirstore/internal/value"
)

// KeysOptions holds flags for the keys command.
type KeysOptions struct {
	*RootOptions
	Long bool
}

// KeyEntry is one row of `keys --long`.
type KeyEntry struct {
	Key       string     `json:"key" yaml:"key"`
	Type      value.Kind `json:"type" yaml:"type"`
	SizeBytes int64      `json:"size_bytes" yaml:"size_bytes"`
}

// KeysResult is the structured output of the keys command.
type KeysResult struct {
	Keys    []string   `json:"keys" yaml:"keys"`
	Entries []KeyEntry `json:"entries,omitempty" yaml:"entries,omitempty"`
	Count   int        `json:"count" yaml:"count"`
}

// NewKeysCommand creates the keys command.
func NewKeysCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeysOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List stored keys",
		Long: `List the original keys of all valid records, sorted.

With --long, also show each record's type and payload size.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeys(opts, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Long, "long", "l", false, "show type and size")

	return cmd
}

func runKeys(opts *KeysOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := commandContext(cmd)
	keys, err := st.Keys(ctx)
	if err != nil {
		return storeFailure(f, "failed to list keys", err)
	}

	res := KeysResult{Keys: keys, Count: len(keys)}
	if opts.Long {
		res.Entries, err = keyEntries(cmd, st, keys)
		if err != nil {
			return storeFailure(f, "failed to read metadata", err)
		}
	}

	if f.Structured() {
		return f.Success(res)
	}
	if !opts.Long {
		for _, k := range keys {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Key", "Type", "Size"})
	for _, e := range res.Entries {
		t.AppendRow(table.Row{e.Key, e.Type, e.SizeBytes})
	}
	t.AppendFooter(table.Row{"", "Total", len(res.Entries)})
	t.Render()
	return nil
}

// keyEntries reads metadata for keys. Keys removed since listing are
// skipped.
func keyEntries(cmd *cobra.Command, st *store.Store, keys []string) ([]KeyEntry, error) {
	ctx := commandContext(cmd)
	entries := make([]KeyEntry, 0, len(keys))
	for _, k := range keys {
		meta, ok, err := st.Info(ctx, k)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		entries = append(entries, KeyEntry{Key: k, Type: meta.Type, SizeBytes: meta.SizeBytes})
	}
	return entries, nil
}

// ClearOptions holds flags for the clear command.
type ClearOptions struct {
	*RootOptions
	Yes bool
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClearOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every record from the store",
		Long: `Remove every record from the store.

Requires --yes. Files in the store directory that are not records are left
alone.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClear(opts, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "confirm removal of every record")

	return cmd
}

func runClear(opts *ClearOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	if !opts.Yes {
		msg := "refusing to clear the store without --yes"
		if f.Structured() {
			_ = f.Error(ErrCodeRefused, msg, nil)
		}
		return NewExitError(ExitFailure, msg)
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Clear(commandContext(cmd)); err != nil {
		return storeFailure(f, "failed to clear store", err)
	}
	if f.Structured() {
		return f.Success(map[string]string{"root": st.Root()})
	}
	return f.Success(fmt.Sprintf("cleared %s", st.Root()))
}
