package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dirstore/internal/codec"
	"github.com/roach88/dirstore/internal/value"
)

// SetOptions holds flags for the set command.
type SetOptions struct {
	*RootOptions
	Type     string
	Tagged   bool
	Override bool
}

// ValueResult is the structured output of commands that return a value.
type ValueResult struct {
	Key   string     `json:"key" yaml:"key"`
	Type  value.Kind `json:"type" yaml:"type"`
	Value any        `json:"value" yaml:"value"`
	Repr  string     `json:"repr" yaml:"repr"`
}

func newValueResult(key string, v value.Value) ValueResult {
	return ValueResult{Key: key, Type: v.Kind(), Value: value.ToPlain(v), Repr: value.Repr(v)}
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set <key> <json>",
		Short: "Store a value under a key",
		Long: `Store a value under a key.

The value is parsed as JSON. Use --type to store it as a specific kind, for
example a tuple or set from a JSON array, or a Decimal, date, datetime or
time from a JSON string. Use --tagged to pass the stored wire form directly.

Exit codes:
  0 - Value stored
  1 - Key already exists (without --override), invalid key or value
  2 - Command error

Examples:
  dirstore set count 0
  dirstore set point '[1, 2]' --type tuple
  dirstore set price '"19.99"' --type Decimal
  dirstore set tags '{"type":"frozenset","value":[{"type":"str","value":"a"}]}' --tagged
  dirstore set count 1 --override`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(opts, cmd, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&opts.Type, "type", "t", "", "store the value as this kind")
	cmd.Flags().BoolVar(&opts.Tagged, "tagged", false, "value is in tagged wire form")
	cmd.Flags().BoolVar(&opts.Override, "override", false, "replace an existing value")

	return cmd
}

// parseValue turns command-line text into a value.
func parseValue(text, kind string, tagged bool) (value.Value, error) {
	if tagged {
		if kind != "" {
			return nil, fmt.Errorf("--type cannot be combined with --tagged")
		}
		return codec.DecodeAny([]byte(text))
	}
	v, err := value.FromJSON([]byte(text))
	if err != nil {
		return nil, err
	}
	if kind == "" {
		return v, nil
	}
	k, err := value.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	return value.As(v, k)
}

func runSet(opts *SetOptions, cmd *cobra.Command, key, text string) error {
	f := opts.formatter(cmd)

	v, err := parseValue(text, opts.Type, opts.Tagged)
	if err != nil {
		if f.Structured() {
			_ = f.Error(ErrCodeInvalidValue, err.Error(), nil)
		}
		return WrapExitError(ExitFailure, "invalid value", err)
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Set(commandContext(cmd), key, v, opts.Override); err != nil {
		return storeFailure(f, fmt.Sprintf("failed to set %q", key), err)
	}

	f.VerboseLog("stored %s under %q", v.Kind(), key)
	if f.Structured() {
		return f.Success(newValueResult(key, v))
	}
	return nil
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored under a key",
		Long: `Print the value stored under a key.

Text output is the value's repr. Exits 1 when the key is absent, so a stored
None is distinguishable from a missing key.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, cmd, args[0], false)
		},
	}
	return cmd
}

// NewPopCommand creates the pop command.
func NewPopCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pop <key>",
		Short:         "Print the value stored under a key and remove it",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, cmd, args[0], true)
		},
	}
	return cmd
}

func runGet(opts *RootOptions, cmd *cobra.Command, key string, remove bool) error {
	f := opts.formatter(cmd)
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := commandContext(cmd)
	var (
		v  value.Value
		ok bool
	)
	if remove {
		v, ok, err = st.Pop(ctx, key)
	} else {
		v, ok, err = st.Lookup(ctx, key)
	}
	if err != nil {
		return storeFailure(f, fmt.Sprintf("failed to read %q", key), err)
	}
	if !ok {
		if f.Structured() {
			_ = f.Error(ErrCodeNotFound, fmt.Sprintf("key %q not found", key), nil)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("key %q not found", key))
	}

	if f.Structured() {
		return f.Success(newValueResult(key, v))
	}
	return f.Success(value.Repr(v))
}

// ExistsResult is the structured output of the exists command.
type ExistsResult struct {
	Key    string `json:"key" yaml:"key"`
	Exists bool   `json:"exists" yaml:"exists"`
}

// NewExistsCommand creates the exists command.
func NewExistsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exists <key>",
		Short: "Report whether a key is present",
		Long: `Report whether a key is present.

Prints true or false. Exits 0 when present and 1 when absent, so the command
can be used in shell conditions.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExists(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runExists(opts *RootOptions, cmd *cobra.Command, key string) error {
	f := opts.formatter(cmd)
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ok, err := st.Exists(commandContext(cmd), key)
	if err != nil {
		return storeFailure(f, fmt.Sprintf("failed to check %q", key), err)
	}
	if f.Structured() {
		if err := f.Success(ExistsResult{Key: key, Exists: ok}); err != nil {
			return err
		}
	} else {
		_ = f.Success(ok)
	}
	if !ok {
		return &ExitError{Code: ExitFailure}
	}
	return nil
}

// DeleteResult is the structured output of the delete command.
type DeleteResult struct {
	Key     string `json:"key" yaml:"key"`
	Removed bool   `json:"removed" yaml:"removed"`
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a key",
		Long: `Remove a key. Deleting an absent key succeeds and reports that nothing
was removed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runDelete(opts *RootOptions, cmd *cobra.Command, key string) error {
	f := opts.formatter(cmd)
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	removed, err := st.Delete(commandContext(cmd), key)
	if err != nil {
		return storeFailure(f, fmt.Sprintf("failed to delete %q", key), err)
	}
	if f.Structured() {
		return f.Success(DeleteResult{Key: key, Removed: removed})
	}
	if removed {
		return f.Success(fmt.Sprintf("deleted %q", key))
	}
	return f.Success(fmt.Sprintf("%q not found", key))
}

// InfoResult is the structured output of the info command.
type InfoResult struct {
	Key       string     `json:"key" yaml:"key"`
	Type      value.Kind `json:"type" yaml:"type"`
	Encoding  string     `json:"encoding" yaml:"encoding"`
	SizeBytes int64      `json:"size_bytes" yaml:"size_bytes"`
	Checksum  string     `json:"checksum" yaml:"checksum"`
}

// NewInfoCommand creates the info command.
func NewInfoCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "info <key>",
		Short:         "Print a key's metadata without decoding its value",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runInfo(opts *RootOptions, cmd *cobra.Command, key string) error {
	f := opts.formatter(cmd)
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	meta, ok, err := st.Info(commandContext(cmd), key)
	if err != nil {
		return storeFailure(f, fmt.Sprintf("failed to read %q", key), err)
	}
	if !ok {
		if f.Structured() {
			_ = f.Error(ErrCodeNotFound, fmt.Sprintf("key %q not found", key), nil)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("key %q not found", key))
	}

	res := InfoResult{
		Key:       meta.OriginalKey,
		Type:      meta.Type,
		Encoding:  meta.Encoding,
		SizeBytes: meta.SizeBytes,
		Checksum:  meta.Checksum,
	}
	if f.Structured() {
		return f.Success(res)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "key:        %s\n", res.Key)
	fmt.Fprintf(w, "type:       %s\n", res.Type)
	fmt.Fprintf(w, "encoding:   %s\n", res.Encoding)
	fmt.Fprintf(w, "size_bytes: %d\n", res.SizeBytes)
	fmt.Fprintf(w, "checksum:   %s\n", res.Checksum)
	return nil
}
