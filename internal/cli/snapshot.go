package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/dirstore/internal/snapshot"
)

// ExportResult is the structured output of the export command.
type ExportResult struct {
	File    string `json:"file" yaml:"file"`
	Records int    `json:"records" yaml:"records"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <file.db>",
		Short: "Write every record to a SQLite snapshot",
		Long: `Write every valid record to a SQLite snapshot file.

An existing snapshot at the same path is replaced. Corrupt records are
skipped.

Examples:
  dirstore export backup.db
  dirstore --root ./data export backup.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func (opts *RootOptions) openSnapshot(path string) (*snapshot.Snapshot, error) {
	snapOpts := snapshot.Options{Logger: opts.logger()}
	if opts.Config != nil {
		snapOpts.Workers = opts.Config.Snapshot.Workers
	}
	return snapshot.Open(path, snapOpts)
}

func runExport(opts *RootOptions, cmd *cobra.Command, path string) error {
	f := opts.formatter(cmd)
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	snap, err := opts.openSnapshot(path)
	if err != nil {
		if f.Structured() {
			_ = f.Error(ErrCodeSnapshot, err.Error(), nil)
		}
		return WrapExitError(ExitCommandError, "failed to open snapshot", err)
	}
	defer snap.Close()

	n, err := snap.Export(commandContext(cmd), st.Records())
	if err != nil {
		if f.Structured() {
			_ = f.Error(ErrCodeWriteFailed, err.Error(), nil)
		}
		return WrapExitError(ExitCommandError, "export failed", err)
	}

	if f.Structured() {
		return f.Success(ExportResult{File: path, Records: n})
	}
	return f.Success(fmt.Sprintf("exported %d records to %s", n, path))
}

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Override bool
}

// ImportResult is the structured output of the import command.
type ImportResult struct {
	File     string `json:"file" yaml:"file"`
	Imported int    `json:"imported" yaml:"imported"`
	Skipped  int    `json:"skipped" yaml:"skipped"`
	Invalid  int    `json:"invalid" yaml:"invalid"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <file.db>",
		Short: "Load records from a SQLite snapshot",
		Long: `Load records from a SQLite snapshot file.

Keys that already exist are skipped unless --override is given. Rows that
fail validation are reported and skipped.

Exit codes:
  0 - Every row imported or skipped as existing
  1 - One or more rows failed validation
  2 - Command error (snapshot not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Override, "override", false, "replace existing keys")

	return cmd
}

func runImport(opts *ImportOptions, cmd *cobra.Command, path string) error {
	f := opts.formatter(cmd)

	// Opening would create an empty snapshot.
	if _, err := os.Stat(path); err != nil {
		code := ErrCodeSnapshot
		if errors.Is(err, fs.ErrNotExist) {
			code = ErrCodeNotFound
		}
		if f.Structured() {
			_ = f.Error(code, err.Error(), nil)
		}
		return WrapExitError(ExitCommandError, "snapshot not readable", err)
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	snap, err := opts.openSnapshot(path)
	if err != nil {
		if f.Structured() {
			_ = f.Error(ErrCodeSnapshot, err.Error(), nil)
		}
		return WrapExitError(ExitCommandError, "failed to open snapshot", err)
	}
	defer snap.Close()

	res, err := snap.Import(commandContext(cmd), st.Records(), opts.Override)
	if err != nil {
		return storeFailure(f, "import failed", err)
	}

	out := ImportResult{File: path, Imported: res.Imported, Skipped: res.Skipped, Invalid: res.Invalid}
	if f.Structured() {
		if err := f.Success(out); err != nil {
			return err
		}
	} else {
		_ = f.Success(fmt.Sprintf("imported %d records from %s (%d skipped, %d invalid)", out.Imported, path, out.Skipped, out.Invalid))
	}
	if res.Invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d invalid rows in %s", res.Invalid, path))
	}
	return nil
}
