package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/khanglvm/toolgate/internal/catalog"
)

// IndexEntry represents an operation in the exported index.
type IndexEntry struct {
	Operation   string         `json:"operation"`
	Category    string         `json:"category"`
	Description string         `json:"description"`
	Keywords    []string       `json:"keywords,omitempty"`
	Parameters  catalog.Schema `json:"parameters,omitempty"`

	// Text is the synthesized text that is embedded for search.
	Text string `json:"text"`
}

// indexFormat is the --format flag value.
type indexFormat string

var _ pflag.Value = (*indexFormat)(nil)

func (f *indexFormat) String() string { return string(*f) }

func (f *indexFormat) Set(v string) error {
	switch v {
	case "json", "jsonl":
		*f = indexFormat(v)
		return nil
	}
	return fmt.Errorf("must be json or jsonl")
}

func (f *indexFormat) Type() string { return "format" }

// NewExportIndexCmd creates the export-index command.
func NewExportIndexCmd(opts *options) *cobra.Command {
	format := indexFormat("jsonl")
	var output string

	cmd := &cobra.Command{
		Use:   "export-index",
		Short: "Export the operation index for grep/jq search",
		Long: `Generate ~/.toolgate-index.jsonl with every catalog operation for offline grep/jq searching.

Each entry carries the operation's metadata and the exact text that is embedded
for semantic search, which makes ranking easy to inspect.

Default output: ~/.toolgate-index.jsonl
Default format: JSONL (one operation per line)`,
		Example: `  # Export to default location
  toolgate export-index

  # Export as JSON array
  toolgate export-index --format json

  # Custom output path
  toolgate export-index --output ./operations.jsonl

Grep usage examples:
  # Find geometry operations
  grep '"geometry"' ~/.toolgate-index.jsonl

  # Search descriptions
  grep -i "area" ~/.toolgate-index.jsonl | jq -r '.operation'

  # Count operations per category
  jq -r '.category' ~/.toolgate-index.jsonl | sort | uniq -c`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExportIndex(cmd, opts, string(format), output)
		},
	}

	cmd.Flags().Var(&format, "format", "Output format: json or jsonl")
	cmd.Flags().StringVar(&output, "output", "", "Output path (default: ~/.toolgate-index.jsonl)")

	return cmd
}

// runExportIndex executes the export-index command.
func runExportIndex(cmd *cobra.Command, opts *options, format, output string) error {
	if format != "json" && format != "jsonl" {
		return fmt.Errorf("invalid --format %q: must be json or jsonl", format)
	}

	// Default output path
	if output == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		ext := ".jsonl"
		if format == "json" {
			ext = ".json"
		}
		output = filepath.Join(home, ".toolgate-index"+ext)
	}

	ctx := cmd.Context()
	gw, _, err := opts.openGateway(ctx)
	if err != nil {
		return err
	}
	defer gw.Close()

	// Acquire file lock to prevent concurrent writes
	lockFile, err := acquireFileLock(output)
	if err != nil {
		return fmt.Errorf("failed to acquire file lock: %w", err)
	}
	defer releaseFileLock(lockFile)

	ops, err := gw.Operations(ctx, "")
	if err != nil {
		return err
	}
	docs, err := gw.Documents(ctx)
	if err != nil {
		return err
	}
	texts := make(map[string]string, len(docs))
	for _, d := range docs {
		texts[d.ID] = d.Text
	}

	entries := make([]IndexEntry, 0, len(ops))
	for _, op := range ops {
		text, ok := texts[op.Name]
		if !ok {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: skipping malformed operation %q\n", op.Name)
			continue
		}
		entries = append(entries, IndexEntry{
			Operation:   op.Name,
			Category:    op.Category,
			Description: op.Description,
			Keywords:    op.Keywords,
			Parameters:  op.Parameters,
			Text:        text,
		})
	}

	if err := writeIndex(entries, output, format); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d operations to %s\n", len(entries), output)
	return nil
}

// writeIndex writes the index to a file.
func writeIndex(entries []IndexEntry, path, format string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer file.Close()

	return encodeIndex(file, entries, format)
}

func encodeIndex(w io.Writer, entries []IndexEntry, format string) error {
	encoder := json.NewEncoder(w)

	if format == "json" {
		// JSON array format
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(entries); err != nil {
			return fmt.Errorf("failed to encode index: %w", err)
		}
		return nil
	}

	// JSONL format (one per line)
	for _, e := range entries {
		if err := encoder.Encode(e); err != nil {
			return fmt.Errorf("failed to encode operation: %w", err)
		}
	}
	return nil
}

// acquireFileLock acquires an exclusive lock on path + ".lock".
func acquireFileLock(path string) (*os.File, error) {
	lockPath := path + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	// Try to acquire exclusive lock (non-blocking)
	err = unix.Flock(int(lockFile.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		lockFile.Close()
		return nil, fmt.Errorf("failed to acquire lock (another build or export in progress?): %w", err)
	}

	return lockFile, nil
}

// releaseFileLock releases the file lock and removes the lock file.
func releaseFileLock(lockFile *os.File) error {
	if lockFile == nil {
		return nil
	}

	lockPath := lockFile.Name()

	// Release lock
	unix.Flock(int(lockFile.Fd()), unix.LOCK_UN)
	lockFile.Close()

	// Remove lock file
	return os.Remove(lockPath)
}
