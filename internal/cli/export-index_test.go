package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/khanglvm/toolgate/internal/catalog"
)

func testEntries() []IndexEntry {
	return []IndexEntry{
		{
			Operation:   "add",
			Category:    "arithmetic",
			Description: "Add two numbers together",
			Keywords:    []string{"sum"},
			Parameters: catalog.Schema{
				{Name: "a", Type: catalog.TypeNumber, Required: true},
				{Name: "b", Type: catalog.TypeNumber, Required: true},
			},
			Text: "add. Add two numbers together.",
		},
		{
			Operation:   "mean",
			Category:    "statistics",
			Description: "Arithmetic mean of a list",
			Text:        "mean. Arithmetic mean of a list.",
		},
	}
}

func TestNewExportIndexCmd(t *testing.T) {
	cmd := NewExportIndexCmd(&options{})

	if cmd == nil {
		t.Fatal("NewExportIndexCmd() returned nil")
	}
	if cmd.Use != "export-index" {
		t.Errorf("Expected Use='export-index', got %q", cmd.Use)
	}
	if cmd.Flags().Lookup("format") == nil {
		t.Error("Flag 'format' not registered")
	}
	if cmd.Flags().Lookup("output") == nil {
		t.Error("Flag 'output' not registered")
	}
	if cmd.Example == "" {
		t.Error("Command missing example usage")
	}
}

func TestWriteIndexJSONL(t *testing.T) {
	output := filepath.Join(t.TempDir(), "test-index.jsonl")
	entries := testEntries()

	if err := writeIndex(entries, output, "jsonl"); err != nil {
		t.Fatalf("writeIndex failed: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != len(entries) {
		t.Fatalf("Expected %d lines, got %d", len(entries), len(lines))
	}

	for i, line := range lines {
		var entry IndexEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Errorf("Line %d is not valid JSON: %v", i, err)
		}
		if entry.Operation != entries[i].Operation || entry.Text == "" {
			t.Errorf("Line %d = %+v", i, entry)
		}
	}
}

func TestWriteIndexJSON(t *testing.T) {
	output := filepath.Join(t.TempDir(), "test-index.json")

	if err := writeIndex(testEntries(), output, "json"); err != nil {
		t.Fatalf("writeIndex failed: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}

	var entries []IndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("Output is not valid JSON array: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if names := entries[0].Parameters.Names(); len(names) != 2 || names[0] != "a" {
		t.Errorf("parameters not preserved: %v", names)
	}
}

func TestWriteIndexWithEmptyEntries(t *testing.T) {
	output := filepath.Join(t.TempDir(), "empty.jsonl")

	if err := writeIndex(nil, output, "jsonl"); err != nil {
		t.Fatalf("writeIndex with no entries failed: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}
	if content := strings.TrimSpace(string(data)); content != "" {
		t.Errorf("Expected empty output, got: %q", content)
	}
}

func TestAcquireFileLock(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test-lock.jsonl")

	lockFile, err := acquireFileLock(testFile)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	defer releaseFileLock(lockFile)

	if _, err := os.Stat(testFile + ".lock"); os.IsNotExist(err) {
		t.Error("Lock file was not created")
	}

	if _, err := acquireFileLock(testFile); err == nil {
		t.Error("Expected lock acquisition to fail, but it succeeded")
	}
}

func TestAcquireFileLockCreatesDirectory(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "nested", "dir", "index.db")

	lockFile, err := acquireFileLock(testFile)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if err := releaseFileLock(lockFile); err != nil {
		t.Errorf("Failed to release lock: %v", err)
	}
}

func TestReleaseFileLock(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test-lock.jsonl")

	lockFile, err := acquireFileLock(testFile)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	lockPath := lockFile.Name()

	if err := releaseFileLock(lockFile); err != nil {
		t.Errorf("Failed to release lock: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("Lock file was not removed after release")
	}

	lockFile2, err := acquireFileLock(testFile)
	if err != nil {
		t.Errorf("Failed to re-acquire lock after release: %v", err)
	}
	defer releaseFileLock(lockFile2)

	if err := releaseFileLock(nil); err != nil {
		t.Errorf("releaseFileLock(nil) = %v", err)
	}
}

func TestConcurrentFileLocking(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test-concurrent.jsonl")

	var wg sync.WaitGroup
	successCount := 0
	mu := sync.Mutex{}

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			lockFile, err := acquireFileLock(testFile)
			if err == nil {
				mu.Lock()
				successCount++
				mu.Unlock()

				time.Sleep(10 * time.Millisecond)
				releaseFileLock(lockFile)
			}
		}()
	}

	wg.Wait()

	if successCount == 0 {
		t.Error("No goroutine acquired lock")
	}
}

func TestExportIndexCommand(t *testing.T) {
	output := filepath.Join(t.TempDir(), "ops.jsonl")

	out, err := runCLI(t, "export-index", "--output", output)
	if err != nil {
		t.Fatalf("export-index failed: %v", err)
	}
	if !strings.Contains(out, "Exported 29 operations") {
		t.Errorf("unexpected output: %q", out)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 29 {
		t.Fatalf("Expected 29 lines, got %d", len(lines))
	}

	var first IndexEntry
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("Line 0 is not valid JSON: %v", err)
	}
	if first.Text == "" || !strings.Contains(first.Text, first.Description) {
		t.Errorf("entry text should contain the description: %+v", first)
	}
	if _, err := os.Stat(output + ".lock"); !os.IsNotExist(err) {
		t.Error("lock file left behind")
	}
}

func TestExportIndexInvalidFormat(t *testing.T) {
	output := filepath.Join(t.TempDir(), "ops.xml")

	_, err := runCLI(t, "export-index", "--format", "xml", "--output", output)
	if err == nil || !strings.Contains(err.Error(), "must be json or jsonl") {
		t.Fatalf("expected invalid format error, got %v", err)
	}
}

func TestIndexFormatFlag(t *testing.T) {
	cmd := NewExportIndexCmd(&options{})
	if err := cmd.ParseFlags([]string{"--format", "json"}); err != nil {
		t.Fatalf("ParseFlags() failed: %v", err)
	}
	if got := cmd.Flags().Lookup("format").Value.String(); got != "json" {
		t.Errorf("format = %q, want json", got)
	}
	if err := cmd.ParseFlags([]string{"--format", "yaml"}); err == nil {
		t.Error("expected yaml to be rejected")
	}
}

func TestEncodeIndexJSONArray(t *testing.T) {
	var buf bytes.Buffer
	if err := encodeIndex(&buf, []IndexEntry{}, "json"); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("encodeIndex = %q, want []", got)
	}
}
