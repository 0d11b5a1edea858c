package cli

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/khanglvm/toolgate/internal/config"
	"github.com/khanglvm/toolgate/internal/execute"
	"github.com/khanglvm/toolgate/internal/fault"
	"github.com/khanglvm/toolgate/internal/gateway"
	"github.com/khanglvm/toolgate/internal/search"
)

func TestSearchCommand(t *testing.T) {
	out, err := runCLI(t, "search", "add", "two", "numbers", "--limit", "3")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if !strings.Contains(out, `Results for "add two numbers"`) {
		t.Errorf("unexpected header:\n%s", out)
	}
	if !strings.Contains(out, "1. ") || strings.Contains(out, "4. ") {
		t.Errorf("expected between 1 and 3 results:\n%s", out)
	}
}

func TestSearchCommandJSON(t *testing.T) {
	out, err := runCLI(t, "search", "triangle area", "--category", "geometry", "--json")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	var results []search.SearchResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("output is not a JSON array: %v\n%s", err, out)
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	for i, r := range results {
		if r.Category != "geometry" {
			t.Errorf("result %s has category %q", r.Name, r.Category)
		}
		if r.Score < 0 || r.Score > 1 {
			t.Errorf("result %s score %v out of range", r.Name, r.Score)
		}
		if i > 0 && r.Score > results[i-1].Score {
			t.Errorf("results not ordered by score at %d", i)
		}
	}
}

func TestSearchCommandRequiresQuery(t *testing.T) {
	if _, err := runCLI(t, "search"); err == nil {
		t.Fatal("expected an error without a query")
	}
}

func TestExecCommand(t *testing.T) {
	out, err := runCLI(t, "exec", "add", "--params", `{"a": 5, "b": 3}`)
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}

	var res execute.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res.Error)
	}
	if res.Value != 8.0 {
		t.Errorf("value = %v, want 8", res.Value)
	}
}

func TestExecCommandFailure(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantKind fault.Kind
	}{
		{"division by zero", []string{"exec", "divide", "-p", `{"a": 1, "b": 0}`}, fault.ComputationError},
		{"unknown operation", []string{"exec", "teleport"}, fault.UnknownOperation},
		{"missing parameter", []string{"exec", "add", "-p", `{"a": 1}`}, fault.InvalidParameters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, tt.args...)
			if !errors.Is(err, ErrExecutionFailed) {
				t.Fatalf("error = %v, want ErrExecutionFailed", err)
			}

			var res execute.Result
			if err := json.Unmarshal([]byte(out), &res); err != nil {
				t.Fatalf("output is not JSON: %v\n%s", err, out)
			}
			if res.Success || res.Error == nil {
				t.Fatalf("expected a failed result, got %+v", res)
			}
			if res.Error.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", res.Error.Kind, tt.wantKind)
			}
		})
	}
}

func TestExecCommandBadParams(t *testing.T) {
	_, err := runCLI(t, "exec", "add", "--params", "[1, 2]")
	if err == nil || errors.Is(err, ErrExecutionFailed) {
		t.Fatalf("expected a parameter parse error, got %v", err)
	}
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		raw     string
		wantLen int
		wantErr bool
	}{
		{"", 0, false},
		{"  ", 0, false},
		{"{}", 0, false},
		{"null", 0, false},
		{`{"a": 1, "b": "x"}`, 2, false},
		{"[1]", 0, true},
		{"{", 0, true},
	}

	for _, tt := range tests {
		got, err := parseParams(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseParams(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if err == nil {
			if got == nil {
				t.Errorf("parseParams(%q) returned nil map", tt.raw)
			}
			if len(got) != tt.wantLen {
				t.Errorf("parseParams(%q) len = %d, want %d", tt.raw, len(got), tt.wantLen)
			}
		}
	}
}

func TestDescribeCommandJSON(t *testing.T) {
	out, err := runCLI(t, "describe", "--json")
	if err != nil {
		t.Fatalf("describe failed: %v", err)
	}

	var d gateway.Description
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if !d.Health.Healthy {
		t.Errorf("expected a healthy gateway: %+v", d.Health)
	}
	if d.CatalogSize != 29 || d.IndexedCount != 29 {
		t.Errorf("catalog %d, indexed %d, want 29", d.CatalogSize, d.IndexedCount)
	}
	if len(d.Categories) != 7 {
		t.Errorf("categories = %v", d.Categories)
	}
	if d.History != nil {
		t.Error("history should be absent when disabled")
	}
}

func TestDescribeCommandText(t *testing.T) {
	out, err := runCLI(t, "describe")
	if err != nil {
		t.Fatalf("describe failed: %v", err)
	}
	for _, want := range []string{"✓ healthy", "29 operations", "Categories:", "statistics"} {
		if !strings.Contains(out, want) {
			t.Errorf("describe output missing %q:\n%s", want, out)
		}
	}
}

func TestIndexCommandMemory(t *testing.T) {
	out, err := runCLI(t, "index")
	if err != nil {
		t.Fatalf("index failed: %v", err)
	}
	if !strings.Contains(out, "Indexed 29 operations") || !strings.Contains(out, "not persisted") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestIndexCommandSQLite(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Settings.History.Enabled = false
	cfg.Settings.Embedder.Cache = false
	cfg.Settings.Store.Driver = config.DriverSQLite
	cfg.Settings.Store.Path = filepath.Join(dir, "index.db")
	cfgPath := filepath.Join(dir, "toolgate.json")
	if err := config.Save(cfg, cfgPath); err != nil {
		t.Fatal(err)
	}

	out, err := runCLIWithConfig(t, cfgPath, "index")
	if err != nil {
		t.Fatalf("index failed: %v", err)
	}
	if !strings.Contains(out, "Indexed 29 operations") {
		t.Errorf("unexpected first build output:\n%s", out)
	}

	out, err = runCLIWithConfig(t, cfgPath, "index")
	if err != nil {
		t.Fatalf("second index failed: %v", err)
	}
	if !strings.Contains(out, "already holds 29 operations") {
		t.Errorf("expected the fast path on the second build:\n%s", out)
	}

	out, err = runCLIWithConfig(t, cfgPath, "index", "--force")
	if err != nil {
		t.Fatalf("forced index failed: %v", err)
	}
	if !strings.Contains(out, "Indexed 29 operations") {
		t.Errorf("unexpected forced build output:\n%s", out)
	}
	if _, err := os.Stat(cfg.Settings.Store.Path + ".lock"); !os.IsNotExist(err) {
		t.Error("lock file left behind")
	}
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "toolgate.json")

	out, err := runCLIWithConfig(t, path, "config", "init")
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("unexpected output: %q", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	if _, err := runCLIWithConfig(t, path, "config", "init"); err == nil {
		t.Error("expected config init to refuse an existing file")
	}
	if _, err := runCLIWithConfig(t, path, "config", "init", "--force"); err != nil {
		t.Errorf("config init --force failed: %v", err)
	}
	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Errorf("expected a backup after --force: %v", err)
	}

	out, err = runCLIWithConfig(t, path, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if cfg.Settings == nil || cfg.Settings.Search.DefaultLimit != config.DefaultLimit {
		t.Errorf("unexpected settings: %+v", cfg.Settings)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	for _, want := range []string{"Version:", "Commit:", "Built:"} {
		if !strings.Contains(out, want) {
			t.Errorf("version output missing %q: %q", want, out)
		}
	}
}
