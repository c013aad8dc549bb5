package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/maddev333/scubapwshapi/internal/config"
	"github.com/maddev333/scubapwshapi/internal/gateway"
	"github.com/maddev333/scubapwshapi/internal/report"
	"github.com/maddev333/scubapwshapi/internal/runner"
	"github.com/maddev333/scubapwshapi/internal/testutil"
)

// setup creates a server + client pair over in-memory transports.
func setup(t *testing.T, exec gateway.Executor) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	store := report.NewLRUStore(8, report.NewDiskStoreAt(t.TempDir()))
	server := NewServer(gateway.New(exec, store, nil))

	ct, st := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}

	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})
	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return res
}

func resultText(r *mcp.CallToolResult) string {
	var parts []string
	for _, c := range r.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func runID(t *testing.T, text string) string {
	t.Helper()
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "Run: ") {
			return strings.TrimPrefix(line, "Run: ")
		}
	}
	t.Fatalf("no Run: line in output:\n%s", text)
	return ""
}

func TestListTools(t *testing.T) {
	cs := setup(t, testutil.NewFakeExecutor())
	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	got := make(map[string]bool)
	for _, tool := range res.Tools {
		got[tool.Name] = true
	}
	for _, name := range []string{"run_script", "weather_forecast", "inspect_run"} {
		if !got[name] {
			t.Errorf("tool %s not registered", name)
		}
	}
}

func TestRunScript(t *testing.T) {
	exec := testutil.NewFakeExecutor()
	exec.Outputs["Get-Date"] = [2]string{"today\n", "warning\n"}
	cs := setup(t, exec)

	res := callTool(t, cs, "run_script", map[string]any{"script": "Get-Date"})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.HasSuffix(text, "today\nwarning\n") {
		t.Errorf("expected combined output at the end, got:\n%s", text)
	}
	if !strings.Contains(text, "Exit: 0") {
		t.Errorf("expected Exit: 0, got:\n%s", text)
	}
}

func TestRunScript_Blank(t *testing.T) {
	exec := testutil.NewFakeExecutor()
	cs := setup(t, exec)

	res := callTool(t, cs, "run_script", map[string]any{"script": "   "})
	if !res.IsError {
		t.Error("expected IsError for blank script")
	}
	if exec.Started() != 0 {
		t.Errorf("Started() = %d, want 0", exec.Started())
	}
}

func TestRunScript_MissingScript(t *testing.T) {
	cs := setup(t, testutil.NewFakeExecutor())
	_, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "run_script",
		Arguments: map[string]any{},
	})
	if err == nil {
		t.Error("expected error for missing script")
	}
}

func TestRunScript_SpawnFailure(t *testing.T) {
	exec := testutil.NewFakeExecutor()
	exec.Err = &runner.SpawnError{Shell: "pwsh", Err: errors.New("executable file not found in $PATH")}
	cs := setup(t, exec)

	res := callTool(t, cs, "run_script", map[string]any{"script": "Get-Date"})
	if !res.IsError {
		t.Fatal("expected IsError when the shell cannot start")
	}
	if text := resultText(res); !strings.Contains(text, "pwsh") {
		t.Errorf("expected shell name in error, got:\n%s", text)
	}
}

func TestRunScript_VirtualShell(t *testing.T) {
	r := gateway.NewRunner(&config.Config{Shell: config.ShellConfig{Backend: config.BackendVirtual}}, nil)
	cs := setup(t, r)

	res := callTool(t, cs, "run_script", map[string]any{"script": "echo hello; exit 5"})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.Contains(text, "hello") || !strings.Contains(text, "Exit: 5") {
		t.Errorf("expected hello and Exit: 5, got:\n%s", text)
	}
}

func TestWeatherForecast(t *testing.T) {
	cs := setup(t, testutil.NewFakeExecutor())
	res := callTool(t, cs, "weather_forecast", nil)
	if res.IsError {
		t.Fatalf("unexpected error: %s", resultText(res))
	}
	var days []map[string]any
	if err := json.Unmarshal([]byte(resultText(res)), &days); err != nil {
		t.Fatalf("forecast is not JSON: %v", err)
	}
	if len(days) != 5 {
		t.Errorf("len(days) = %d, want 5", len(days))
	}
}

func TestInspectRun_AfterRunScript(t *testing.T) {
	exec := testutil.NewFakeExecutor()
	exec.Outputs["echo a\necho b"] = [2]string{"a\nb\n", ""}
	cs := setup(t, exec)

	id := runID(t, resultText(callTool(t, cs, "run_script", map[string]any{"script": "echo a\necho b"})))

	res := callTool(t, cs, "inspect_run", map[string]any{"run_id": id})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error from inspect_run: %s", text)
	}
	for _, want := range []string{"Run: " + id + " (script)", "Shell: fake", "    echo a", "    echo b", "Output:", "    a"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got:\n%s", want, text)
		}
	}
}

func TestInspectRun_Unknown(t *testing.T) {
	cs := setup(t, testutil.NewFakeExecutor())
	res := callTool(t, cs, "inspect_run", map[string]any{"run_id": "nonexistent-id"})
	if !res.IsError {
		t.Error("expected IsError for unknown run_id")
	}
}
