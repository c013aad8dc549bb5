package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/maddev333/scubapwshapi/internal/report"
)

type inspectParams struct {
	RunID string `json:"run_id" jsonschema:"the run ID from a run_script result"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	rec, err := h.gw.Inspect(params.RunID)
	if errors.Is(err, report.ErrNotFound) {
		return errorResult(fmt.Sprintf("No run %s is recorded.", params.RunID))
	}
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}
	return textResult(formatRecord(rec))
}

func formatRecord(rec *report.Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s (%s)\n", rec.ID, rec.Kind)
	fmt.Fprintf(&b, "Started: %s\n", rec.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if rec.Kind == report.Script {
		fmt.Fprintf(&b, "Shell: %s\n", rec.Shell)
		fmt.Fprintf(&b, "Duration: %s\n", rec.Duration)
		fmt.Fprintf(&b, "Exit: %d\n", rec.ExitCode)
		if rec.Truncated {
			fmt.Fprintln(&b, "Output was truncated.")
		}
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Script:")
		for _, line := range strings.Split(strings.TrimRight(rec.Script, "\n"), "\n") {
			fmt.Fprintf(&b, "    %s\n", line)
		}
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Output:")
	for _, line := range strings.Split(strings.TrimRight(rec.Output, "\n"), "\n") {
		fmt.Fprintf(&b, "    %s\n", line)
	}
	return b.String()
}
