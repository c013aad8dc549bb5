package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/maddev333/scubapwshapi/internal/runner"
)

type runScriptParams struct {
	Script string `json:"script" jsonschema:"the script to run; it is written to the shell's standard input"`
}

func (h *handler) runScriptHandler(ctx context.Context, req *mcp.CallToolRequest, params runScriptParams) (*mcp.CallToolResult, any, error) {
	res, err := h.gw.Execute(ctx, params.Script)
	if err != nil {
		var spawnErr *runner.SpawnError
		switch {
		case errors.Is(err, runner.ErrInvalidInput):
			return errorResult("script is required and must not be blank")
		case errors.Is(err, runner.ErrBusy):
			return errorResult("Too many scripts are running; try again later.")
		case errors.As(err, &spawnErr):
			return errorResult(fmt.Sprintf("Shell %s could not be started: %v", spawnErr.Shell, spawnErr.Err))
		default:
			return errorResult(fmt.Sprintf("Script failed: %v", err))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", res.RunID)
	fmt.Fprintf(&b, "Exit: %d", res.ExitCode)
	if res.Truncated {
		b.WriteString(" (output truncated)")
	}
	b.WriteString("\n\n")
	b.WriteString(res.Combined())
	return textResult(b.String())
}
