package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type forecastParams struct{}

func (h *handler) forecastHandler(ctx context.Context, req *mcp.CallToolRequest, _ forecastParams) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(h.gw.Forecast(), "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to encode forecast: %v", err))
	}
	return textResult(string(data))
}
