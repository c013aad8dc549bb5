// Package scubapwshapi exposes a canned weather forecast and a script
// execution gateway over HTTP and MCP.
package scubapwshapi

// Version is the release version reported by the CLI and the MCP server.
const Version = "0.3.0"
