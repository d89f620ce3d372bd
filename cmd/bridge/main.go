// Command bridge is the supervisory bridge's CLI entry point: it runs
// free-text tasks through the guardrail-checked execution engine in
// shell, gui, or web mode, always leaving a well-formed report.json
// behind, and exposes the same operations as MCP tools over stdio via
// the `mcp` subcommand.
package main

func main() {
	execute()
}
