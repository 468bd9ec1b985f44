package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "MCP multi-agent tool-call orchestrator",
	Long: `orchestrator fronts a fleet of independently deployed MCP agent
containers behind a single endpoint.

It discovers running agents via container-platform metadata, forwards
tool calls to the agent that owns them, and applies timeout, retry,
circuit-breaker, and validation discipline to every outbound call.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
