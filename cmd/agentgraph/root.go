package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agentgraph",
	Short: "Agentgraph is a workflow graph definition service",
	Long: `Agentgraph validates, stores, and serves directed agent workflow graphs
composed of worker, supervisor, and tool nodes. It exposes an HTTP API for
the dashboard editor and an MCP server for agent clients.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the configuration file")
}
