// Copyright Contributors to the KubeTask project

// flowagent polls a flow-run orchestration server's work queues and
// submits due runs to Kubernetes, mirroring the shape of kubeopencode's
// unified CLI binary.
//
// Available commands:
//   - agent start: run the polling agent loop
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "flowagent",
	Short: "flowagent - work-queue agent for a flow-run orchestration server",
	Long: `flowagent polls an orchestration server's work queues and submits
due flow runs as Kubernetes Jobs (or local processes).

Examples:
  # Start the agent against a local server
  flowagent agent start --work-queue=default --server-url=http://localhost:4200/api`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
