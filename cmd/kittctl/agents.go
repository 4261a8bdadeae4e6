package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Inspect registered agents",
}

var listAgentsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered agents",
	RunE:  runListAgents,
}

func init() {
	agentsCmd.AddCommand(listAgentsCmd)
}

func runListAgents(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	agents, err := client().ListAgents(ctx)
	if err != nil {
		fail(err)
		return nil
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(agents)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tHOSTNAME\tSTATUS\tARCH\tVERSION")
	for _, a := range agents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Hostname, a.Status, a.CPUArch, a.KittVersion)
	}
	return w.Flush()
}
