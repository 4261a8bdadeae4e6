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

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Launch and inspect benchmark campaigns",
}

var runAgentID string

var campaignRunCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Create and start a campaign from a config file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCampaignRun,
}

var campaignStatusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Show a campaign's current status (the campaign id is required)",
	Args:  cobra.ExactArgs(1),
	RunE:  runCampaignStatus,
}

var campaignCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a running campaign",
	Args:  cobra.ExactArgs(1),
	RunE:  runCampaignCancel,
}

func init() {
	campaignRunCmd.Flags().StringVar(&runAgentID, "agent", "", "agent ID to run the campaign on (required)")
	_ = campaignRunCmd.MarkFlagRequired("agent")

	campaignCmd.AddCommand(campaignRunCmd, campaignStatusCmd, campaignCancelCmd)
}

func runCampaignRun(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitUserError)
		return nil
	}
	var probe struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid campaign config: %v\n", err)
		os.Exit(exitUserError)
		return nil
	}
	if probe.Name == "" {
		probe.Name = args[0]
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	c := client()
	id, err := c.CreateCampaign(ctx, probe.Name, raw)
	if err != nil {
		fail(err)
		return nil
	}

	campaign, err := c.StartCampaign(ctx, id, runAgentID)
	if err != nil {
		fail(err)
		return nil
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(campaign)
	}
	fmt.Printf("campaign %s started (status=%s, agent=%s)\n", campaign.ID, campaign.Status, runAgentID)
	return nil
}

func runCampaignStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	snap, err := client().GetCampaignSnapshot(ctx, args[0])
	if err != nil {
		fail(err)
		return nil
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(snap)
	}

	c := snap.Campaign
	fmt.Printf("Campaign: %s (%s)\n", c.Name, c.ID)
	fmt.Printf("Status: %s\n", c.Status)
	fmt.Printf("Runs: %d total, %d succeeded, %d failed, %d skipped, %d cancelled\n",
		c.TotalRuns, c.Succeeded, c.Failed, c.Skipped, c.Cancelled)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\nMODEL\tENGINE\tQUANT\tSTATUS\tERROR")
	for _, r := range snap.Runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ModelRef, r.EngineName, r.Quant, r.Status, r.ErrorMessage)
	}
	return w.Flush()
}

func runCampaignCancel(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	campaign, err := client().CancelCampaign(ctx, args[0])
	if err != nil {
		fail(err)
		return nil
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(campaign)
	}
	fmt.Printf("campaign %s cancelled (status=%s)\n", campaign.ID, campaign.Status)
	return nil
}
