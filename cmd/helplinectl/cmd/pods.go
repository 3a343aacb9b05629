package cmd

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pilab-dev/helpline/api"
	"github.com/pilab-dev/helpline/cmd/helplinectl/client"
	"github.com/spf13/cobra"
)

func newPodsCmd(newClient func() *client.Client) *cobra.Command {
	podsCmd := &cobra.Command{
		Use:     "pods",
		Short:   "List, open and close pods",
		Aliases: []string{"pod"},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the pods of a region",
		RunE: func(cmd *cobra.Command, _ []string) error {
			region, _ := cmd.Flags().GetString("region")
			demo, _ := cmd.Flags().GetBool("demo")

			resp, err := newClient().ListPods(cmd.Context(), region, demo)
			if err != nil {
				return fmt.Errorf("failed to list pods: %w", err)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetTitle(resp.Region)
			t.AppendHeader(table.Row{"Pod", "Region", "Entry Points", "Demo"})
			for _, p := range resp.Pods {
				eps := make([]string, len(p.EntryPoints))
				for i, ep := range p.EntryPoints {
					eps[i] = string(ep)
				}
				t.AppendRow(table.Row{p.Name, p.RegionCode, strings.Join(eps, ","), p.Demo})
			}
			t.AppendFooter(table.Row{"", "", "Total", len(resp.Pods)})
			t.Render()
			return nil
		},
	}
	listCmd.Flags().String("region", "", "region name, code or group (empty lists the overflow group)")
	listCmd.Flags().Bool("demo", false, "list demo pods")

	openCmd := &cobra.Command{
		Use:   "open <pod>",
		Short: "Open a pod for the given entry points, closing it for the others",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			region, _ := cmd.Flags().GetString("region")
			eps, _ := cmd.Flags().GetStringSlice("entry-points")
			return setPodState(cmd, newClient(), region, args[0], eps)
		},
	}
	openCmd.Flags().String("region", "", "region the pod serves")
	openCmd.Flags().StringSlice("entry-points", []string{"PULL"}, "entry points to accept (PUSH, PULL)")

	closeCmd := &cobra.Command{
		Use:   "close <pod>",
		Short: "Close a pod for every entry point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			region, _ := cmd.Flags().GetString("region")
			return setPodState(cmd, newClient(), region, args[0], nil)
		},
	}
	closeCmd.Flags().String("region", "", "region the pod serves")

	podsCmd.AddCommand(listCmd, openCmd, closeCmd)
	return podsCmd
}

func setPodState(cmd *cobra.Command, c *client.Client, region, pod string, eps []string) error {
	err := c.SetPodState(cmd.Context(), api.PodStateRequest{
		Region:      region,
		Pod:         pod,
		EntryPoints: eps,
	})
	if err != nil {
		return fmt.Errorf("failed to update pod %s: %w", pod, err)
	}
	if len(eps) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Pod %s closed.\n", pod)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Pod %s open for %s.\n", pod, strings.Join(eps, ", "))
	}
	return nil
}
