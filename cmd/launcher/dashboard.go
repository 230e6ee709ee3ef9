package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/launcher/pkg/types"
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard k8|ipfs NAME|ID",
	Short: "Open a cluster dashboard and keep it reachable until interrupted",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		cluster, err := lookupCluster(a.registry, args[1])
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		var (
			fetch func(context.Context, *types.Cluster) error
			reset func(string)
			item  func(*types.DeploymentState) types.FetchableItem[string]
		)
		switch args[0] {
		case "k8":
			fetch, reset = a.orch.FetchK8Dashboard, a.orch.ClearK8Dashboard
			item = func(d *types.DeploymentState) types.FetchableItem[string] { return d.K8Dashboard }
		case "ipfs":
			fetch, reset = a.orch.FetchIPFSDashboard, a.orch.ClearIPFSDashboard
			item = func(d *types.DeploymentState) types.FetchableItem[string] { return d.IPFS }
		default:
			return fmt.Errorf("unknown dashboard %q: expected k8 or ipfs", args[0])
		}

		a.orch.RegisterCluster(cluster.ID)
		if err := fetch(ctx, cluster); err != nil {
			return err
		}
		defer func() {
			reset(cluster.ID)
			a.backend.StopForwards(cluster.ID)
		}()

		result, err := waitItem(ctx, timeout, func() (types.FetchableItem[string], bool) {
			d, ok := a.orch.Deployment(cluster.ID)
			if !ok {
				return types.FetchableItem[string]{}, false
			}
			return item(d), true
		})
		if err != nil {
			return err
		}
		if result.Error != "" {
			return fmt.Errorf("dashboard failed: %s", result.Error)
		}

		fmt.Printf("✓ Dashboard available at %s\n", result.Data)
		fmt.Println("Press Ctrl+C to stop.")
		<-ctx.Done()
		return nil
	},
}

var adminAccessCmd = &cobra.Command{
	Use:   "admin-access NAME|ID",
	Short: "Check that the engine admin panel is reachable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		cluster, err := lookupCluster(a.registry, args[0])
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		a.orch.RegisterCluster(cluster.ID)
		if err := a.orch.FetchAdminPanelAccess(ctx, cluster); err != nil {
			return err
		}
		defer a.orch.ClearAdminPanelAccess(cluster.ID)

		result, err := waitItem(ctx, timeout, func() (types.FetchableItem[bool], bool) {
			d, ok := a.orch.Deployment(cluster.ID)
			if !ok {
				return types.FetchableItem[bool]{}, false
			}
			return d.AdminPanel, true
		})
		if err != nil {
			return err
		}
		if result.Error != "" || !result.Data {
			return fmt.Errorf("admin panel not reachable: %s", result.Error)
		}
		fmt.Println("✓ Admin panel is reachable")
		return nil
	},
}

func init() {
	dashboardCmd.Flags().Duration("timeout", 3*time.Minute, "How long to wait for the dashboard to answer")
	adminAccessCmd.Flags().Duration("timeout", 3*time.Minute, "How long to wait for the admin panel")

	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(adminAccessCmd)
}

// waitItem polls until the item stops loading
func waitItem[T any](ctx context.Context, timeout time.Duration, get func() (types.FetchableItem[T], bool)) (types.FetchableItem[T], error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		if item, ok := get(); ok && !item.Loading {
			return item, nil
		}
		select {
		case <-ctx.Done():
			return types.FetchableItem[T]{}, fmt.Errorf("timed out: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
