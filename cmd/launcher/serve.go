package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/launcher/pkg/api"
	"github.com/cuemby/launcher/pkg/metrics"
	"github.com/cuemby/launcher/pkg/reconciler"
	"github.com/cuemby/launcher/pkg/types"
	"github.com/cuemby/launcher/pkg/workloads"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Keep deployment status fresh and serve it over HTTP",
	Long: `Serve polls the status of every registered cluster, keeps the
aggregated view in memory and exposes it read-only over HTTP, together
with workload listings, metrics and a live event stream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("api-addr") {
			cfg.API.Address, _ = cmd.Flags().GetString("api-addr")
		}
		if cmd.Flags().Changed("interval") {
			cfg.Deployment.PollInterval, _ = cmd.Flags().GetDuration("interval")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		clusters, err := a.registry.ListClusters()
		if err != nil {
			metrics.UpdateComponent(metrics.ComponentRegistry, false, err.Error())
			return fmt.Errorf("failed to list clusters: %w", err)
		}
		for _, c := range clusters {
			a.orch.RegisterCluster(c.ID)
		}
		metrics.UpdateComponent(metrics.ComponentRegistry, true, "")
		metrics.UpdateComponent(metrics.ComponentStore, true, "")
		metrics.UpdateComponent(metrics.ComponentEvents, true, "")

		fmt.Println("Starting launcher...")
		fmt.Printf("  Data Directory: %s\n", cfg.DataDir)
		fmt.Printf("  API Address: %s\n", cfg.API.Address)
		fmt.Printf("  Clusters: %d\n", len(clusters))
		fmt.Println()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		collector := metrics.NewCollector(a.store, a.registry)
		collector.Start()
		fmt.Println("✓ Metrics collector started")

		recon := reconciler.NewReconciler(a.orch, a.registry, cfg.Deployment.PollInterval)
		recon.Start(ctx)
		fmt.Println("✓ Reconciler started")

		apiServer, err := api.NewServer(api.Config{
			Deployments:   a.orch,
			Registry:      a.registry,
			Workloads:     workloadsFor(cfg.Kubeconfig),
			Broker:        a.broker,
			Notifications: a.notes,
			Release:       cfg.Release,
		})
		if err != nil {
			recon.Stop()
			collector.Stop()
			return err
		}

		errCh := make(chan error, 1)
		go func() {
			if err := apiServer.Start(cfg.API.Address); err != nil {
				errCh <- fmt.Errorf("API server error: %w", err)
			}
		}()

		fmt.Println()
		fmt.Println("Launcher is running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		var serveErr error
		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case serveErr = <-errCh:
			fmt.Fprintf(os.Stderr, "\nError: %v\n", serveErr)
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: API shutdown: %v\n", err)
		}

		cancel()
		recon.Stop()
		collector.Stop()

		fmt.Println("✓ Shutdown complete")
		return serveErr
	},
}

func init() {
	serveCmd.Flags().String("api-addr", "", "Address for the read-only HTTP API")
	serveCmd.Flags().Duration("interval", 0, "How often every cluster is re-polled")
}

// workloadsFor connects to a cluster's Kubernetes API on demand and
// records whether the API answered
func workloadsFor(kubeconfig string) api.WorkloadsFunc {
	return func(c *types.Cluster) (api.WorkloadLister, error) {
		client, err := workloads.NewClientForCluster(c, kubeconfig)
		if err != nil {
			metrics.UpdateComponent(metrics.ComponentKubernetes, false, err.Error())
			return nil, err
		}
		metrics.UpdateComponent(metrics.ComponentKubernetes, true, "")
		return client, nil
	}
}
