package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cuemby/launcher/pkg/types"
	"github.com/cuemby/launcher/pkg/workloads"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/labels"
)

// workloadClient opens the registry only long enough to resolve the cluster
func workloadClient(ref string) (*types.Cluster, *workloads.Client, error) {
	registry, _, err := openRegistry()
	if err != nil {
		return nil, nil, err
	}
	defer registry.Close()

	cluster, err := lookupCluster(registry, ref)
	if err != nil {
		return nil, nil, err
	}

	client, err := workloads.NewClientForCluster(cluster, cfg.Kubeconfig)
	if err != nil {
		return nil, nil, err
	}
	return cluster, client, nil
}

func clusterRelease(c *types.Cluster) string {
	if r := c.Configs[types.ConfigReleaseName]; r != "" {
		return r
	}
	return cfg.Release
}

var workloadsCmd = &cobra.Command{
	Use:   "workloads NAME|ID",
	Short: "Show the engine workloads running in a cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cluster, client, err := workloadClient(args[0])
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		list, err := client.GetWorkloads(ctx, clusterRelease(cluster))
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WORKLOAD\tPOD\tSTATUS\tREADY\tRESTARTS\tAGE")
		for _, wl := range list {
			if len(wl.Pods) == 0 {
				fmt.Fprintf(w, "%s\t-\t\t\t\t\n", wl.Label)
				continue
			}
			for _, p := range wl.Pods {
				ready, restarts := containerSummary(p)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", wl.Label, p.Name, p.Status, ready, restarts, age(p.Age))
			}
		}
		return w.Flush()
	},
}

// Pod commands
var podsCmd = &cobra.Command{
	Use:   "pods",
	Short: "Inspect and remove pods",
}

var podsListCmd = &cobra.Command{
	Use:   "list NAME|ID",
	Short: "List pods matching a label selector and name prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		selector, _ := cmd.Flags().GetString("selector")
		prefix, _ := cmd.Flags().GetString("prefix")

		if _, err := labels.Parse(selector); err != nil {
			return fmt.Errorf("invalid selector: %w", err)
		}

		_, client, err := workloadClient(args[0])
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		pods, err := client.ListPods(ctx, workloads.Selector{Labels: selector, NamePrefix: prefix})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "POD\tSTATUS\tREADY\tRESTARTS\tAGE")
		for _, p := range pods {
			ready, restarts := containerSummary(p)
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", p.Name, p.Status, ready, restarts, age(p.Age))
		}
		return w.Flush()
	},
}

var podsRemoveCmd = &cobra.Command{
	Use:     "remove NAME|ID POD",
	Aliases: []string{"rm"},
	Short:   "Delete a pod so its controller recreates it",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := workloadClient(args[0])
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		pod, err := client.RemovePod(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("✓ Pod removed: %s (was %s)\n", pod.Name, pod.Status)
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs NAME|ID POD",
	Short: "Print the logs of a pod container",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		container, _ := cmd.Flags().GetString("container")

		_, client, err := workloadClient(args[0])
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		logs, err := client.GetPodLogs(ctx, args[1], container)
		if err != nil {
			return err
		}
		fmt.Print(logs)
		if logs != "" && !strings.HasSuffix(logs, "\n") {
			fmt.Println()
		}
		return nil
	},
}

func init() {
	podsCmd.AddCommand(podsListCmd)
	podsCmd.AddCommand(podsRemoveCmd)

	podsListCmd.Flags().StringP("selector", "l", "", "Label selector, e.g. app=engine,tier=api")
	podsListCmd.Flags().String("prefix", "", "Only pods whose name starts with this prefix")

	logsCmd.Flags().StringP("container", "c", "", "Container name (required for multi-container pods)")
}

func containerSummary(p types.WorkloadPod) (ready string, restarts int32) {
	n := 0
	for _, c := range p.Containers {
		if c.Ready {
			n++
		}
		restarts += c.Restarts
	}
	return fmt.Sprintf("%d/%d", n, len(p.Containers)), restarts
}

func age(created time.Time) string {
	if created.IsZero() {
		return "-"
	}
	d := time.Since(created)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}
