package main

import (
	"fmt"
	"os"

	"github.com/cuemby/launcher/pkg/config"
	"github.com/cuemby/launcher/pkg/log"
	"github.com/cuemby/launcher/pkg/metrics"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// cfg is loaded once by the root command before any subcommand runs
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "launcher",
	Short: "Launcher - configure and observe local engine deployments",
	Long: `Launcher configures a local Kubernetes cluster (Minikube or MicroK8s)
for the engine, checks the status of every component it depends on,
and shows the workloads running inside the cluster.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("data-dir") {
			loaded.DataDir, _ = cmd.Flags().GetString("data-dir")
		}
		if cmd.Flags().Changed("log-level") {
			level, _ := cmd.Flags().GetString("log-level")
			loaded.Log.Level = string(log.ParseLevel(level))
		}
		if cmd.Flags().Changed("kubeconfig") {
			loaded.Kubeconfig, _ = cmd.Flags().GetString("kubeconfig")
		}

		log.Init(loaded.LoggerConfig())
		metrics.SetVersion(Version)
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Launcher version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to a launcher YAML config file")
	rootCmd.PersistentFlags().String("data-dir", "", "Directory holding the cluster registry")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("kubeconfig", "", "Path to the kubeconfig file")

	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(passwordCmd)
	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(workloadsCmd)
	rootCmd.AddCommand(podsCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(serveCmd)
}
