package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/cuemby/launcher/pkg/storage"
	"github.com/cuemby/launcher/pkg/types"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Cluster commands
var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage registered clusters",
}

var clusterAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Register a local cluster",
	Long: `Register a local cluster with the launcher.

Examples:
  launcher cluster add dev --type minikube \
    --config ENGINE_PATH=$HOME/src/engine \
    --config CONFIGURE_SCRIPT=$HOME/src/ops/configure.sh \
    --var ENABLE_RIPPLE_STACK=false`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		typeFlag, _ := cmd.Flags().GetString("type")
		configPairs, _ := cmd.Flags().GetStringArray("config")
		varPairs, _ := cmd.Flags().GetStringArray("var")

		clusterType, err := parseClusterType(typeFlag)
		if err != nil {
			return err
		}
		configs, err := parsePairs(configPairs)
		if err != nil {
			return err
		}
		variables, err := parsePairs(varPairs)
		if err != nil {
			return err
		}

		registry, _, err := openRegistry()
		if err != nil {
			return err
		}
		defer registry.Close()

		if _, err := registry.GetClusterByName(args[0]); err == nil {
			return fmt.Errorf("cluster %q already exists", args[0])
		}

		cluster := &types.Cluster{
			ID:        uuid.New().String(),
			Name:      args[0],
			Type:      clusterType,
			Configs:   configs,
			Variables: variables,
		}
		if err := registry.CreateCluster(cluster); err != nil {
			return fmt.Errorf("failed to register cluster: %w", err)
		}

		fmt.Printf("✓ Cluster registered: %s (ID: %s)\n", cluster.Name, cluster.ID)
		return nil
	},
}

var clusterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered clusters",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, _, err := openRegistry()
		if err != nil {
			return err
		}
		defer registry.Close()

		clusters, err := registry.ListClusters()
		if err != nil {
			return err
		}
		if len(clusters) == 0 {
			fmt.Println("No clusters registered. Add one with 'launcher cluster add'.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTYPE\tRELEASE\tID")
		for _, c := range clusters {
			release := c.Configs[types.ConfigReleaseName]
			if release == "" {
				release = cfg.Release
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, c.Type, release, c.ID)
		}
		return w.Flush()
	},
}

var clusterRemoveCmd = &cobra.Command{
	Use:     "remove NAME|ID",
	Aliases: []string{"rm"},
	Short:   "Remove a registered cluster",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, _, err := openRegistry()
		if err != nil {
			return err
		}
		defer registry.Close()

		cluster, err := lookupCluster(registry, args[0])
		if err != nil {
			return err
		}
		if err := registry.DeleteCluster(cluster.ID); err != nil {
			return err
		}

		fmt.Printf("✓ Cluster removed: %s\n", cluster.Name)
		return nil
	},
}

func init() {
	clusterCmd.AddCommand(clusterAddCmd)
	clusterCmd.AddCommand(clusterListCmd)
	clusterCmd.AddCommand(clusterRemoveCmd)

	clusterAddCmd.Flags().String("type", "minikube", "Cluster type (minikube or microk8s)")
	clusterAddCmd.Flags().StringArray("config", nil, "Cluster config KEY=VALUE (repeatable)")
	clusterAddCmd.Flags().StringArray("var", nil, "Cluster variable KEY=VALUE (repeatable)")
}

// Password commands
var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Manage the stored sudo password",
}

var passwordSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the sudo password used for probes and configuration",
	Long: `Store the sudo password used for probes and configuration.

The password is encrypted with a key kept in the data directory. Without
--stdin it is read from the terminal with echo disabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fromStdin, _ := cmd.Flags().GetBool("stdin")

		password, err := readPassword(fromStdin, "Sudo password: ")
		if err != nil {
			return err
		}

		registry, credentials, err := openRegistry()
		if err != nil {
			return err
		}
		defer registry.Close()

		if err := credentials.SetSudoPassword(password); err != nil {
			return err
		}
		fmt.Println("✓ Sudo password stored")
		return nil
	},
}

var passwordClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the stored sudo password",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, credentials, err := openRegistry()
		if err != nil {
			return err
		}
		defer registry.Close()

		if err := credentials.ClearSudoPassword(); err != nil {
			return err
		}
		fmt.Println("✓ Sudo password cleared")
		return nil
	},
}

func init() {
	passwordCmd.AddCommand(passwordSetCmd)
	passwordCmd.AddCommand(passwordClearCmd)

	passwordSetCmd.Flags().Bool("stdin", false, "Read the password from standard input")
}

// Helper functions
func parseClusterType(s string) (types.ClusterType, error) {
	switch strings.ToLower(s) {
	case "minikube":
		return types.ClusterTypeMinikube, nil
	case "microk8s":
		return types.ClusterTypeMicroK8s, nil
	}
	return "", fmt.Errorf("unsupported cluster type %q: expected minikube or microk8s", s)
}

func parsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid pair %q: expected KEY=VALUE", p)
		}
		out[key] = value
	}
	return out, nil
}

func readPassword(fromStdin bool, prompt string) (string, error) {
	if fromStdin || !term.IsTerminal(int(os.Stdin.Fd())) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrClusterNotFound)
}
