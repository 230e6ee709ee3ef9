package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/cuemby/launcher/pkg/orchestrator"
	"github.com/cuemby/launcher/pkg/security"
	"github.com/cuemby/launcher/pkg/types"
	"github.com/spf13/cobra"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var statusCmd = &cobra.Command{
	Use:   "status NAME|ID",
	Short: "Check the deployment status of a cluster",
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
		fmt.Printf("Checking %s...\n", cluster.Name)
		if err := a.orch.FetchDeploymentStatus(ctx, cluster); err != nil {
			return privilegeHint(err)
		}

		waitCtx, waitCancel := context.WithTimeout(ctx, timeout)
		defer waitCancel()
		d := a.waitSettled(waitCtx, cluster.ID)
		a.orch.Wait()
		if latest, ok := a.orch.Deployment(cluster.ID); ok {
			d = latest
		}
		printDeployment(os.Stdout, d)
		return nil
	},
}

var configureCmd = &cobra.Command{
	Use:   "configure NAME|ID",
	Short: "Run the configure script of a cluster and re-check its status",
	Long: `Run the configure script of a cluster and re-check its status.

Flags given with --flag are passed to the script as environment variables
and take precedence over the cluster's variables and configs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flagPairs, _ := cmd.Flags().GetStringArray("flag")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		flags, err := parsePairs(flagPairs)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		cluster, err := lookupCluster(a.registry, args[0])
		if err != nil {
			return err
		}

		password, err := configurePassword(a.credentials)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		a.orch.RegisterCluster(cluster.ID)
		fmt.Printf("Configuring %s...\n", cluster.Name)
		start := time.Now()
		if err := a.orch.ProcessConfigurations(ctx, cluster, password, flags); err != nil {
			return privilegeHint(err)
		}
		fmt.Printf("✓ Configured in %s, checking status...\n", time.Since(start).Round(time.Second))

		// the post-configure fetch runs in the background
		waitCtx, waitCancel := context.WithTimeout(ctx, timeout)
		defer waitCancel()
		a.orch.Wait()
		d := a.waitSettled(waitCtx, cluster.ID)
		printDeployment(os.Stdout, d)
		return nil
	},
}

func init() {
	statusCmd.Flags().Duration("timeout", 2*time.Minute, "How long to wait for every check to finish")

	configureCmd.Flags().StringArray("flag", nil, "Configure flag KEY=VALUE (repeatable)")
	configureCmd.Flags().Duration("timeout", 2*time.Minute, "How long to wait for the status re-check")
}

// configurePassword returns the password handed to the configure script.
// Hosts that need sudo use the stored password, prompting once if unset.
func configurePassword(creds *security.SudoCredentials) (string, error) {
	if !requiresPrivilege() {
		return "", nil
	}
	password, err := creds.DecryptedSudoPassword(context.Background())
	if err == nil {
		return password, nil
	}
	if !errors.Is(err, security.ErrPasswordNotSet) {
		return "", err
	}

	password, err = readPassword(false, "Sudo password: ")
	if err != nil {
		return "", err
	}
	if err := creds.SetSudoPassword(password); err != nil {
		return "", err
	}
	return password, nil
}

func privilegeHint(err error) error {
	if errors.Is(err, orchestrator.ErrPrivilegeRequired) {
		return fmt.Errorf("%w\nStore it with 'launcher password set'", err)
	}
	return err
}

func printDeployment(w io.Writer, d *types.DeploymentState) {
	if d == nil {
		fmt.Fprintln(w, "No deployment state.")
		return
	}

	sections := []struct {
		title string
		kind  types.StatusKind
	}{
		{"System", types.KindSystem},
		{"Apps", types.KindApp},
		{"Engine", types.KindEngine},
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, s := range sections {
		entries := *d.StatusList(s.kind)
		if len(entries) == 0 {
			continue
		}
		fmt.Fprintf(tw, "\n%s\n", s.title)
		for _, e := range entries {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", e.Label, e.Status, e.Detail)
		}
	}

	fmt.Fprintf(tw, "\nRepositories\n")
	for _, role := range types.RepoRoles {
		item := d.GitStatus[role]
		switch {
		case item.Error != "":
			fmt.Fprintf(tw, "  %s\terror\t%s\n", role, item.Error)
		case item.Data != nil:
			g := item.Data
			dirty := ""
			if g.Dirty {
				dirty = " (dirty)"
			}
			fmt.Fprintf(tw, "  %s\t%s@%s%s\t+%d -%d\n", role, g.Branch, g.Commit, dirty, g.Ahead, g.Behind)
		default:
			fmt.Fprintf(tw, "  %s\t-\t\n", role)
		}
	}
	_ = tw.Flush()
}
