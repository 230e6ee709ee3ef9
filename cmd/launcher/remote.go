package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/cuemby/launcher/pkg/client"
	"github.com/cuemby/launcher/pkg/events"
	"github.com/spf13/cobra"
)

// serverClient connects to the API of a running 'launcher serve'
func serverClient(cmd *cobra.Command) (*client.Client, error) {
	addr, _ := cmd.Flags().GetString("server")
	if addr == "" {
		addr = cfg.API.Address
	}
	return client.NewClient(addr)
}

var watchCmd = &cobra.Command{
	Use:   "watch [CLUSTER_ID]",
	Short: "Follow live status events from a running launcher",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := serverClient(cmd)
		if err != nil {
			return err
		}

		var clusterID string
		if len(args) == 1 {
			clusterID = args[0]
		}

		ctx, cancel := signalContext()
		defer cancel()

		return c.Watch(ctx, clusterID, func(e *events.Event) error {
			fmt.Println(formatEvent(e))
			return nil
		})
	},
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Show recent notifications from a running launcher",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := serverClient(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		notes, err := c.Notifications(ctx)
		if err != nil {
			return err
		}
		if len(notes) == 0 {
			fmt.Println("No notifications.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CLUSTER\tSEVERITY\tMESSAGE")
		for _, n := range notes {
			fmt.Fprintf(w, "%s\t%s\t%s\n", n.ClusterID, n.Severity, n.Message)
		}
		return w.Flush()
	},
}

func init() {
	for _, cmd := range []*cobra.Command{watchCmd, notificationsCmd} {
		cmd.Flags().String("server", "", "Address of the launcher API (default from config)")
		rootCmd.AddCommand(cmd)
	}
}

func formatEvent(e *events.Event) string {
	ts := e.Timestamp.Format("15:04:05")
	switch {
	case e.Entry != nil:
		line := fmt.Sprintf("%s  %s  %s  %s=%s", ts, e.ClusterID, e.Channel, e.Entry.ID, e.Entry.Status)
		if e.Entry.Detail != "" {
			line += "  " + e.Entry.Detail
		}
		return line
	case e.Error != "":
		return fmt.Sprintf("%s  %s  %s  error: %s", ts, e.ClusterID, e.Channel, e.Error)
	default:
		return fmt.Sprintf("%s  %s  %s  %s", ts, e.ClusterID, e.Channel, e.Data)
	}
}
