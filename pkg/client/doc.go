/*
Package client is a Go client for the read-only HTTP API that
`launcher serve` exposes.

It lets other processes, and the launcher CLI itself, read the aggregated
deployment state of a running launcher without opening its registry:

	c, err := client.NewClient("127.0.0.1:9440")
	if err != nil {
		return err
	}
	state, err := c.Deployment(ctx, clusterID)

Watch follows the live event stream over a websocket and hands each status
update, dashboard link or error to a callback:

	err = c.Watch(ctx, clusterID, func(e *events.Event) error {
		fmt.Println(e.Channel, e.ClusterID)
		return nil
	})

Non-2xx replies are returned as *APIError; a 404 also matches ErrNotFound
with errors.Is.
*/
package client
