package workloads

import (
	"context"
	"fmt"

	"github.com/cuemby/launcher/pkg/types"
)

// Role is one logical group of engine pods
type Role struct {
	ID       string
	Label    string
	Selector Selector
}

// Roles returns the workload roles of an engine release
func Roles(release string) []Role {
	instance := fmt.Sprintf("app.kubernetes.io/instance=%s", release)
	return []Role{
		{ID: "builder", Label: "Builder", Selector: Selector{
			Labels: fmt.Sprintf("app.kubernetes.io/instance=%s-builder", release),
		}},
		{ID: "client", Label: "Client", Selector: Selector{
			Labels: instance + ",app.kubernetes.io/component=client",
		}},
		{ID: "api", Label: "Api", Selector: Selector{
			Labels: instance + ",app.kubernetes.io/component=api",
		}},
		{ID: "instance", Label: "Instance", Selector: Selector{
			Labels:     "agones.dev/role=gameserver",
			NamePrefix: release + "-instanceserver-",
		}},
		{ID: "task", Label: "Task", Selector: Selector{
			Labels: instance + ",app.kubernetes.io/component=taskserver",
		}},
		{ID: "projectUpdate", Label: "Project Updater", Selector: Selector{
			Labels: fmt.Sprintf("ir-engine/release=%s,ir-engine/projectUpdater=true", release),
		}},
	}
}

// GetWorkloads lists the pods of every role of release. A role whose query
// fails is returned with no pods; the other roles are unaffected.
func (c *Client) GetWorkloads(ctx context.Context, release string) ([]types.Workload, error) {
	if release == "" {
		return nil, fmt.Errorf("release name is required")
	}

	roles := Roles(release)
	out := make([]types.Workload, 0, len(roles))
	for _, role := range roles {
		pods, err := c.ListPods(ctx, role.Selector)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn().Err(err).Str("role", role.ID).Msg("Failed to get pods info")
			pods = []types.WorkloadPod{}
		}
		out = append(out, types.Workload{ID: role.ID, Label: role.Label, Pods: pods})
	}
	return out, nil
}
