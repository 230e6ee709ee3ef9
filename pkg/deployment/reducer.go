package deployment

import (
	"maps"
	"slices"

	"github.com/cuemby/launcher/pkg/types"
)

// State maps cluster ids to their deployment. A State returned by Reduce is
// never mutated afterwards: a transition copies the map and the single
// deployment it touches, so every other cluster keeps the same pointer.
type State map[string]*types.DeploymentState

// Reduce applies one action and returns the next state. The second return
// value is false when the action left the state unchanged, in which case the
// returned State is prev itself.
func Reduce(prev State, action Action) (State, bool) {
	id := action.Cluster()
	current, exists := prev[id]

	switch a := action.(type) {
	case RegisterCluster:
		if exists {
			return prev, false
		}
		return prev.with(id, types.NewDeploymentState(id)), true

	case RemoveDeployment:
		if !exists {
			return prev, false
		}
		next := maps.Clone(prev)
		delete(next, id)
		return next, true

	case SetDeploymentApps:
		var next *types.DeploymentState
		if exists {
			next = current.Clone()
		} else {
			next = types.NewDeploymentState(id)
		}
		next.IsFetchingStatuses = true
		next.SystemStatus = cloneList(a.Bundle.SystemStatus)
		next.AppStatus = cloneList(a.Bundle.AppStatus)
		next.EngineStatus = cloneList(a.Bundle.EngineStatus)
		return prev.with(id, next), true

	case SetConfiguring:
		return prev.update(id, func(d *types.DeploymentState) bool {
			d.IsConfiguring = a.Configuring
			return true
		})

	case SetFetchingStatuses:
		return prev.update(id, func(d *types.DeploymentState) bool {
			d.IsFetchingStatuses = a.Fetching
			if !a.Fetching {
				d.IsFirstFetched = true
			}
			return true
		})

	case StatusReceived:
		return prev.update(id, func(d *types.DeploymentState) bool {
			list := d.StatusList(a.Kind)
			if list == nil {
				return false
			}
			i := slices.IndexFunc(*list, func(e types.StatusEntry) bool { return e.ID == a.Entry.ID })
			if i < 0 {
				// Entries are only ever introduced by a bulk replace.
				return false
			}
			(*list)[i] = a.Entry
			return true
		})

	case SetGitStatus:
		return prev.update(id, func(d *types.DeploymentState) bool {
			item := a.Item
			if item.Data != nil {
				data := *item.Data
				item.Data = &data
			}
			d.GitStatus[a.Role] = item
			return true
		})

	case SetK8Dashboard:
		return prev.update(id, func(d *types.DeploymentState) bool {
			d.K8Dashboard = a.Item
			return true
		})

	case SetIPFSDashboard:
		return prev.update(id, func(d *types.DeploymentState) bool {
			d.IPFS = a.Item
			return true
		})

	case SetAdminPanel:
		return prev.update(id, func(d *types.DeploymentState) bool {
			d.AdminPanel = a.Item
			return true
		})
	}

	return prev, false
}

// update applies fn to a copy of the deployment for id. Actions other than a
// bulk replace or a registration never create a deployment.
func (s State) update(id string, fn func(*types.DeploymentState) bool) (State, bool) {
	current, exists := s[id]
	if !exists {
		return s, false
	}
	next := current.Clone()
	if !fn(next) {
		return s, false
	}
	return s.with(id, next), true
}

func (s State) with(id string, d *types.DeploymentState) State {
	next := make(State, len(s)+1)
	maps.Copy(next, s)
	next[id] = d
	return next
}

func cloneList(entries []types.StatusEntry) []types.StatusEntry {
	if entries == nil {
		return []types.StatusEntry{}
	}
	return slices.Clone(entries)
}
