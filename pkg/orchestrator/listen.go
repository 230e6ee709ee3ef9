package orchestrator

import (
	"context"

	"github.com/cuemby/launcher/pkg/deployment"
	"github.com/cuemby/launcher/pkg/events"
	"github.com/cuemby/launcher/pkg/types"
)

// binding turns one push event into the action it stands for. A nil action
// means the event was malformed and is dropped.
type binding func(e *events.Event) deployment.Action

func statusBinding(kind types.StatusKind) binding {
	return func(e *events.Event) deployment.Action {
		if e.Entry == nil {
			return nil
		}
		return deployment.StatusReceived{ClusterID: e.ClusterID, Kind: kind, Entry: *e.Entry}
	}
}

var bindings = map[events.Channel]binding{
	events.ChannelSystemStatus: statusBinding(types.KindSystem),
	events.ChannelAppStatus:    statusBinding(types.KindApp),
	events.ChannelEngineStatus: statusBinding(types.KindEngine),

	events.ChannelK8Dashboard: func(e *events.Event) deployment.Action {
		return deployment.SetK8Dashboard{ClusterID: e.ClusterID, Item: types.NewFetchable(e.Data, false, "")}
	},
	events.ChannelK8DashboardError: func(e *events.Event) deployment.Action {
		return deployment.SetK8Dashboard{ClusterID: e.ClusterID, Item: types.NewFetchable("", false, e.Error)}
	},
	events.ChannelIPFSDashboard: func(e *events.Event) deployment.Action {
		return deployment.SetIPFSDashboard{ClusterID: e.ClusterID, Item: types.NewFetchable(e.Data, false, "")}
	},
	events.ChannelIPFSDashboardError: func(e *events.Event) deployment.Action {
		return deployment.SetIPFSDashboard{ClusterID: e.ClusterID, Item: types.NewFetchable("", false, e.Error)}
	},
	events.ChannelAdminAccess: func(e *events.Event) deployment.Action {
		return deployment.SetAdminPanel{ClusterID: e.ClusterID, Item: types.NewFetchable(true, false, "")}
	},
	events.ChannelAdminAccessError: func(e *events.Event) deployment.Action {
		return deployment.SetAdminPanel{ClusterID: e.ClusterID, Item: types.NewFetchable(false, false, e.Error)}
	},
}

// Listen applies push events from broker to the store until ctx is done or
// the subscription is closed. Every published event is applied.
func (o *Orchestrator) Listen(ctx context.Context, broker *events.Broker) {
	sub := broker.SubscribeQueued()
	defer broker.Unsubscribe(sub)

	logger := o.logger.With().Str("loop", "listen").Logger()
	logger.Debug().Msg("Listening for push events")

	for {
		select {
		case e, ok := <-sub:
			if !ok {
				return
			}
			o.handleEvent(e)
		case <-ctx.Done():
			return
		}
	}
}

func (o *Orchestrator) handleEvent(e *events.Event) {
	bind, ok := bindings[e.Channel]
	if !ok {
		return
	}
	action := bind(e)
	if action == nil {
		o.logger.Warn().
			Str("channel", string(e.Channel)).
			Str("cluster_id", e.ClusterID).
			Msg("Dropping malformed push event")
		return
	}
	o.store.Dispatch(action)
}
