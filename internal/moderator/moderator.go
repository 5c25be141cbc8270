// Package moderator implements the Moderator Gate: deciding
// whether an execution's declared external connections are currently
// below throttle limits before it is allowed to run.
package moderator

import (
	"context"
	"fmt"

	"jobcore/internal/store"
)

// ConnectionCheck is one entry of a checkModerator response.
type ConnectionCheck struct {
	Type       string
	Connection string
	CanRun     bool
}

// ClusterService is the subset of the cluster service contract the gate
// consults.
type ClusterService interface {
	CheckModerator(ctx context.Context, connections store.ConnectionMap) ([]ConnectionCheck, error)
}

// Gate evaluates admission against the configured state-store connection
// and the cluster service's live throttle check.
type Gate struct {
	cluster       ClusterService
	stateStoreCon string
}

// New returns a Gate that folds stateStoreConnection, when it is
// non-empty, into the elasticsearch connection type of every checked
// execution.
func New(cluster ClusterService, stateStoreConnection string) *Gate {
	return &Gate{cluster: cluster, stateStoreCon: stateStoreConnection}
}

// Allow reports whether conns may currently be admitted. An empty
// declaration (possible only when no state-store connection is
// configured, since that one is folded in) short-circuits to true
// without consulting the cluster.
func (g *Gate) Allow(ctx context.Context, conns store.ConnectionMap) (bool, error) {
	effective := withStateStore(conns, g.stateStoreCon)
	if effective.Empty() {
		return true, nil
	}

	checks, err := g.cluster.CheckModerator(ctx, effective)
	if err != nil {
		return false, fmt.Errorf("moderator check: %w", err)
	}
	for _, c := range checks {
		if !c.CanRun {
			return false, nil
		}
	}
	return true, nil
}

// withStateStore returns a copy of conns with the state-store connection
// name added under "elasticsearch" if not already present, leaving the
// caller's map untouched.
func withStateStore(conns store.ConnectionMap, stateStoreConnection string) store.ConnectionMap {
	out := store.ConnectionMap{}
	for connType, names := range conns {
		out[connType] = append([]string(nil), names...)
	}
	if stateStoreConnection != "" {
		out = out.Add("elasticsearch", stateStoreConnection)
	}
	return out
}
