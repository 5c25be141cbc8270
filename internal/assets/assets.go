// Package assets implements the asset resolver invoked during submitJob:
// mapping human-readable asset names to opaque content IDs via an
// asynchronous, correlation-ID request over the event bus.
package assets

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"jobcore/internal/events"
)

// Error reports that one or more requested assets could not be
// resolved, or that the resolver replied with a different count than
// was requested.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return fmt.Sprintf("asset resolution: %s", e.Reason) }

// Requester is the event-bus surface the resolver needs: a correlated
// request/reply round trip.
type Requester interface {
	Request(ctx context.Context, subject string, payload interface{}, reply interface{}) error
}

// Resolver resolves human-readable asset names to content IDs.
type Resolver struct {
	bus Requester
}

// New returns a Resolver that issues verify_assets requests over bus.
func New(bus Requester) *Resolver {
	return &Resolver{bus: bus}
}

// Resolve maps names to content IDs, keyed by a freshly generated
// correlation ID so concurrent submitJob calls never cross-wire replies.
func (r *Resolver) Resolve(ctx context.Context, names []string) (map[string]string, error) {
	if len(names) == 0 {
		return map[string]string{}, nil
	}

	msgID := uuid.NewString()
	req := events.VerifyAssetsRequest{Assets: names, MsgID: msgID}

	var reply events.VerifyAssetsReply
	if err := r.bus.Request(ctx, string(events.JobsServiceVerifyAssets), req, &reply); err != nil {
		return nil, &Error{Reason: fmt.Sprintf("request failed: %v", err)}
	}
	if reply.Error != "" {
		return nil, &Error{Reason: reply.Error}
	}
	if len(reply.Assets) != len(names) {
		return nil, &Error{Reason: fmt.Sprintf("resolved %d assets, requested %d", len(reply.Assets), len(names))}
	}
	for _, name := range names {
		if _, ok := reply.Assets[name]; !ok {
			return nil, &Error{Reason: fmt.Sprintf("asset %q not resolved", name)}
		}
	}
	return reply.Assets, nil
}
