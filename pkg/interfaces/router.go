package interfaces

import (
	"context"

	"skillswap/pkg/types"
)

// MessageRouter dispatches relay envelopes on behalf of a sender
// ARCHITECTURAL DISCOVERY: Router contract isolates event semantics from
// the hub's ordering loop
type MessageRouter interface {
	// RouteMessage handles one inbound envelope from sender
	RouteMessage(ctx context.Context, sender Connection, envelope *types.Envelope) error

	// HandleDisconnect removes the connection from every room and notifies remaining members
	HandleDisconnect(ctx context.Context, conn Connection)
}
