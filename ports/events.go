package ports

import (
	"context"

	"github.com/layer-3/authrelay/core"
)

// EventEmitter delivers lifecycle events to the owning client.
type EventEmitter interface {
	Emit(ctx context.Context, event core.Event, args any) error
}
