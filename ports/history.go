package ports

import (
	"context"

	"github.com/layer-3/authrelay/core"
)

// History is the JSON-RPC correlation ledger.
type History interface {
	// Set records a request. Recording an id twice keeps the first record.
	Set(ctx context.Context, topic string, req core.Request, dir core.Direction) error
	Get(ctx context.Context, id uint64) (core.HistoryRecord, error)
	// Resolve attaches a response to the request with the same id.
	Resolve(ctx context.Context, res core.Response) (core.HistoryRecord, error)
	DeleteTopic(ctx context.Context, topic string) error
}
