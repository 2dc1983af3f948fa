package core

import (
	"context"

	"github.com/kfget/kfget/internal/batch"
	"github.com/kfget/kfget/internal/engine/types"
)

// PipelineService defines the interface the front-ends use to drive the
// download pipeline. This abstraction keeps the TUI and the headless CLI
// command on the same backend.
type PipelineService interface {
	// Start runs a batch of player URLs into destdir. It returns
	// immediately; completion is signalled by a BatchDoneMsg on the event
	// stream. Only one batch can run at a time.
	Start(ctx context.Context, urls []string, destDir string) error

	// Cancel stops the whole in-flight batch.
	Cancel() error

	// CancelItem stops a single in-flight request by id.
	CancelItem(requestID string) error

	// State reports whether the pipeline is idle, running or cancelling.
	State() batch.State

	// Results returns the per-URL outcomes of the last finished batch,
	// in input order.
	Results() []types.DownloadResult

	// StreamEvents returns a channel of pipeline events and a release
	// function the consumer must call when done.
	StreamEvents(ctx context.Context) (<-chan any, func(), error)

	// Shutdown cancels any running batch and releases resources.
	Shutdown() error
}
