// Package sink defines durable output backends for recorded operations.
// Implementations persist the trace to different backends (filesystem,
// SQLite, stdout, in-process callback).
package sink

import (
	"fmt"

	"github.com/hazyhaar/optrace/record"
)

// Sink creates one durable handle per operation. All handle writes are
// fire-and-forget from the core's perspective: errors are logged by the
// caller, never treated as fatal.
type Sink interface {
	CreateOperation(seq uint64, tabType string, kind record.Kind) (OperationSink, error)
	Close() error
}

// OperationSink receives everything attributed to a single operation.
// Implementations must be safe for concurrent use: mutation batches and
// network records arrive from independent streams.
type OperationSink interface {
	WriteTrigger(t record.Trigger) error
	AppendMutationBatch(b record.MutationBatch) error
	AppendNetworkRecord(r record.NetworkRecord) error
	WriteSnapshot(html []byte) error
	// WriteScreenshot stores image bytes for a capture phase ("after", ...)
	// and returns a locator relative to the operation.
	WriteScreenshot(phase string, png []byte) (string, error)
}

// Token renders an operation identifier as its zero-padded storage token,
// e.g. 0007_click.
func Token(seq uint64, kind record.Kind) string {
	return fmt.Sprintf("%04d_%s", seq, kind)
}
