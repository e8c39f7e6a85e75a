// Package session implements the operation-routing core: it assigns every
// recorded operation a session-wide identifier and attributes every
// asynchronously arriving mutation batch and network record to the right
// operation, per tab, across the settle window that follows user actions.
package session

import (
	"sync"
	"time"

	"github.com/hazyhaar/optrace/record"
	"github.com/hazyhaar/optrace/sink"
)

// Operation is the unit of attribution: one navigation or user action and
// everything recorded while it was current. Immutable after creation
// except for its two append-only collections.
type Operation struct {
	Seq         uint64
	TabID       string
	Kind        record.Kind
	Trigger     record.Trigger
	TriggeredAt time.Time

	// handle is nil when durable creation failed; the operation then
	// still exists for attribution but its writes are dropped.
	handle sink.OperationSink

	mu      sync.Mutex
	batches []record.MutationBatch
	network []record.NetworkRecord
}

// appendBatch stores the batch and forwards it to the durable handle.
func (o *Operation) appendBatch(b record.MutationBatch) error {
	o.mu.Lock()
	o.batches = append(o.batches, b)
	h := o.handle
	o.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.AppendMutationBatch(b)
}

// appendNetwork stores the record and forwards it to the durable handle.
func (o *Operation) appendNetwork(r record.NetworkRecord) error {
	o.mu.Lock()
	o.network = append(o.network, r)
	h := o.handle
	o.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.AppendNetworkRecord(r)
}

// MutationBatches returns a copy of the batches attributed so far.
func (o *Operation) MutationBatches() []record.MutationBatch {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]record.MutationBatch, len(o.batches))
	copy(out, o.batches)
	return out
}

// NetworkRecords returns a copy of the network records attributed so far.
func (o *Operation) NetworkRecords() []record.NetworkRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]record.NetworkRecord, len(o.network))
	copy(out, o.network)
	return out
}
