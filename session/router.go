package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/optrace/record"
	"github.com/hazyhaar/optrace/sink"
)

// State is the per-tab routing state.
type State int

const (
	StateIdle State = iota
	StateAwaitingSettle
	StateActive
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingSettle:
		return "awaiting-settle"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// DefaultSettleWindow is the delay after a click or submit during which
// the DOM is allowed to finish reacting before the after state is captured.
const DefaultSettleWindow = 500 * time.Millisecond

// Capture produces page artifacts for an operation. Implemented by the
// browser transport; nil disables capture.
type Capture interface {
	Screenshot(ctx context.Context) ([]byte, error)
	Snapshot(ctx context.Context) ([]byte, error)
}

// RouterConfig configures an OperationRouter.
type RouterConfig struct {
	TabID   string
	TabType string
	Seq     *SequenceAllocator
	Sink    sink.Sink
	Capture Capture // optional
	// SettleWindow overrides DefaultSettleWindow; used by tests.
	SettleWindow time.Duration
	Logger       *slog.Logger
}

// OperationRouter owns one tab's attribution state. It creates operations
// on navigation and user-action triggers and resolves every asynchronously
// arriving mutation batch or network record to the correct operation.
//
// Two targets move at different moments relative to the settle window:
// current (network records, status queries) and mutationTarget (in-flight
// mutation batches). Both are reassigned under the lock before the settle
// sleep begins, so records arriving mid-window resolve to the new
// operation. Overlapping user actions on the same tab race with
// last-write-wins on the targets: the most recently triggered operation
// takes over, and the earlier settle continuation finalizes only its own
// operation's capture.
type OperationRouter struct {
	tabID   string
	tabType string
	seq     *SequenceAllocator
	sink    sink.Sink
	capture Capture
	settle  time.Duration
	logger  *slog.Logger

	mu             sync.Mutex
	state          State
	current        *Operation
	mutationTarget *Operation

	settling sync.WaitGroup
}

// NewRouter creates a router in the idle state.
func NewRouter(cfg RouterConfig) *OperationRouter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SettleWindow <= 0 {
		cfg.SettleWindow = DefaultSettleWindow
	}
	if cfg.TabType == "" {
		cfg.TabType = "page"
	}
	return &OperationRouter{
		tabID:   cfg.TabID,
		tabType: cfg.TabType,
		seq:     cfg.Seq,
		sink:    cfg.Sink,
		capture: cfg.Capture,
		settle:  cfg.SettleWindow,
		logger:  cfg.Logger,
		state:   StateIdle,
	}
}

// OnNavigation handles a navigation notice. The new operation becomes both
// attribution targets immediately; navigations have no settle window. Only
// a main-frame navigation becomes the baseline for subsequent activity and
// gets a full-page snapshot.
func (r *OperationRouter) OnNavigation(nav record.Navigation) {
	trigger := record.Trigger{Kind: record.KindNavigation, Navigation: &nav}

	r.mu.Lock()
	if r.state == StateStopped {
		r.mu.Unlock()
		return
	}
	op := r.newOperationLocked(record.KindNavigation, trigger)
	r.current = op
	r.mutationTarget = op
	r.state = StateActive
	r.mu.Unlock()

	r.writeTrigger(op)
	if nav.MainFrame {
		r.captureSnapshot(op)
	}
}

// OnUserAction handles a gesture from the in-page event source. Both
// attribution targets are reassigned before any suspension, so mutation
// batches arriving during the settle window land on the new operation.
// Click and submit settle for the configured window before the after
// capture; keydown and input finalize immediately.
func (r *OperationRouter) OnUserAction(a record.UserAction) {
	kind, ok := record.ActionKind(string(a.Action))
	if !ok {
		r.logger.Warn("session: discarding unknown user action",
			"tab", r.tabID, "action", string(a.Action))
		return
	}
	trigger := record.Trigger{Kind: kind, Action: &a}

	r.mu.Lock()
	if r.state == StateStopped {
		r.mu.Unlock()
		return
	}
	op := r.newOperationLocked(kind, trigger)
	// Assign before suspend: the mutation target must move to the new
	// operation before the settle sleep can begin.
	r.mutationTarget = op
	r.current = op

	wantSettle := kind == record.KindClick || kind == record.KindSubmit
	if wantSettle {
		r.state = StateAwaitingSettle
	} else {
		r.state = StateActive
	}
	r.mu.Unlock()

	r.writeTrigger(op)

	if wantSettle {
		r.settling.Add(1)
		go func() {
			defer r.settling.Done()
			time.Sleep(r.settle)
			r.finalize(op)
		}()
		return
	}
	r.finalize(op)
}

// finalize runs the post-action capture once the settle window (if any)
// has elapsed. It reactivates the state machine only if this operation is
// still the current one; a later trigger has already moved on otherwise.
func (r *OperationRouter) finalize(op *Operation) {
	r.mu.Lock()
	if r.state == StateStopped {
		r.mu.Unlock()
		return
	}
	if r.current == op && r.state == StateAwaitingSettle {
		r.state = StateActive
	}
	r.mu.Unlock()

	r.captureScreenshot(op, "after")
}

// OnMutationBatch classifies the changes and attributes the batch to the
// current mutation target. Batches with zero changes are discarded, as are
// batches arriving before any operation exists or after stop.
func (r *OperationRouter) OnMutationBatch(timestamp int64, changes []record.DomChange) {
	if len(changes) == 0 {
		return
	}

	r.mu.Lock()
	if r.state == StateStopped {
		r.mu.Unlock()
		return
	}
	target := r.mutationTarget
	r.mu.Unlock()

	if target == nil {
		r.logger.Debug("session: mutation batch before first operation, dropped",
			"tab", r.tabID, "changes", len(changes))
		return
	}

	batch := record.NewMutationBatch(timestamp, changes)
	r.collabErr(target, "append mutation batch", target.appendBatch(batch))
}

// Stop marks the tab inactive. Attribution state is retained for
// inspection but no further records are accepted. In-flight settle windows
// run to completion (they are not cancellable); Stop waits for their
// continuations, whose capture writes become no-ops.
func (r *OperationRouter) Stop() {
	r.mu.Lock()
	if r.state == StateStopped {
		r.mu.Unlock()
		return
	}
	r.state = StateStopped
	r.mu.Unlock()

	r.settling.Wait()
}

// Current returns the operation that network records and status queries
// resolve to right now.
func (r *OperationRouter) Current() *Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// MutationTarget returns the operation that in-flight mutation batches
// resolve to right now. During a settle window this is the newly triggered
// operation, already reassigned before the suspension began.
func (r *OperationRouter) MutationTarget() *Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutationTarget
}

// State returns the current routing state.
func (r *OperationRouter) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// TabID returns the tab this router serves.
func (r *OperationRouter) TabID() string { return r.tabID }

// newOperationLocked allocates the next identifier and creates the durable
// representation. Creation failure degrades the operation to a dropped-write
// shell rather than skipping the identifier, preserving gaplessness.
func (r *OperationRouter) newOperationLocked(kind record.Kind, trigger record.Trigger) *Operation {
	seq := r.seq.Next()
	op := &Operation{
		Seq:         seq,
		TabID:       r.tabID,
		Kind:        kind,
		Trigger:     trigger,
		TriggeredAt: time.Now(),
	}
	h, err := r.sink.CreateOperation(seq, r.tabType, kind)
	if err != nil {
		r.logger.Error("session: create operation sink failed, recording degraded",
			"tab", r.tabID, "seq", seq, "kind", string(kind), "error", err)
	} else {
		op.handle = h
	}
	return op
}

func (r *OperationRouter) writeTrigger(op *Operation) {
	if op.handle == nil {
		return
	}
	r.collabErr(op, "write trigger", op.handle.WriteTrigger(op.Trigger))
}

func (r *OperationRouter) captureSnapshot(op *Operation) {
	if r.capture == nil || op.handle == nil {
		return
	}
	html, err := r.capture.Snapshot(context.Background())
	if err != nil {
		r.collabErr(op, "capture snapshot", err)
		return
	}
	r.collabErr(op, "write snapshot", op.handle.WriteSnapshot(html))
}

func (r *OperationRouter) captureScreenshot(op *Operation, phase string) {
	if r.capture == nil || op.handle == nil {
		return
	}
	png, err := r.capture.Screenshot(context.Background())
	if err != nil {
		r.collabErr(op, "capture screenshot", err)
		return
	}
	_, err = op.handle.WriteScreenshot(phase, png)
	r.collabErr(op, "write screenshot", err)
}

// collabErr is the single logging policy applied at the boundary between
// the core and its collaborators: failures are logged and swallowed, the
// session keeps recording.
func (r *OperationRouter) collabErr(op *Operation, action string, err error) {
	if err == nil {
		return
	}
	r.logger.Warn("session: collaborator call failed",
		"tab", r.tabID, "seq", op.Seq, "action", action, "error", err)
}
