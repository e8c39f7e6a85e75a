package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/optrace/record"
	"github.com/hazyhaar/optrace/sink"
)

// memorySink records everything written to it, for assertions.
type memorySink struct {
	mu          sync.Mutex
	createErr   error
	created     []uint64
	triggers    map[uint64]record.Trigger
	batches     map[uint64][]record.MutationBatch
	network     map[uint64][]record.NetworkRecord
	snapshots   map[uint64]int
	screenshots map[uint64][]string
}

func newMemorySink() *memorySink {
	return &memorySink{
		triggers:    make(map[uint64]record.Trigger),
		batches:     make(map[uint64][]record.MutationBatch),
		network:     make(map[uint64][]record.NetworkRecord),
		snapshots:   make(map[uint64]int),
		screenshots: make(map[uint64][]string),
	}
}

func (m *memorySink) CreateOperation(seq uint64, tabType string, kind record.Kind) (sink.OperationSink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, seq)
	return &memoryOp{parent: m, seq: seq}, nil
}

func (m *memorySink) Close() error { return nil }

func (m *memorySink) screenshotsFor(seq uint64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.screenshots[seq]...)
}

type memoryOp struct {
	parent *memorySink
	seq    uint64
}

func (o *memoryOp) WriteTrigger(t record.Trigger) error {
	o.parent.mu.Lock()
	defer o.parent.mu.Unlock()
	o.parent.triggers[o.seq] = t
	return nil
}

func (o *memoryOp) AppendMutationBatch(b record.MutationBatch) error {
	o.parent.mu.Lock()
	defer o.parent.mu.Unlock()
	o.parent.batches[o.seq] = append(o.parent.batches[o.seq], b)
	return nil
}

func (o *memoryOp) AppendNetworkRecord(r record.NetworkRecord) error {
	o.parent.mu.Lock()
	defer o.parent.mu.Unlock()
	o.parent.network[o.seq] = append(o.parent.network[o.seq], r)
	return nil
}

func (o *memoryOp) WriteSnapshot(html []byte) error {
	o.parent.mu.Lock()
	defer o.parent.mu.Unlock()
	o.parent.snapshots[o.seq] = len(html)
	return nil
}

func (o *memoryOp) WriteScreenshot(phase string, png []byte) (string, error) {
	o.parent.mu.Lock()
	defer o.parent.mu.Unlock()
	o.parent.screenshots[o.seq] = append(o.parent.screenshots[o.seq], phase)
	return "screenshots/" + phase + ".png", nil
}

// fakeCapture returns fixed artifacts.
type fakeCapture struct{}

func (fakeCapture) Screenshot(context.Context) ([]byte, error) { return []byte("png"), nil }
func (fakeCapture) Snapshot(context.Context) ([]byte, error)   { return []byte("<html/>"), nil }

func newTestRouter(t *testing.T, s sink.Sink, settle time.Duration) *OperationRouter {
	t.Helper()
	return NewRouter(RouterConfig{
		TabID:        "tab-1",
		TabType:      "page",
		Seq:          &SequenceAllocator{},
		Sink:         s,
		Capture:      fakeCapture{},
		SettleWindow: settle,
	})
}

func waitUntil(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func mainNav(url string) record.Navigation {
	return record.Navigation{URL: url, FrameID: "frame-main", MainFrame: true, Timestamp: time.Now().UnixMilli()}
}

func clickAction() record.UserAction {
	return record.UserAction{Action: record.KindClick, Target: "/html/body/button[1]", Timestamp: time.Now().UnixMilli()}
}

func bodyChange() record.DomChange {
	return record.DomChange{Type: record.ChangeChildList, TargetPath: "/html/body/div", Added: []string{"DIV"}}
}
