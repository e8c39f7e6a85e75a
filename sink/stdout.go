package sink

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/optrace/record"
)

// Stdout writes the trace as JSON lines to an io.Writer (default
// os.Stdout). Every line carries the operation sequence number so the
// stream can be demultiplexed downstream.
type Stdout struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewStdout creates a Stdout sink. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{enc: json.NewEncoder(w)}
}

type envelope struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
	Data any    `json:"data,omitempty"`
}

func (s *Stdout) CreateOperation(seq uint64, tabType string, kind record.Kind) (OperationSink, error) {
	s.emit(envelope{Type: "operation", Seq: seq, Data: map[string]any{
		"token": Token(seq, kind), "tab_type": tabType, "kind": kind,
	}})
	return &stdoutOperation{parent: s, seq: seq}, nil
}

func (s *Stdout) Close() error { return nil }

func (s *Stdout) emit(e envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(e)
}

type stdoutOperation struct {
	parent *Stdout
	seq    uint64
}

func (o *stdoutOperation) WriteTrigger(t record.Trigger) error {
	return o.parent.emit(envelope{Type: "trigger", Seq: o.seq, Data: t})
}

func (o *stdoutOperation) AppendMutationBatch(b record.MutationBatch) error {
	return o.parent.emit(envelope{Type: "mutations", Seq: o.seq, Data: b})
}

func (o *stdoutOperation) AppendNetworkRecord(r record.NetworkRecord) error {
	return o.parent.emit(envelope{Type: "network", Seq: o.seq, Data: r})
}

func (o *stdoutOperation) WriteSnapshot(html []byte) error {
	// Snapshots are large; the stream carries size only.
	return o.parent.emit(envelope{Type: "snapshot", Seq: o.seq, Data: map[string]int{"bytes": len(html)}})
}

func (o *stdoutOperation) WriteScreenshot(phase string, png []byte) (string, error) {
	err := o.parent.emit(envelope{Type: "screenshot", Seq: o.seq, Data: map[string]any{
		"phase": phase, "bytes": len(png),
	}})
	return phase, err
}
