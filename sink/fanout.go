package sink

import (
	"log/slog"

	"github.com/hazyhaar/optrace/record"
)

// Fanout delivers to all configured sinks. One sink error does not block
// the others: errors are logged and the first encountered is returned.
type Fanout struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewFanout creates a fan-out sink delivering to all sinks.
func NewFanout(logger *slog.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{sinks: sinks, logger: logger}
}

func (f *Fanout) CreateOperation(seq uint64, tabType string, kind record.Kind) (OperationSink, error) {
	handles := make([]OperationSink, 0, len(f.sinks))
	var firstErr error
	for _, s := range f.sinks {
		h, err := s.CreateOperation(seq, tabType, kind)
		if err != nil {
			f.logger.Warn("sink: create operation failed", "seq", seq, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		handles = append(handles, h)
	}
	if len(handles) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return &fanoutOperation{handles: handles, logger: f.logger, seq: seq}, nil
}

func (f *Fanout) Close() error {
	var firstErr error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type fanoutOperation struct {
	handles []OperationSink
	logger  *slog.Logger
	seq     uint64
}

func (o *fanoutOperation) each(action string, fn func(OperationSink) error) error {
	var firstErr error
	for _, h := range o.handles {
		if err := fn(h); err != nil {
			o.logger.Warn("sink: "+action+" failed", "seq", o.seq, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (o *fanoutOperation) WriteTrigger(t record.Trigger) error {
	return o.each("write trigger", func(h OperationSink) error { return h.WriteTrigger(t) })
}

func (o *fanoutOperation) AppendMutationBatch(b record.MutationBatch) error {
	return o.each("append mutations", func(h OperationSink) error { return h.AppendMutationBatch(b) })
}

func (o *fanoutOperation) AppendNetworkRecord(r record.NetworkRecord) error {
	return o.each("append network", func(h OperationSink) error { return h.AppendNetworkRecord(r) })
}

func (o *fanoutOperation) WriteSnapshot(html []byte) error {
	return o.each("write snapshot", func(h OperationSink) error { return h.WriteSnapshot(html) })
}

func (o *fanoutOperation) WriteScreenshot(phase string, png []byte) (string, error) {
	var locator string
	err := o.each("write screenshot", func(h OperationSink) error {
		loc, err := h.WriteScreenshot(phase, png)
		if err == nil && locator == "" {
			locator = loc
		}
		return err
	})
	return locator, err
}
