package sink

import "github.com/hazyhaar/optrace/record"

// CallbackFuncs are the hooks invoked by a Callback sink. Nil hooks are
// no-ops, so embedders subscribe only to what they consume.
type CallbackFuncs struct {
	OnOperation     func(seq uint64, tabType string, kind record.Kind) error
	OnTrigger       func(seq uint64, t record.Trigger) error
	OnMutationBatch func(seq uint64, b record.MutationBatch) error
	OnNetworkRecord func(seq uint64, r record.NetworkRecord) error
	OnSnapshot      func(seq uint64, html []byte) error
	OnScreenshot    func(seq uint64, phase string, png []byte) error
}

// NewCallback creates an in-process sink for embedding the tracer in a
// larger pipeline without serialisation.
func NewCallback(funcs CallbackFuncs) Sink {
	return &callback{funcs: funcs}
}

type callback struct {
	funcs CallbackFuncs
}

func (c *callback) CreateOperation(seq uint64, tabType string, kind record.Kind) (OperationSink, error) {
	if c.funcs.OnOperation != nil {
		if err := c.funcs.OnOperation(seq, tabType, kind); err != nil {
			return nil, err
		}
	}
	return &callbackOperation{funcs: c.funcs, seq: seq}, nil
}

func (c *callback) Close() error { return nil }

type callbackOperation struct {
	funcs CallbackFuncs
	seq   uint64
}

func (o *callbackOperation) WriteTrigger(t record.Trigger) error {
	if o.funcs.OnTrigger == nil {
		return nil
	}
	return o.funcs.OnTrigger(o.seq, t)
}

func (o *callbackOperation) AppendMutationBatch(b record.MutationBatch) error {
	if o.funcs.OnMutationBatch == nil {
		return nil
	}
	return o.funcs.OnMutationBatch(o.seq, b)
}

func (o *callbackOperation) AppendNetworkRecord(r record.NetworkRecord) error {
	if o.funcs.OnNetworkRecord == nil {
		return nil
	}
	return o.funcs.OnNetworkRecord(o.seq, r)
}

func (o *callbackOperation) WriteSnapshot(html []byte) error {
	if o.funcs.OnSnapshot == nil {
		return nil
	}
	return o.funcs.OnSnapshot(o.seq, html)
}

func (o *callbackOperation) WriteScreenshot(phase string, png []byte) (string, error) {
	if o.funcs.OnScreenshot == nil {
		return phase, nil
	}
	return phase, o.funcs.OnScreenshot(o.seq, phase, png)
}
