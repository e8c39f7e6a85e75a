package session

import (
	"log/slog"
	"sync"

	"github.com/hazyhaar/optrace/record"
)

// DefaultPendingCapacity bounds the in-flight request map per tab.
const DefaultPendingCapacity = 256

type pendingRequest struct {
	requestID string
	url       string
	method    string
	frameID   string
}

// NetworkCorrelator tracks one tab's in-flight requests in a bounded map
// and attributes every network record to the tab's current operation at
// the instant the frame is observed. The map is insertion-order FIFO:
// when full, the oldest-inserted entry is evicted, untouched by access.
// Eviction silently discards correlation context; a later finished frame
// for an evicted request still produces a record with empty URL and frame.
type NetworkCorrelator struct {
	router   *OperationRouter
	capacity int
	logger   *slog.Logger

	// Owned by one tab; guarded only because transport callbacks arrive
	// on their own goroutines.
	mu      sync.Mutex
	pending map[string]pendingRequest
	order   []string
}

// NewNetworkCorrelator creates a correlator bound to a tab's router.
func NewNetworkCorrelator(router *OperationRouter, capacity int, logger *slog.Logger) *NetworkCorrelator {
	if capacity <= 0 {
		capacity = DefaultPendingCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NetworkCorrelator{
		router:   router,
		capacity: capacity,
		logger:   logger,
		pending:  make(map[string]pendingRequest, capacity),
	}
}

// OnNetworkFrame dispatches a raw frame to its handler. Unknown frame
// types are discarded with a log line, never an error.
func (c *NetworkCorrelator) OnNetworkFrame(f record.NetworkFrame) {
	switch f.Type {
	case record.FrameRequestSent:
		c.onRequestSent(f)
	case record.FrameResponseReceived:
		c.onResponseReceived(f)
	case record.FrameLoadFinished:
		c.onLoadFinished(f)
	default:
		c.logger.Warn("session: discarding unknown network frame",
			"tab", c.router.TabID(), "type", string(f.Type))
	}
}

func (c *NetworkCorrelator) onRequestSent(f record.NetworkFrame) {
	if c.router.State() == StateStopped {
		return
	}

	c.insert(pendingRequest{
		requestID: f.RequestID,
		url:       f.URL,
		method:    f.Method,
		frameID:   f.FrameID,
	})

	c.deliver(record.NetworkRecord{
		Type:      record.NetRequest,
		RequestID: f.RequestID,
		URL:       f.URL,
		Method:    f.Method,
		FrameID:   f.FrameID,
		Timestamp: f.Timestamp,
	})
}

// onResponseReceived neither consults nor mutates the pending map:
// responses are observational and carry their own context.
func (c *NetworkCorrelator) onResponseReceived(f record.NetworkFrame) {
	c.deliver(record.NetworkRecord{
		Type:      record.NetResponse,
		RequestID: f.RequestID,
		URL:       f.URL,
		Status:    f.Status,
		MimeType:  f.MimeType,
		FrameID:   f.FrameID,
		Timestamp: f.Timestamp,
	})
}

// onLoadFinished consumes the pending entry, if present, to recover the
// origin URL and frame for the completion record. Absence is legal: the
// entry may have been evicted, or the request began before tracking did.
func (c *NetworkCorrelator) onLoadFinished(f record.NetworkFrame) {
	p, _ := c.take(f.RequestID)

	c.deliver(record.NetworkRecord{
		Type:      record.NetFinished,
		RequestID: f.RequestID,
		URL:       p.url,
		Method:    p.method,
		FrameID:   p.frameID,
		Timestamp: f.Timestamp,
	})
}

// PendingCount returns the number of in-flight entries.
func (c *NetworkCorrelator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *NetworkCorrelator) insert(p pendingRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.pending[p.requestID]; exists {
		// Re-sent request keeps its original FIFO position.
		c.pending[p.requestID] = p
		return
	}
	if len(c.pending) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.pending, oldest)
		c.logger.Debug("session: evicted pending request",
			"tab", c.router.TabID(), "request_id", oldest)
	}
	c.pending[p.requestID] = p
	c.order = append(c.order, p.requestID)
}

func (c *NetworkCorrelator) take(requestID string) (pendingRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[requestID]
	if !ok {
		return pendingRequest{}, false
	}
	delete(c.pending, requestID)
	for i, id := range c.order {
		if id == requestID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return p, true
}

// deliver attributes a record to the tab's current operation. Records
// arriving before any operation exists, or after stop, are dropped.
func (c *NetworkCorrelator) deliver(rec record.NetworkRecord) {
	c.router.mu.Lock()
	stopped := c.router.state == StateStopped
	op := c.router.current
	c.router.mu.Unlock()

	if stopped || op == nil {
		return
	}
	c.router.collabErr(op, "append network record", op.appendNetwork(rec))
}
