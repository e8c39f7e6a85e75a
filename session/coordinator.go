package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/optrace/idgen"
	"github.com/hazyhaar/optrace/sink"
)

// Session identifies one recording run. Created once at process start and
// immutable thereafter.
type Session struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	Endpoint  string    `json:"endpoint,omitempty"`
}

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	Endpoint        string
	Sink            sink.Sink
	SettleWindow    time.Duration
	PendingCapacity int
	Logger          *slog.Logger
}

// TabHandle bundles the per-tab pair handed to the transport: the router
// receives navigations, user actions and mutation batches; the correlator
// receives network frames.
type TabHandle struct {
	Router     *OperationRouter
	Correlator *NetworkCorrelator
}

// Coordinator owns the session identity and the shared SequenceAllocator,
// and creates one router + correlator pair per tab.
type Coordinator struct {
	session Session
	seq     *SequenceAllocator
	sink    sink.Sink
	settle  time.Duration
	pending int
	logger  *slog.Logger

	mu   sync.Mutex
	tabs map[string]*TabHandle
}

// NewCoordinator creates a coordinator with a fresh session identity.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Coordinator{
		session: Session{
			ID:        idgen.Prefixed("sess_", idgen.Default)(),
			StartTime: time.Now(),
			Endpoint:  cfg.Endpoint,
		},
		seq:     &SequenceAllocator{},
		sink:    cfg.Sink,
		settle:  cfg.SettleWindow,
		pending: cfg.PendingCapacity,
		logger:  cfg.Logger,
		tabs:    make(map[string]*TabHandle),
	}
}

// Session returns the immutable session identity.
func (c *Coordinator) Session() Session { return c.session }

// Allocator returns the shared sequence allocator.
func (c *Coordinator) Allocator() *SequenceAllocator { return c.seq }

// TrackTab registers a tab and returns its handle. Re-registering an
// already-tracked tab is an idempotent no-op returning the existing handle.
func (c *Coordinator) TrackTab(tabID, tabType string, capture Capture) *TabHandle {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.tabs[tabID]; ok {
		c.logger.Debug("session: tab already tracked", "tab", tabID)
		return h
	}

	router := NewRouter(RouterConfig{
		TabID:        tabID,
		TabType:      tabType,
		Seq:          c.seq,
		Sink:         c.sink,
		Capture:      capture,
		SettleWindow: c.settle,
		Logger:       c.logger,
	})
	h := &TabHandle{
		Router:     router,
		Correlator: NewNetworkCorrelator(router, c.pending, c.logger),
	}
	c.tabs[tabID] = h

	c.logger.Info("session: tracking tab", "tab", tabID, "type", tabType)
	return h
}

// CloseTab stops a tab's router. The handle stays registered (stopped)
// for inspection; closing an unknown tab is a no-op.
func (c *Coordinator) CloseTab(tabID string) {
	c.mu.Lock()
	h, ok := c.tabs[tabID]
	c.mu.Unlock()
	if !ok {
		return
	}
	h.Router.Stop()
	c.logger.Info("session: tab closed", "tab", tabID)
}

// Stop stops every tab and closes the sink.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	handles := make([]*TabHandle, 0, len(c.tabs))
	for _, h := range c.tabs {
		handles = append(handles, h)
	}
	c.mu.Unlock()

	for _, h := range handles {
		h.Router.Stop()
	}
	if err := c.sink.Close(); err != nil {
		c.logger.Warn("session: sink close failed", "error", err)
	}
	c.logger.Info("session: stopped",
		"session", c.session.ID, "operations", c.seq.Last())
}

// TabStatus is one tab's routing state for the status surface.
type TabStatus struct {
	TabID      string `json:"tab_id"`
	State      string `json:"state"`
	CurrentSeq uint64 `json:"current_seq,omitempty"`
}

// Status is a point-in-time view of the session for the status surface.
type Status struct {
	Session    Session     `json:"session"`
	Operations uint64      `json:"operations"`
	Tabs       []TabStatus `json:"tabs"`
}

// Status reports the session, the number of operations issued so far, and
// every tab's routing state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{Session: c.session, Operations: c.seq.Last()}
	for id, h := range c.tabs {
		ts := TabStatus{TabID: id, State: h.Router.State().String()}
		if op := h.Router.Current(); op != nil {
			ts.CurrentSeq = op.Seq
		}
		st.Tabs = append(st.Tabs, ts)
	}
	return st
}
