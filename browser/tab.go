package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/optrace/idgen"
	"github.com/hazyhaar/optrace/record"
	"github.com/hazyhaar/optrace/session"
)

//go:embed recorder.js
var recorderJS string

const bindingName = "__optrace_binding"

// Tab wires one Rod page to its session routing pair. It translates the
// two event sources — protocol frames and in-page binding messages — into
// record types, and implements session.Capture for the router.
type Tab struct {
	page   *rod.Page
	tabID  string
	handle *session.TabHandle
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	coord  *session.Coordinator
}

// Attach opens a tab, registers it with the coordinator, installs the
// in-page recorder and protocol listeners, and navigates to startURL.
func Attach(ctx context.Context, mgr *Manager, coord *session.Coordinator, startURL string, logger *slog.Logger) (*Tab, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	tctx, cancel := context.WithCancel(ctx)
	t := &Tab{
		page:   page,
		tabID:  idgen.NanoID(8)(),
		logger: logger,
		ctx:    tctx,
		cancel: cancel,
		coord:  coord,
	}
	t.handle = coord.TrackTab(t.tabID, "page", t)

	if err := t.install(); err != nil {
		cancel()
		page.Close()
		return nil, err
	}

	if startURL != "" {
		if err := page.Context(tctx).Navigate(startURL); err != nil {
			cancel()
			page.Close()
			return nil, fmt.Errorf("browser: navigate %s: %w", startURL, err)
		}
	}

	logger.Info("browser: tab attached", "tab", t.tabID, "url", startURL)
	return t, nil
}

// TabID returns the tab's identifier within the session.
func (t *Tab) TabID() string { return t.tabID }

// install enables the protocol domains, the JS binding and the event
// listeners. Must run before the first navigation so nothing is missed.
func (t *Tab) install() error {
	page := t.page

	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return fmt.Errorf("browser: enable network: %w", err)
	}
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		// May already exist from a previous attach attempt.
		t.logger.Warn("browser: add binding failed", "tab", t.tabID, "error", err)
	}
	if _, err := page.EvalOnNewDocument(recorderJS); err != nil {
		return fmt.Errorf("browser: install recorder: %w", err)
	}

	go t.eventLoop()
	return nil
}

// eventLoop receives protocol frames and binding calls for this tab and
// forwards them to the routing pair until the tab context ends.
func (t *Tab) eventLoop() {
	router := t.handle.Router
	correlator := t.handle.Correlator

	t.page.Context(t.ctx).EachEvent(
		func(e *proto.PageFrameNavigated) {
			router.OnNavigation(record.Navigation{
				URL:       e.Frame.URL,
				FrameID:   string(e.Frame.ID),
				MainFrame: e.Frame.ParentID == "",
				Timestamp: time.Now().UnixMilli(),
			})
		},
		func(e *proto.NetworkRequestWillBeSent) {
			correlator.OnNetworkFrame(record.NetworkFrame{
				Type:      record.FrameRequestSent,
				RequestID: string(e.RequestID),
				URL:       e.Request.URL,
				Method:    e.Request.Method,
				FrameID:   string(e.FrameID),
				Timestamp: time.Now().UnixMilli(),
			})
		},
		func(e *proto.NetworkResponseReceived) {
			correlator.OnNetworkFrame(record.NetworkFrame{
				Type:      record.FrameResponseReceived,
				RequestID: string(e.RequestID),
				URL:       e.Response.URL,
				Status:    e.Response.Status,
				MimeType:  e.Response.MIMEType,
				FrameID:   string(e.FrameID),
				Timestamp: time.Now().UnixMilli(),
			})
		},
		func(e *proto.NetworkLoadingFinished) {
			correlator.OnNetworkFrame(record.NetworkFrame{
				Type:      record.FrameLoadFinished,
				RequestID: string(e.RequestID),
				Timestamp: time.Now().UnixMilli(),
			})
		},
		func(e *proto.RuntimeBindingCalled) {
			if e.Name != bindingName {
				return
			}
			t.onBindingMessage(e.Payload)
		},
	)()
}

// rawMessage is the wire shape of in-page recorder messages.
type rawMessage struct {
	Kind    string      `json:"kind"` // user_action | mutation
	Action  string      `json:"action"`
	Target  string      `json:"target"`
	Value   string      `json:"value"`
	Key     string      `json:"key"`
	TS      int64       `json:"ts"`
	Changes []rawChange `json:"changes"`
}

type rawChange struct {
	Type       string   `json:"type"`
	TargetPath string   `json:"target_path"`
	Added      []string `json:"added"`
	Removed    []string `json:"removed"`
	Attr       string   `json:"attr"`
	Value      *string  `json:"value"`
	OldValue   string   `json:"old_value"`
	Text       string   `json:"text"`
}

// onBindingMessage parses one raw in-page message. A malformed message is
// discarded with a log line; processing continues.
func (t *Tab) onBindingMessage(payload string) {
	var msg rawMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		t.logger.Warn("browser: discarding malformed page message",
			"tab", t.tabID, "error", err)
		return
	}

	switch msg.Kind {
	case "user_action":
		t.handle.Router.OnUserAction(record.UserAction{
			Action:    record.Kind(msg.Action),
			Target:    msg.Target,
			Value:     msg.Value,
			Key:       msg.Key,
			Timestamp: msg.TS,
		})
	case "mutation":
		changes := make([]record.DomChange, 0, len(msg.Changes))
		for _, c := range msg.Changes {
			changes = append(changes, record.DomChange{
				Type:       record.ChangeType(c.Type),
				TargetPath: c.TargetPath,
				Added:      c.Added,
				Removed:    c.Removed,
				Attr:       c.Attr,
				Value:      c.Value,
				OldValue:   c.OldValue,
				Text:       c.Text,
			})
		}
		t.handle.Router.OnMutationBatch(msg.TS, changes)
	default:
		t.logger.Warn("browser: discarding unknown page message",
			"tab", t.tabID, "kind", msg.Kind)
	}
}

// Screenshot implements session.Capture.
func (t *Tab) Screenshot(ctx context.Context) ([]byte, error) {
	res, err := proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	}.Call(t.page.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("browser: capture screenshot: %w", err)
	}
	return res.Data, nil
}

// Snapshot implements session.Capture: the full serialised DOM.
func (t *Tab) Snapshot(ctx context.Context) ([]byte, error) {
	res, err := t.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browser: get DOM: %w", err)
	}
	return []byte(res.Value.Str()), nil
}

// Close stops routing for this tab and closes the page.
func (t *Tab) Close() error {
	t.coord.CloseTab(t.tabID)
	t.cancel()
	if t.page != nil {
		return t.page.Close()
	}
	return nil
}
