// Package record defines the structured types produced by optrace.
// These are the public API contract: sinks and consumers import this
// package to receive and process recorded operations.
package record

// Kind is the kind of operation that a trigger starts.
type Kind string

const (
	KindNavigation Kind = "navigation"
	KindClick      Kind = "click"
	KindKeydown    Kind = "keydown"
	KindInput      Kind = "input"
	KindSubmit     Kind = "submit"
)

// ActionKind maps a raw in-page action name to a Kind. The second return
// is false for action names the recorder does not understand.
func ActionKind(action string) (Kind, bool) {
	switch Kind(action) {
	case KindClick, KindKeydown, KindInput, KindSubmit:
		return Kind(action), true
	}
	return "", false
}

// Navigation is a navigation notice delivered by the protocol transport.
type Navigation struct {
	URL       string `json:"url"`
	FrameID   string `json:"frame_id,omitempty"`
	MainFrame bool   `json:"main_frame"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

// UserAction is a gesture detected by the in-page recorder script.
type UserAction struct {
	Action    Kind   `json:"action"`
	Target    string `json:"target"` // structural path of the node acted on
	Value     string `json:"value,omitempty"`
	Key       string `json:"key,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Trigger is the tagged event payload that started an operation.
// Exactly one of Navigation/Action is set, matching Kind.
type Trigger struct {
	Kind       Kind        `json:"kind"`
	Navigation *Navigation `json:"navigation,omitempty"`
	Action     *UserAction `json:"action,omitempty"`
}

// ChangeType discriminates the DomChange variants.
type ChangeType string

const (
	ChangeChildList     ChangeType = "childList"
	ChangeAttributes    ChangeType = "attributes"
	ChangeCharacterData ChangeType = "characterData"
)

// Significance levels assigned by Classify.
const (
	LevelNoise       = 1 // head/resource churn, invisible to the user
	LevelMinor       = 2 // text-only or non-visible change
	LevelSignificant = 3 // likely user-visible change
)

// DomChange is a single DOM mutation. Type selects the variant; the
// variant-specific fields are empty for the other variants. Level is
// derived by Classify and never supplied by the in-page script.
type DomChange struct {
	Type       ChangeType `json:"type"`
	TargetPath string     `json:"target_path"`
	Level      int        `json:"level"`

	// childList
	Added   []string `json:"added,omitempty"`   // node names, e.g. DIV, #text, #comment
	Removed []string `json:"removed,omitempty"`

	// attributes
	Attr     string  `json:"attr,omitempty"`
	Value    *string `json:"value,omitempty"` // nil means the attribute was removed
	OldValue string  `json:"old_value,omitempty"`

	// characterData
	Text string `json:"text,omitempty"`
}

// MutationBatch is one settled group of DOM changes attributed to a single
// operation. Batches with zero changes are never stored.
type MutationBatch struct {
	Timestamp int64       `json:"timestamp"` // epoch milliseconds
	Changes   []DomChange `json:"changes"`
	MaxLevel  int         `json:"max_level"`
}

// NewMutationBatch classifies every change and computes MaxLevel.
func NewMutationBatch(timestamp int64, changes []DomChange) MutationBatch {
	maxLevel := LevelNoise
	for i := range changes {
		changes[i].Level = Classify(changes[i])
		if changes[i].Level > maxLevel {
			maxLevel = changes[i].Level
		}
	}
	return MutationBatch{Timestamp: timestamp, Changes: changes, MaxLevel: maxLevel}
}

// NetworkFrameType discriminates the raw protocol network frames.
type NetworkFrameType string

const (
	FrameRequestSent      NetworkFrameType = "request_sent"
	FrameResponseReceived NetworkFrameType = "response_received"
	FrameLoadFinished     NetworkFrameType = "load_finished"
)

// NetworkFrame is a raw network event as delivered by the transport.
type NetworkFrame struct {
	Type      NetworkFrameType `json:"type"`
	RequestID string           `json:"request_id"`
	URL       string           `json:"url,omitempty"`
	Method    string           `json:"method,omitempty"`
	Status    int              `json:"status,omitempty"`
	MimeType  string           `json:"mime_type,omitempty"`
	FrameID   string           `json:"frame_id,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

// NetworkRecordType discriminates the correlated records written to sinks.
type NetworkRecordType string

const (
	NetRequest  NetworkRecordType = "request"
	NetResponse NetworkRecordType = "response"
	NetFinished NetworkRecordType = "finished"
)

// NetworkRecord is one correlated network event belonging to an operation.
// Correlation is best-effort: a finished record whose pending entry was
// evicted keeps its RequestID but has empty URL/FrameID.
type NetworkRecord struct {
	Type      NetworkRecordType `json:"type"`
	RequestID string            `json:"request_id"`
	URL       string            `json:"url,omitempty"`
	Method    string            `json:"method,omitempty"`
	Status    int               `json:"status,omitempty"`
	MimeType  string            `json:"mime_type,omitempty"`
	FrameID   string            `json:"frame_id,omitempty"`
	Timestamp int64             `json:"timestamp"`
}
