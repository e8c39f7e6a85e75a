package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hazyhaar/optrace/record"
)

// FS writes the trace as one directory per operation under a root
// directory:
//
//	<root>/0001_navigation/trigger.json
//	<root>/0001_navigation/mutations.jsonl
//	<root>/0001_navigation/network.jsonl
//	<root>/0001_navigation/snapshot.html
//	<root>/0001_navigation/screenshots/after.png
type FS struct {
	root string
}

// NewFS creates the root directory if needed and returns an FS sink.
func NewFS(root string) (*FS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("sink: create root %s: %w", root, err)
	}
	return &FS{root: root}, nil
}

// Root returns the trace root directory.
func (f *FS) Root() string { return f.root }

func (f *FS) CreateOperation(seq uint64, tabType string, kind record.Kind) (OperationSink, error) {
	dir := filepath.Join(f.root, Token(seq, kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sink: create operation dir: %w", err)
	}

	meta := map[string]any{
		"seq":        seq,
		"tab_type":   tabType,
		"kind":       kind,
		"created_at": time.Now().UnixMilli(),
	}
	data, _ := json.MarshalIndent(meta, "", "  ")
	if err := os.WriteFile(filepath.Join(dir, "operation.json"), data, 0o644); err != nil {
		return nil, fmt.Errorf("sink: write operation meta: %w", err)
	}

	return &fsOperation{dir: dir}, nil
}

func (f *FS) Close() error { return nil }

type fsOperation struct {
	mu  sync.Mutex
	dir string
}

func (o *fsOperation) WriteTrigger(t record.Trigger) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("sink: marshal trigger: %w", err)
	}
	return o.writeFile("trigger.json", data)
}

func (o *fsOperation) AppendMutationBatch(b record.MutationBatch) error {
	return o.appendLine("mutations.jsonl", b)
}

func (o *fsOperation) AppendNetworkRecord(r record.NetworkRecord) error {
	return o.appendLine("network.jsonl", r)
}

func (o *fsOperation) WriteSnapshot(html []byte) error {
	return o.writeFile("snapshot.html", html)
}

func (o *fsOperation) WriteScreenshot(phase string, png []byte) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := os.MkdirAll(filepath.Join(o.dir, "screenshots"), 0o755); err != nil {
		return "", fmt.Errorf("sink: create screenshots dir: %w", err)
	}
	rel := filepath.Join("screenshots", phase+".png")
	if err := os.WriteFile(filepath.Join(o.dir, rel), png, 0o644); err != nil {
		return "", fmt.Errorf("sink: write screenshot: %w", err)
	}
	return rel, nil
}

func (o *fsOperation) writeFile(name string, data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := os.WriteFile(filepath.Join(o.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("sink: write %s: %w", name, err)
	}
	return nil
}

func (o *fsOperation) appendLine(name string, v any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	fh, err := os.OpenFile(filepath.Join(o.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("sink: open %s: %w", name, err)
	}
	defer fh.Close()
	if err := json.NewEncoder(fh).Encode(v); err != nil {
		return fmt.Errorf("sink: append %s: %w", name, err)
	}
	return nil
}
