package sink

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/optrace/record"
)

func TestToken(t *testing.T) {
	if got := Token(7, record.KindClick); got != "0007_click" {
		t.Errorf("Token: got %q, want 0007_click", got)
	}
	if got := Token(12345, record.KindNavigation); got != "12345_navigation" {
		t.Errorf("Token: got %q, want 12345_navigation", got)
	}
}

func TestFS_OperationLayout(t *testing.T) {
	root := t.TempDir()
	fs, err := NewFS(filepath.Join(root, "trace"))
	if err != nil {
		t.Fatal(err)
	}

	h, err := fs.CreateOperation(1, "page", record.KindNavigation)
	if err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(root, "trace", "0001_navigation")
	if _, err := os.Stat(filepath.Join(dir, "operation.json")); err != nil {
		t.Fatalf("operation.json missing: %v", err)
	}

	nav := record.Navigation{URL: "https://example.com", MainFrame: true}
	if err := h.WriteTrigger(record.Trigger{Kind: record.KindNavigation, Navigation: &nav}); err != nil {
		t.Fatal(err)
	}
	var tr record.Trigger
	data, err := os.ReadFile(filepath.Join(dir, "trigger.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &tr); err != nil {
		t.Fatal(err)
	}
	if tr.Kind != record.KindNavigation || tr.Navigation.URL != "https://example.com" {
		t.Errorf("trigger roundtrip: %+v", tr)
	}

	if err := h.WriteSnapshot([]byte("<html></html>")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "snapshot.html")); err != nil {
		t.Errorf("snapshot.html missing: %v", err)
	}

	loc, err := h.WriteScreenshot("after", []byte("png-bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if loc != filepath.Join("screenshots", "after.png") {
		t.Errorf("locator: got %q", loc)
	}
	if _, err := os.Stat(filepath.Join(dir, loc)); err != nil {
		t.Errorf("screenshot missing at locator: %v", err)
	}
}

func TestFS_AppendsAreOrderedLines(t *testing.T) {
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	h, err := fs.CreateOperation(2, "page", record.KindClick)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		b := record.NewMutationBatch(int64(1000+i), []record.DomChange{
			{Type: record.ChangeChildList, TargetPath: "/html/body", Added: []string{"DIV"}},
		})
		if err := h.AppendMutationBatch(b); err != nil {
			t.Fatal(err)
		}
	}
	if err := h.AppendNetworkRecord(record.NetworkRecord{Type: record.NetRequest, RequestID: "r1"}); err != nil {
		t.Fatal(err)
	}

	fh, err := os.Open(filepath.Join(fs.Root(), "0002_click", "mutations.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()

	var timestamps []int64
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		var b record.MutationBatch
		if err := json.Unmarshal(sc.Bytes(), &b); err != nil {
			t.Fatalf("bad JSONL line: %v", err)
		}
		timestamps = append(timestamps, b.Timestamp)
	}
	if len(timestamps) != 3 {
		t.Fatalf("lines: got %d, want 3", len(timestamps))
	}
	for i, ts := range timestamps {
		if ts != int64(1000+i) {
			t.Errorf("line %d: timestamp %d, arrival order not preserved", i, ts)
		}
	}
}
