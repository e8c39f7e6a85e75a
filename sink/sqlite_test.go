package sink

import (
	"path/filepath"
	"testing"

	"github.com/hazyhaar/optrace/record"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "trace.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_OperationRow(t *testing.T) {
	s := newTestSQLite(t)

	if _, err := s.CreateOperation(1, "page", record.KindNavigation); err != nil {
		t.Fatal(err)
	}

	var token, kind string
	err := s.DB().QueryRow(`SELECT token, kind FROM operations WHERE seq = 1`).Scan(&token, &kind)
	if err != nil {
		t.Fatal(err)
	}
	if token != "0001_navigation" || kind != "navigation" {
		t.Errorf("row: token=%q kind=%q", token, kind)
	}
}

func TestSQLite_RecordsBelongToTheirOperation(t *testing.T) {
	s := newTestSQLite(t)

	h1, err := s.CreateOperation(1, "page", record.KindNavigation)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := s.CreateOperation(2, "page", record.KindClick)
	if err != nil {
		t.Fatal(err)
	}

	b := record.NewMutationBatch(1000, []record.DomChange{
		{Type: record.ChangeChildList, TargetPath: "/html/body", Added: []string{"DIV"}},
	})
	if err := h1.AppendMutationBatch(b); err != nil {
		t.Fatal(err)
	}
	if err := h2.AppendMutationBatch(b); err != nil {
		t.Fatal(err)
	}
	if err := h2.AppendMutationBatch(b); err != nil {
		t.Fatal(err)
	}
	if err := h2.AppendNetworkRecord(record.NetworkRecord{Type: record.NetFinished, RequestID: "r1"}); err != nil {
		t.Fatal(err)
	}

	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM mutation_batches WHERE seq = 2`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("batches for op 2: got %d, want 2", n)
	}
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM network_records WHERE seq = 2`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("network records for op 2: got %d, want 1", n)
	}
}

func TestSQLite_SnapshotAndScreenshot(t *testing.T) {
	s := newTestSQLite(t)
	h, err := s.CreateOperation(3, "page", record.KindSubmit)
	if err != nil {
		t.Fatal(err)
	}

	if err := h.WriteSnapshot([]byte("<html></html>")); err != nil {
		t.Fatal(err)
	}
	var hash string
	if err := s.DB().QueryRow(`SELECT html_hash FROM snapshots WHERE seq = 3`).Scan(&hash); err != nil {
		t.Fatal(err)
	}
	if len(hash) != 64 {
		t.Errorf("html_hash: got %d chars, want 64 (sha-256 hex)", len(hash))
	}

	loc, err := h.WriteScreenshot("after", []byte("png"))
	if err != nil {
		t.Fatal(err)
	}
	if loc == "" {
		t.Error("empty screenshot locator")
	}
	var stored string
	if err := s.DB().QueryRow(`SELECT locator FROM screenshots WHERE seq = 3 AND phase = 'after'`).Scan(&stored); err != nil {
		t.Fatal(err)
	}
	if stored != loc {
		t.Errorf("locator mismatch: stored %q, returned %q", stored, loc)
	}
}
