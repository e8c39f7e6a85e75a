package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hazyhaar/optrace/record"
	"github.com/hazyhaar/optrace/session"
	"github.com/hazyhaar/optrace/sink"
)

func TestSessionEndpoint(t *testing.T) {
	coord := session.NewCoordinator(session.CoordinatorConfig{
		Sink:         sink.NewCallback(sink.CallbackFuncs{}),
		SettleWindow: 10 * time.Millisecond,
	})
	h := coord.TrackTab("tab-1", "page", nil)
	h.Router.OnNavigation(record.Navigation{URL: "https://example.com", MainFrame: true})

	srv := httptest.NewServer(New(coord, nil))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/session")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status: %d", resp.StatusCode)
	}

	var st session.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Operations != 1 {
		t.Errorf("operations: got %d, want 1", st.Operations)
	}
	if len(st.Tabs) != 1 || st.Tabs[0].State != "active" {
		t.Errorf("tabs: %+v", st.Tabs)
	}
}

func TestHealthz(t *testing.T) {
	coord := session.NewCoordinator(session.CoordinatorConfig{
		Sink: sink.NewCallback(sink.CallbackFuncs{}),
	})
	srv := httptest.NewServer(New(coord, nil))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status: %d", resp.StatusCode)
	}
}
