package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/user/gridpulse/internal/model"
)

func fakeMaster(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "healthy"})
	})
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.SystemStatus{
			MasterID:  1,
			Timestamp: time.Now(),
			Outstations: map[int]model.OutstationStatus{
				1: {
					Outstation:       model.Outstation{ID: 1, Name: "Substation_1"},
					ConnectionStatus: model.StatusConnected,
				},
			},
		})
	})
	mux.HandleFunc("/api/outstation/1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.OutstationStatus{
			Outstation:       model.Outstation{ID: 1, Name: "Substation_1"},
			ConnectionStatus: model.StatusConnected,
		})
	})
	mux.HandleFunc("/api/measurements/1", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.RawQuery; got != "limit=2&offset=4" {
			t.Errorf("unexpected query %q", got)
		}
		json.NewEncoder(w).Encode(Measurements{
			OutstationID: 1,
			TotalRecords: 10,
			Limit:        2,
			Offset:       4,
			Measurements: []model.Measurement{{OutstationID: 1}, {OutstationID: 1}},
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"outstation not found"}`, http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientStatus(t *testing.T) {
	srv := fakeMaster(t)
	c := New(srv.URL)

	status, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.MasterID != 1 || len(status.Outstations) != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.Outstations[1].ConnectionStatus != model.StatusConnected {
		t.Fatalf("unexpected outstation state: %+v", status.Outstations[1])
	}
}

func TestClientOutstation(t *testing.T) {
	srv := fakeMaster(t)
	c := New(srv.URL + "/") // trailing slash must not produce //api paths

	o, err := c.Outstation(context.Background(), 1)
	if err != nil {
		t.Fatalf("outstation: %v", err)
	}
	if o.ID != 1 || o.Name != "Substation_1" {
		t.Fatalf("unexpected outstation: %+v", o)
	}
}

func TestClientHistory(t *testing.T) {
	srv := fakeMaster(t)
	c := New(srv.URL)

	h, err := c.History(context.Background(), 1, 2, 4)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if h.TotalRecords != 10 || len(h.Measurements) != 2 {
		t.Fatalf("unexpected history: %+v", h)
	}
}

func TestClientHealth(t *testing.T) {
	srv := fakeMaster(t)

	if err := New(srv.URL).Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestClientNotFound(t *testing.T) {
	srv := fakeMaster(t)
	c := New(srv.URL)

	_, err := c.Outstation(context.Background(), 42)
	if err == nil {
		t.Fatal("expected error for unknown outstation")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Fatalf("error %q does not carry the status", err)
	}
}

func TestClientUnreachable(t *testing.T) {
	srv := fakeMaster(t)
	srv.Close()

	_, err := New(srv.URL).Status(context.Background())
	if err == nil {
		t.Fatal("expected error for a closed master")
	}
	if !strings.Contains(err.Error(), "unreachable") {
		t.Fatalf("error %q does not say unreachable", err)
	}
}
