package web

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/gridpulse/internal/master"
	"github.com/user/gridpulse/internal/model"
	"github.com/user/gridpulse/internal/store"
)

func startLiveFeed(t *testing.T) (*Hub, string) {
	t.Helper()

	cfg := apiConfig()
	st := store.New(cfg.HistoryCapacity, cfg.PowerFactor, cfg.Outstations)
	e := master.New(cfg, st, nil)

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	srv := httptest.NewServer(NewServer(cfg, e, st, hub).Router())
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dialFeed(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestLiveFeedDeliversMeasurements(t *testing.T) {
	hub, url := startLiveFeed(t)
	conn := dialFeed(t, url)

	// Registration races the publish; retry until the frame lands.
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish(model.Measurement{
				OutstationID: 1,
				Sample:       model.Sample{Timestamp: time.Now(), Voltage: 401.5},
			})
			time.Sleep(10 * time.Millisecond)
		}
	}()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "measurement" {
		t.Fatalf("frame type = %q, want measurement", msg.Type)
	}
	if msg.Data == nil || msg.Data.OutstationID != 1 || msg.Data.Voltage != 401.5 {
		t.Fatalf("unexpected frame payload: %+v", msg.Data)
	}
}

func TestLiveFeedFanout(t *testing.T) {
	hub, url := startLiveFeed(t)

	a := dialFeed(t, url)
	b := dialFeed(t, url)

	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish(model.Measurement{OutstationID: 2})
			time.Sleep(10 * time.Millisecond)
		}
	}()

	for name, conn := range map[string]*websocket.Conn{"a": a, "b": b} {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("client %s read: %v", name, err)
		}
		if msg.Data == nil || msg.Data.OutstationID != 2 {
			t.Fatalf("client %s got unexpected frame: %+v", name, msg)
		}
	}
}
