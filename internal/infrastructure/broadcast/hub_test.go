package broadcast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/udenfc/super11/internal/domain/competition"
	"github.com/udenfc/super11/internal/usecase"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial hub: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("client count never reached %d, at %d", want, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_PublishReachesSubscriber(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialHub(t, hub)
	waitForClients(t, hub, 1)

	comp := competition.Competition{
		Data: &competition.Data{
			ID:     "c1",
			Drafts: []competition.Draft{{ID: "d1", DraftName: "De Toppers", Rank: 1, Points: 58, TotalPoints: 1204}},
		},
	}
	hub.Publish(ctx, usecase.TopicCompetitionUpdate, comp)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}

	var frame struct {
		Topic     string                     `json:"topic"`
		Drafts    []competition.StandingsRow `json:"drafts"`
		Timestamp int64                      `json:"timestamp"`
	}
	if err := sonic.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if frame.Topic != usecase.TopicCompetitionUpdate {
		t.Fatalf("unexpected topic: %s", frame.Topic)
	}
	if len(frame.Drafts) != 1 || frame.Drafts[0].DraftName != "De Toppers" {
		t.Fatalf("unexpected drafts: %+v", frame.Drafts)
	}
	if frame.Timestamp == 0 {
		t.Fatalf("frame carries no timestamp")
	}
}

func TestHub_DisconnectDropsClient(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialHub(t, hub)
	waitForClients(t, hub, 1)

	_ = conn.Close()
	waitForClients(t, hub, 0)
}

func TestHub_PublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			hub.Publish(ctx, usecase.TopicCompetitionUpdate, competition.Competition{})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked without subscribers")
	}
}
