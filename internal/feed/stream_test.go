package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gauravpandeydigilantern/eims-demo-sub000/internal/event"
	"go.uber.org/zap"
)

func collectTopics(t *testing.T, bus *event.Bus) (<-chan string, func()) {
	t.Helper()
	topics := make(chan string, 16)
	unsub := bus.SubscribeAll(func(_ context.Context, ev event.Event) {
		topics <- ev.Topic
	})
	return topics, unsub
}

func TestHandleMessageDispatch(t *testing.T) {
	tests := []struct {
		name      string
		msgType   string
		wantTopic string
	}{
		{"device metrics", msgTypeDeviceMetrics, TopicDeviceMetrics},
		{"alerts summary", msgTypeAlertsSummary, TopicAlertsSummary},
		{"unknown type ignored", "reader-firmware", ""},
		{"empty type ignored", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := event.NewBus(zap.NewNop())
			topics, unsub := collectTopics(t, bus)
			defer unsub()

			s := NewStream("ws://unused", bus, time.Minute, zap.NewNop())
			s.handleMessage(context.Background(), pushMessage{Type: tt.msgType})

			select {
			case got := <-topics:
				if tt.wantTopic == "" {
					t.Fatalf("unexpected publish for type %q: topic %q", tt.msgType, got)
				}
				if got != tt.wantTopic {
					t.Errorf("topic = %q, want %q", got, tt.wantTopic)
				}
			default:
				if tt.wantTopic != "" {
					t.Errorf("no event published for type %q", tt.msgType)
				}
			}
		})
	}
}

func TestStreamReceivesPush(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx := r.Context()
		_ = wsjson.Write(ctx, conn, pushMessage{Type: msgTypeDeviceMetrics})
		_ = wsjson.Write(ctx, conn, pushMessage{Type: "unknown-kind"})
		_ = wsjson.Write(ctx, conn, pushMessage{Type: msgTypeAlertsSummary})

		// Hold the connection open until the client goes away.
		_, _, _ = conn.Read(ctx)
	}))
	defer srv.Close()

	bus := event.NewBus(zap.NewNop())
	topics, unsub := collectTopics(t, bus)
	defer unsub()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	s := NewStream(url, bus, time.Minute, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	defer func() {
		cancel()
		s.Stop()
	}()

	want := []string{TopicDeviceMetrics, TopicAlertsSummary}
	for _, topic := range want {
		select {
		case got := <-topics:
			if got != topic {
				t.Errorf("topic = %q, want %q", got, topic)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for topic %q", topic)
		}
	}
}

func TestStreamStopWhileDisconnected(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	// Nothing listens on this port; the stream sits in its backoff loop.
	s := NewStream("ws://127.0.0.1:1", bus, time.Minute, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	time.Sleep(50 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after cancel")
	}
}
