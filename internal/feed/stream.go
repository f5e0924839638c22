package feed

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gauravpandeydigilantern/eims-demo-sub000/internal/event"
	"go.uber.org/zap"
)

// Stream subscribes to the backend push channel and converts incoming
// messages into invalidation topics on the event bus. Message handling
// is fire-and-forget: it only schedules invalidations and never blocks
// on consumers.
type Stream struct {
	url        string
	bus        *event.Bus
	maxBackoff time.Duration
	logger     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStream creates a push-channel subscriber.
func NewStream(url string, bus *event.Bus, maxBackoff time.Duration, logger *zap.Logger) *Stream {
	if maxBackoff <= 0 {
		maxBackoff = 2 * time.Minute
	}
	return &Stream{
		url:        url,
		bus:        bus,
		maxBackoff: maxBackoff,
		logger:     logger,
	}
}

// Start begins the connect/read loop in the background.
func (s *Stream) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop disconnects and waits for the loop to exit.
func (s *Stream) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Stream) run(ctx context.Context) {
	backoff := time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		err := s.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}

		s.logger.Warn("push channel disconnected, reconnecting",
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > s.maxBackoff {
			backoff = s.maxBackoff
		}
	}
}

// connectAndRead dials the push channel and reads messages until the
// connection drops or ctx is done.
func (s *Stream) connectAndRead(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, s.url, nil)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	s.logger.Info("push channel connected", zap.String("url", s.url))

	for {
		var msg pushMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return err
		}
		s.handleMessage(ctx, msg)
	}
}

// handleMessage maps one push message to its invalidation topic.
// Unrecognized types are ignored (forward-compatible).
func (s *Stream) handleMessage(ctx context.Context, msg pushMessage) {
	var topic string
	switch msg.Type {
	case msgTypeDeviceMetrics:
		topic = TopicDeviceMetrics
	case msgTypeAlertsSummary:
		topic = TopicAlertsSummary
	default:
		s.logger.Debug("ignoring unrecognized push message", zap.String("type", msg.Type))
		return
	}

	s.bus.Publish(ctx, event.Event{
		Topic:     topic,
		Source:    "feed",
		Timestamp: time.Now(),
		Payload:   msg.Data,
	})
}
