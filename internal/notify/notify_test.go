package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ytget/stream-downloader/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	names []string
}

func (r *recorder) Emit(name string, _ any) {
	r.names = append(r.names, name)
}

func TestMultiKeepsOrder(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi{a, Nop{}, b}

	m.Emit(model.EventWaiting, nil)
	m.Emit(model.EventStart, nil)

	require.Equal(t, []string{model.EventWaiting, model.EventStart}, a.names)
	require.Equal(t, a.names, b.names)
}

func TestHubDeliversToSubscribers(t *testing.T) {
	h := NewHub(discardLogger(), 4)

	first, unsubFirst := h.Subscribe()
	second, unsubSecond := h.Subscribe()
	defer unsubSecond()
	require.Equal(t, 2, h.Subscribers())

	h.Emit(model.EventStart, model.StatusEvent{ID: 1, Status: model.StatusDownloading})

	for _, ch := range []<-chan Message{first, second} {
		msg := <-ch
		require.Equal(t, model.EventStart, msg.Event)
		require.Equal(t, int64(1), msg.Payload.(model.StatusEvent).ID)
	}

	unsubFirst()
	unsubFirst()
	require.Equal(t, 1, h.Subscribers())

	_, open := <-first
	require.False(t, open)
}

func TestHubDropsForLaggingSubscriber(t *testing.T) {
	h := NewHub(discardLogger(), 1)
	ch, unsub := h.Subscribe()
	defer unsub()

	h.Emit(model.EventProgress, 1)
	h.Emit(model.EventProgress, 2)

	require.Equal(t, 1, (<-ch).Payload)
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message %v", msg)
	default:
	}
}

type fakePublisher struct {
	mu       sync.Mutex
	channels []string
	bodies   [][]byte
	err      error
	got      chan struct{}
}

func (p *fakePublisher) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	p.mu.Lock()
	p.channels = append(p.channels, channel)
	p.bodies = append(p.bodies, message.([]byte))
	err := p.err
	p.mu.Unlock()

	p.got <- struct{}{}
	return redis.NewIntResult(1, err)
}

func TestRedisPublishesInOrder(t *testing.T) {
	pub := &fakePublisher{got: make(chan struct{}, 8)}
	r := NewRedis(discardLogger(), pub, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	r.Emit(model.EventWaiting, model.StatusEvent{ID: 7, Status: model.StatusWaiting})
	r.Emit(model.EventStart, model.StatusEvent{ID: 7, Status: model.StatusDownloading})

	for range 2 {
		select {
		case <-pub.got:
		case <-time.After(5 * time.Second):
			t.Fatal("event was not published")
		}
	}
	cancel()
	require.NoError(t, <-done)

	pub.mu.Lock()
	defer pub.mu.Unlock()

	require.Equal(t, []string{DefaultRedisChannel, DefaultRedisChannel}, pub.channels)

	var msg struct {
		Event   string            `json:"event"`
		Payload model.StatusEvent `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(pub.bodies[1], &msg))
	require.Equal(t, model.EventStart, msg.Event)
	require.Equal(t, model.StatusDownloading, msg.Payload.Status)
}

func TestRedisPublishErrorIsReported(t *testing.T) {
	pub := &fakePublisher{got: make(chan struct{}, 1), err: errors.New("connection refused")}
	r := NewRedis(discardLogger(), pub, "events")

	err := r.publish(context.Background(), Message{Event: model.EventStop})
	require.ErrorContains(t, err, "connection refused")
}

type fakeSender struct {
	sent []*fyne.Notification
}

func (s *fakeSender) SendNotification(n *fyne.Notification) {
	s.sent = append(s.sent, n)
}

func TestDesktop(t *testing.T) {
	sender := &fakeSender{}
	enabled := true
	d := NewDesktop(sender, func() bool { return enabled })

	d.Emit(model.EventStart, model.StatusEvent{ID: 1, Name: "clip"})
	d.Emit(model.EventSuccess, model.StatusEvent{ID: 1, Name: "clip"})
	d.Emit(model.EventFailed, model.StatusEvent{ID: 2, Name: "other", Error: "exit code 1"})

	enabled = false
	d.Emit(model.EventSuccess, model.StatusEvent{ID: 3, Name: "muted"})

	require.Len(t, sender.sent, 2)
	require.Equal(t, titleSuccess, sender.sent[0].Title)
	require.Equal(t, "clip", sender.sent[0].Content)
	require.Equal(t, titleFailed, sender.sent[1].Title)
	require.Equal(t, "other: exit code 1", sender.sent[1].Content)
}
