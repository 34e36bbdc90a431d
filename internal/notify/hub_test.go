package notify_test

import (
	"complaintflow/backend/internal/models"
	"complaintflow/backend/internal/notify"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	id     uuid.UUID
	send   chan notify.Notification
	mu     sync.Mutex
	closed int
}

func newFakeSubscriber(buffer int) *fakeSubscriber {
	return &fakeSubscriber{id: uuid.New(), send: make(chan notify.Notification, buffer)}
}

func (s *fakeSubscriber) ID() uuid.UUID                           { return s.id }
func (s *fakeSubscriber) SendChannel() chan<- notify.Notification { return s.send }
func (s *fakeSubscriber) Run()                                    {}
func (s *fakeSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
}
func (s *fakeSubscriber) closedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func startHub(t *testing.T) (*notify.Hub, context.CancelFunc) {
	t.Helper()
	hub := notify.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func TestHub_RegisterAndBroadcast(t *testing.T) {
	hub, _ := startHub(t)
	a, b := newFakeSubscriber(4), newFakeSubscriber(4)

	require.NoError(t, hub.Register(a))
	require.NoError(t, hub.Register(b))
	assert.Equal(t, 2, hub.Count())

	n := notify.Blocked(7, "no target", time.Now())
	require.NoError(t, hub.Notify(context.Background(), n))

	for _, s := range []*fakeSubscriber{a, b} {
		select {
		case got := <-s.send:
			assert.Equal(t, n.ID, got.ID)
			assert.Equal(t, notify.KindBlocked, got.Kind)
		case <-time.After(time.Second):
			t.Fatal("notification was not delivered")
		}
	}
}

func TestHub_Unregister(t *testing.T) {
	hub, _ := startHub(t)
	s := newFakeSubscriber(1)

	require.NoError(t, hub.Register(s))
	hub.Unregister(s)
	hub.Unregister(s)

	assert.Equal(t, 0, hub.Count())
	assert.Equal(t, 1, s.closedCount(), "Close must run once")
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	hub, _ := startHub(t)
	slow := newFakeSubscriber(0)

	require.NoError(t, hub.Register(slow))
	require.NoError(t, hub.Notify(context.Background(), notify.Blocked(1, "x", time.Now())))

	assert.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, slow.closedCount())
}

func TestHub_StopClosesSubscribers(t *testing.T) {
	hub, cancel := startHub(t)
	s := newFakeSubscriber(1)
	require.NoError(t, hub.Register(s))

	cancel()

	assert.Eventually(t, func() bool { return s.closedCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, hub.Notify(context.Background(), notify.Blocked(1, "x", time.Now())), notify.ErrHubStopped)
	assert.ErrorIs(t, hub.Register(newFakeSubscriber(1)), notify.ErrHubStopped)
}

func TestWebSocketSubscriber_ReceivesNotifications(t *testing.T) {
	hub, _ := startHub(t)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = hub.Register(notify.NewWebSocketSubscriber(conn, hub, 3, nil))
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	sent := notify.Redirected(11, 4, models.StatusRedirected, "forwarded", time.Now().UTC())
	require.NoError(t, hub.Notify(context.Background(), sent))

	var got notify.Notification
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, notify.KindRedirected, got.Kind)
	require.NotNil(t, got.ExecutorID)
	assert.Equal(t, int64(4), *got.ExecutorID)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

type recordingNotifier struct {
	mu   sync.Mutex
	got  []notify.Notification
	fail error
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.fail
}

func TestFanout_DeliversToAllAndJoinsErrors(t *testing.T) {
	ok := &recordingNotifier{}
	broken := &recordingNotifier{fail: errors.New("telegram down")}
	f := notify.Fanout{broken, nil, ok}

	err := f.Notify(context.Background(), notify.Blocked(5, "r", time.Now()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram down")
	assert.Len(t, ok.got, 1)
	assert.Len(t, broken.got, 1)

	assert.NoError(t, notify.Nop{}.Notify(context.Background(), notify.Notification{}))
}
