package board

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/gorilla/websocket"
)

func TestChannelUrl(t *testing.T) {
	channelUrl, err := ChannelUrl("http://localhost:8000")
	assert.Equal(t, err, nil)
	assert.Equal(t, channelUrl, "ws://localhost:8000/ws")

	channelUrl, err = ChannelUrl("https://board.example.com/api")
	assert.Equal(t, err, nil)
	assert.Equal(t, channelUrl, "wss://board.example.com/ws")

	_, err = ChannelUrl("ftp://board.example.com")
	assert.NotEqual(t, err, nil)
}

func TestChannelReconnect(t *testing.T) {
	var connectCount int64

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&connectCount, 1)
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// close immediately after opening
		ws.Close()
	}))
	defer server.Close()

	channelUrl, err := ChannelUrl(server.URL)
	assert.Equal(t, err, nil)

	settings := DefaultChannelSettings()
	settings.ReconnectTimeout = 50 * time.Millisecond

	channel := NewChannel(context.Background(), channelUrl, "", NewRouter(NewStore()), settings)
	channel.Start()

	// one new connecting transition per delay window, repeatedly
	time.Sleep(500 * time.Millisecond)
	count := atomic.LoadInt64(&connectCount)
	assert.Equal(t, 3 <= count, true)

	channel.Stop()
	time.Sleep(100 * time.Millisecond)
	stoppedCount := atomic.LoadInt64(&connectCount)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, atomic.LoadInt64(&connectCount), stoppedCount)
}

func TestChannelStartIdempotent(t *testing.T) {
	var connectCount int64

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&connectCount, 1)
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		// hold the connection until the client goes away
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	channelUrl, err := ChannelUrl(server.URL)
	assert.Equal(t, err, nil)

	channel := NewChannel(context.Background(), channelUrl, "", NewRouter(NewStore()), DefaultChannelSettings())
	defer channel.Stop()

	channel.Start()
	channel.Start()
	channel.Start()

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, atomic.LoadInt64(&connectCount), int64(1))
	assert.Equal(t, channel.IsOpen(), true)
	assert.Equal(t, channel.State(), ChannelStateOpen)
}

func TestChannelPolicySkip(t *testing.T) {
	var connectCount int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&connectCount, 1)
	}))
	defer server.Close()

	channelUrl, err := ChannelUrl(server.URL)
	assert.Equal(t, err, nil)

	// a secure page origin must not open an insecure ws channel
	channel := NewChannel(context.Background(), channelUrl, "https://board.example.com", NewRouter(NewStore()), DefaultChannelSettings())
	channel.Start()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, atomic.LoadInt64(&connectCount), int64(0))
	assert.Equal(t, channel.State(), ChannelStateIdle)
	assert.Equal(t, channel.IsOpen(), false)

	// the skip is permanent for the session
	channel.Start()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, atomic.LoadInt64(&connectCount), int64(0))
}

func TestChannelConnectivityCallback(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	channelUrl, err := ChannelUrl(server.URL)
	assert.Equal(t, err, nil)

	channel := NewChannel(context.Background(), channelUrl, "", NewRouter(NewStore()), DefaultChannelSettings())

	events := make(chan bool, 8)
	remove := channel.AddConnectivityCallback(func(connected bool) {
		events <- connected
	})
	defer remove()

	channel.Start()

	select {
	case connected := <-events:
		assert.Equal(t, connected, true)
	case <-time.After(2 * time.Second):
		t.Fatal("no connectivity event")
	}

	channel.Stop()

	select {
	case connected := <-events:
		assert.Equal(t, connected, false)
	case <-time.After(2 * time.Second):
		t.Fatal("no disconnect event")
	}
}

func TestChannelStopIdempotent(t *testing.T) {
	channel := NewChannelWithDefaults(context.Background(), "ws://localhost:1/ws", "", NewRouter(NewStore()))

	// stop before start, repeatedly, with no connection in existence
	channel.Stop()
	channel.Stop()

	// start after stop stays idle
	channel.Start()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, channel.State(), ChannelStateIdle)
}

func TestChannelDeliversPushes(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"new_question","data":{"question_id":1,"message":"pushed","status":"Pending","created_at":"2024-01-01T00:00:00Z","guest_name":"visitor","response_count":0}}`))
		ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"new_response","data":{"response_id":9,"question_id":1,"message":"pushed too","created_at":"2024-01-02T00:00:00Z","guest_name":"visitor"}}`))
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	channelUrl, err := ChannelUrl(server.URL)
	assert.Equal(t, err, nil)

	store := NewStore()

	applied := make(chan *Snapshot, 8)
	remove := store.AddSnapshotCallback(func(snapshot *Snapshot) {
		applied <- snapshot
	})
	defer remove()

	channel := NewChannelWithDefaults(context.Background(), channelUrl, "", NewRouter(store))
	defer channel.Stop()
	channel.Start()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snapshot := <-applied:
			if 0 < len(snapshot.Questions) && snapshot.Questions[0].ResponseCount == 1 {
				assert.Equal(t, snapshot.Questions[0].Message, "pushed")
				return
			}
		case <-deadline:
			t.Fatal("pushes were not applied")
		}
	}
}
