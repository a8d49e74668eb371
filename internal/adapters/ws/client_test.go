package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"openbid-auction-engine/internal/adapters/broadcaster"
	"openbid-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConn dials a throwaway WebSocket server and returns the client
// side of the connection plus a channel carrying every frame the server
// reads off it.
func newTestConn(t *testing.T) (*websocket.Conn, chan []byte) {
	t.Helper()

	received := make(chan []byte, 100)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case received <- frame:
			default:
			}
		}
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn, received
}

func newTestClient(t *testing.T) (*WsClient, chan []byte) {
	t.Helper()
	conn, received := newTestConn(t)
	client := NewClient(WsClientParams{
		UserID: uuid.New(),
		Conn:   conn,
		Logger: zerolog.Nop(),
	})
	t.Cleanup(client.Stop)
	return client, received
}

func TestClientSendDeliversToSocket(t *testing.T) {
	client, received := newTestClient(t)
	client.Start()

	require.NoError(t, client.Send(NewServerMessage(MessageTypePong)))

	select {
	case frame := <-received:
		assert.Contains(t, string(frame), string(MessageTypePong))
	case <-time.After(time.Second):
		t.Fatal("message never reached the socket")
	}
}

func TestClientStopRacesConcurrentSends(t *testing.T) {
	client, _ := newTestClient(t)
	client.Start()

	// Event forwarders and bid replies keep calling Send while the
	// connection tears down. None of them may panic; after Stop wins
	// the race every Send reports an error instead.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client.Send(NewServerMessage(MessageTypePong))
		}()
	}
	client.Stop()
	wg.Wait()

	assert.Error(t, client.Send(NewServerMessage(MessageTypePong)))
}

func TestClientStopIsIdempotent(t *testing.T) {
	client, _ := newTestClient(t)
	client.Start()

	client.Stop()
	client.Stop()
}

func TestHandlerUnsubscribeRequiresSubscription(t *testing.T) {
	bcast := broadcaster.NewMemoryBroadcaster(broadcaster.MemoryBroadcasterParams{Logger: zerolog.Nop()})
	handler := NewHandler(WsHandlerParams{
		Broadcaster: bcast,
		Logger:      zerolog.Nop(),
	})

	client, _ := newTestClient(t)
	auctionID := uuid.New()
	msg := &ClientMessage{Type: MessageTypeUnsubscribe, AuctionID: &auctionID}

	err := handler.HandleClientMessage(client, msg)
	assert.ErrorIs(t, err, shared.ErrUserNotSubscribed)

	eventChan := handler.createEventChannel(client.id)
	require.NoError(t, bcast.Subscribe(client.ctx, auctionID, client.id, eventChan))
	require.NoError(t, handler.HandleClientMessage(client, msg))
	assert.False(t, bcast.IsSubscribed(client.ctx, auctionID, client.id))
}
