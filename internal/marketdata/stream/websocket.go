package stream

import (
	"context"
	"encoding/json"

	"trading-systemv1/internal/model"

	"github.com/gorilla/websocket"
)

// WebSocketSource is a Source backed by a plain-JSON WebSocket feed where
// each message unmarshals directly into a model.Tick — the wssim wire
// format this module's teacher used for offline/custom feeds, kept as the
// one concrete Source the broker-SDK adapter (out of scope per spec §1)
// would otherwise implement against.
type WebSocketSource struct {
	// URL of the tick WebSocket server, e.g. "wss://feed.example.com/ws".
	URL string
}

// Connect dials URL and relays parsed ticks to tickCh until the
// connection drops or ctx is cancelled. Malformed or zero-value messages
// are skipped, not raised — one bad frame must not kill the stream.
func (s WebSocketSource) Connect(ctx context.Context, tickCh chan<- model.Tick) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		var t model.Tick
		if jsonErr := json.Unmarshal(raw, &t); jsonErr != nil {
			continue
		}
		if t.Validate() != nil {
			continue
		}

		select {
		case tickCh <- t:
		case <-ctx.Done():
			return nil
		}
	}
}
