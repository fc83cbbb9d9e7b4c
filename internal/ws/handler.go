package ws

import (
	"crypto/rand"
	"math/big"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/psoleague/matchmaking-backend/pkg/types"
)

// Handler upgrades a subscriber connection. The "channels" query parameter
// is a comma-separated list of channel ids to watch; empty watches all.
func Handler(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channels := make(map[string]bool)
		if raw := r.URL.Query().Get("channels"); raw != "" {
			for _, ch := range strings.Split(raw, ",") {
				if ch = strings.TrimSpace(ch); ch != "" {
					channels[ch] = true
				}
			}
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := randID(6)
		outbox := make(chan types.ServerMessage, 8)

		select {
		case h.inbox <- join{clientID: clientID, channels: channels, outbox: outbox}:
		case <-h.ctx.Done():
			return
		}
		defer h.depart(clientID)

		writeDone := make(chan struct{})
		go func() {
			defer close(writeDone)
			if err := writePump(r.Context(), conn, outbox); err != nil {
				h.log.Debug("subscriber write pump ended", zap.Error(err))
			}
		}()

		// Reader loop only detects disconnects; subscribers never send.
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
				}
				<-writeDone
				return
			}
		}
	}
}

func randID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			b[i] = charset[0]
			continue
		}
		b[i] = charset[num.Int64()]
	}
	return string(b)
}
