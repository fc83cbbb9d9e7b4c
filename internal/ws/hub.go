package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/psoleague/matchmaking-backend/internal/faults"
	"github.com/psoleague/matchmaking-backend/internal/notify"
	"github.com/psoleague/matchmaking-backend/pkg/types"
)

type hubMsg interface{ isHubMsg() }

type join struct {
	clientID string
	channels map[string]bool
	outbox   chan types.ServerMessage
}

type leave struct{ clientID string }

type broadcast struct {
	n     notify.Notification
	reply chan int
}

type shutdown struct{}

func (join) isHubMsg()      {}
func (leave) isHubMsg()     {}
func (broadcast) isHubMsg() {}
func (shutdown) isHubMsg()  {}

type client struct {
	channels map[string]bool
	outbox   chan types.ServerMessage
}

// Hub fans notification obligations out to websocket subscribers. Each
// subscriber names the channel ids it renders; a notification reaches
// every subscriber watching any of its target channels.
type Hub struct {
	inbox   chan hubMsg
	clients map[string]client
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan hubMsg, 64),
		clients: make(map[string]client),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

// Notify implements notify.Notifier.
func (h *Hub) Notify(ctx context.Context, n notify.Notification) error {
	reply := make(chan int, 1)
	select {
	case h.inbox <- broadcast{n: n, reply: reply}:
	case <-ctx.Done():
		return faults.ExternalIO("notification hub unavailable", ctx.Err())
	case <-h.ctx.Done():
		return faults.ExternalIO("notification hub shut down", h.ctx.Err())
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return faults.ExternalIO("notification hub unavailable", ctx.Err())
	case <-h.ctx.Done():
		return faults.ExternalIO("notification hub shut down", h.ctx.Err())
	}
}

// depart removes a subscriber. After shutdown nothing drains the inbox
// anymore, so the send must not be allowed to block forever.
func (h *Hub) depart(clientID string) {
	select {
	case h.inbox <- leave{clientID: clientID}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Shutdown() {
	select {
	case h.inbox <- shutdown{}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case join:
				h.clients[msg.clientID] = client{channels: msg.channels, outbox: msg.outbox}

			case leave:
				delete(h.clients, msg.clientID)

			case broadcast:
				sent := 0
				frame := types.ServerMessage{
					Type:     "Notification",
					Event:    string(msg.n.Event),
					Channels: msg.n.Channels,
					Message:  msg.n.Message,
					Data:     msg.n.Data,
				}
				for id, c := range h.clients {
					if !watches(c, msg.n.Channels) {
						continue
					}
					select {
					case c.outbox <- frame:
						sent++
					default:
						// Slow subscriber, drop it.
						close(c.outbox)
						delete(h.clients, id)
					}
				}
				msg.reply <- sent

			case shutdown:
				for id, c := range h.clients {
					close(c.outbox)
					delete(h.clients, id)
				}
				h.cancel()
				return
			}
		}
	}
}

func watches(c client, channels []string) bool {
	if len(c.channels) == 0 {
		return true
	}
	for _, ch := range channels {
		if c.channels[ch] {
			return true
		}
	}
	return false
}

// writePump drains a subscriber's outbox onto its connection, bounding
// each write. Concurrent writes run under one errgroup so a dead peer
// surfaces quickly.
func writePump(ctx context.Context, conn *websocket.Conn, outbox <-chan types.ServerMessage) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case frame, ok := <-outbox:
				if !ok {
					return nil
				}
				payload, err := json.Marshal(frame)
				if err != nil {
					return err
				}
				wctx, cancel := context.WithTimeout(gctx, 3*time.Second)
				err = conn.Write(wctx, websocket.MessageText, payload)
				cancel()
				if err != nil {
					return err
				}
			}
		}
	})
	return g.Wait()
}
