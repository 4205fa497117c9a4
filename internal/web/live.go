package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/zodic/zodic/pkg/backend"
)

const liveWriteTimeout = 5 * time.Second

// marketFrame is one push on /ws/market.
type marketFrame struct {
	Type   string                 `json:"type"`
	At     time.Time              `json:"at"`
	Stocks backend.MarketSnapshot `json:"stocks"`
}

// liveHub pushes the market snapshot to every connected dashboard.
type liveHub struct {
	load     func(ctx context.Context) (backend.MarketSnapshot, error)
	interval time.Duration
	upgrader websocket.Upgrader
	log      *logrus.Entry

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newLiveHub(load func(context.Context) (backend.MarketSnapshot, error), interval time.Duration, log *logrus.Entry) *liveHub {
	return &liveHub{
		load:     load,
		interval: interval,
		// nil CheckOrigin: gorilla rejects cross-origin upgrades
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
		log:      log,
		clients:  make(map[*websocket.Conn]struct{}),
	}
}

func (h *liveHub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	// first frame goes out before the conn joins the broadcast set,
	// so there is only ever one writer per conn
	ctx, cancel := context.WithTimeout(r.Context(), liveWriteTimeout)
	frame, err := h.frame(ctx)
	cancel()
	if err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
		if err := conn.WriteJSON(frame); err != nil {
			_ = conn.Close()
			return
		}
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	go h.readLoop(conn)
}

// readLoop discards client messages and unregisters the conn once it closes.
func (h *liveHub) readLoop(conn *websocket.Conn) {
	defer h.drop(conn)
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (h *liveHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *liveHub) frame(ctx context.Context) (marketFrame, error) {
	snap, err := h.load(ctx)
	if err != nil {
		return marketFrame{}, err
	}
	return marketFrame{Type: "market", At: time.Now().UTC(), Stocks: snap}, nil
}

func (h *liveHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// run broadcasts on every tick while anyone is connected.
func (h *liveHub) run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if h.count() == 0 {
				continue
			}
			fctx, cancel := context.WithTimeout(ctx, liveWriteTimeout)
			frame, err := h.frame(fctx)
			cancel()
			if err != nil {
				h.log.WithError(err).Warn("market refresh failed")
				continue
			}
			h.broadcast(frame)
		}
	}
}

func (h *liveHub) broadcast(frame marketFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
		if err := conn.WriteJSON(frame); err != nil {
			delete(h.clients, conn)
			_ = conn.Close()
		}
	}
}

func (h *liveHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		delete(h.clients, conn)
	}
}
