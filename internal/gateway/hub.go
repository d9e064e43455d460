package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"intraday-scanner/internal/markethours"
	"intraday-scanner/internal/metrics"
	"intraday-scanner/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// ScanEnvelope is pushed to WebSocket clients for every background scan.
type ScanEnvelope struct {
	Type      string      `json:"type"` // "scan"
	Risk      string      `json:"risk"`
	Results   []SignalOut `json:"results"`
	Message   string      `json:"message,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Initial   bool        `json:"initial,omitempty"`
}

func newScanEnvelope(res model.ScanResult) ScanEnvelope {
	r := NewScanResponse(res, false)
	return ScanEnvelope{
		Type:      "scan",
		Risk:      string(res.Risk),
		Results:   r.Results,
		Message:   r.Message,
		Timestamp: r.Timestamp,
	}
}

// Hub manages WebSocket clients and fans scan results out to them.
// The most recent result per tier is replayed to clients as they connect.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[model.RiskTier]model.ScanResult

	prom *metrics.Metrics
	now  func() time.Time
}

// NewHub creates a hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		latest:  make(map[model.RiskTier]model.ScanResult),
		prom:    m,
		now:     time.Now,
	}
}

// Publish records res as the latest result for its tier and broadcasts it.
func (h *Hub) Publish(ctx context.Context, res model.ScanResult) error {
	data, err := json.Marshal(newScanEnvelope(res))
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.latest[res.Risk] = res
	h.mu.Unlock()

	h.broadcast(res.Risk, data)
	return nil
}

// broadcast queues data on every client subscribed to tier. Slow clients
// whose buffers are full miss the message rather than stall the hub.
func (h *Hub) broadcast(tier model.RiskTier, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if tier != "" && !c.wants(tier) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slog.Debug("ws client buffer full, dropping message")
		}
	}
}

// ServeWS upgrades the request and registers the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}
	conn.EnableWriteCompression(true)

	c := newClient(h, conn, model.ParseRiskTier(r.URL.Query().Get("risk")), r.URL.Query().Get("risk") == "")

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()
	if h.prom != nil {
		h.prom.WSClients.Set(float64(count))
	}
	slog.Info("ws client connected", "clients", count)

	h.sendInitialState(c)
	go c.writePump()
	go c.readPump()
}

func (h *Hub) sendInitialState(c *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for tier, res := range h.latest {
		if !c.wants(tier) {
			continue
		}
		env := newScanEnvelope(res)
		env.Initial = true
		data, _ := json.Marshal(env)
		select {
		case c.send <- data:
		default:
		}
	}
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()
	close(c.send)
	if h.prom != nil {
		h.prom.WSClients.Set(float64(count))
	}
	slog.Info("ws client disconnected", "clients", count)
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartMarketBroadcast sends the NSE session status to all clients every
// interval and keeps the market_open gauge current. Blocks until ctx is cancelled.
func (h *Hub) StartMarketBroadcast(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.broadcastMarket()
		}
	}
}

func (h *Hub) broadcastMarket() {
	now := h.now()
	open := markethours.IsMarketOpen(now)
	if h.prom != nil {
		v := 0.0
		if open {
			v = 1
		}
		h.prom.MarketState.Set(v)
	}
	envelope, _ := json.Marshal(map[string]interface{}{
		"type":         "market",
		"marketOpen":   open,
		"marketStatus": markethours.StatusString(now),
		"ts":           now.UnixMilli(),
	})
	h.broadcast("", envelope)
}
