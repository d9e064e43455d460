package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"intraday-scanner/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Tiers the client wants scan pushes for; empty means all.
	subMu sync.RWMutex
	tiers map[model.RiskTier]bool
}

// SubscribeMsg changes the tiers a client receives:
// {"type":"SUBSCRIBE","risk":["LOW","MEDIUM"]}. An empty list means all.
type SubscribeMsg struct {
	Type string   `json:"type"`
	Risk []string `json:"risk"`
}

func newClient(h *Hub, conn *websocket.Conn, tier model.RiskTier, all bool) *Client {
	c := &Client{
		conn:  conn,
		send:  make(chan []byte, 64),
		hub:   h,
		tiers: make(map[model.RiskTier]bool),
	}
	if !all {
		c.tiers[tier] = true
	}
	return c
}

func (c *Client) wants(tier model.RiskTier) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.tiers) == 0 || c.tiers[tier]
}

func (c *Client) setTiers(raw []string) {
	tiers := make(map[model.RiskTier]bool, len(raw))
	for _, r := range raw {
		tiers[model.ParseRiskTier(r)] = true
	}
	c.subMu.Lock()
	c.tiers = tiers
	c.subMu.Unlock()
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var base struct {
			Type string `json:"type"`
			Ping int64  `json:"ping"`
		}
		if json.Unmarshal(msg, &base) != nil {
			continue
		}

		switch {
		case base.Type == "SUBSCRIBE":
			var sub SubscribeMsg
			if json.Unmarshal(msg, &sub) == nil {
				c.setTiers(sub.Risk)
				c.hub.sendInitialState(c)
			}
		case base.Ping > 0:
			pong, _ := json.Marshal(map[string]interface{}{
				"type":      "pong",
				"ping":      base.Ping,
				"server_ts": time.Now().UnixMilli(),
			})
			select {
			case c.send <- pong:
			default:
			}
		}
	}
}
