package events

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	hr "github.com/julienschmidt/httprouter"
	log "github.com/sirupsen/logrus"
)

type clientConn struct {
	c *websocket.Conn
	// serializes writes; gorilla conns support one concurrent writer only
	mu sync.Mutex
}

// Hub implements Broadcaster over WebSocket. It keeps a registry of currently
// connected clients and fans each published event out to all of them.
type Hub struct {
	mu       sync.RWMutex
	conns    map[*clientConn]struct{}
	upgrader websocket.Upgrader
}

func NewHub(allowedOrigin string) *Hub {
	return &Hub{
		conns: map[*clientConn]struct{}{},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" || allowedOrigin == "*" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

func (h *Hub) register(cc *clientConn) {
	h.mu.Lock()
	h.conns[cc] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(cc *clientConn) {
	h.mu.Lock()
	delete(h.conns, cc)
	h.mu.Unlock()
	cc.c.Close()
}

// Count returns the number of currently attached listeners.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// HandleSubscribe upgrades the request to a WebSocket subscription. The
// channel is publish-only; incoming frames are drained solely to detect the
// peer going away.
func (h *Hub) HandleSubscribe() hr.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ hr.Params) {
		c, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.WithError(err).WithField("remoteAddr", r.RemoteAddr).Error("error upgrading subscriber connection")
			return
		}
		cc := &clientConn{c: c}
		h.register(cc)
		log.WithField("remoteAddr", r.RemoteAddr).Debug("subscriber attached")
		go func() {
			defer h.unregister(cc)
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					log.WithField("remoteAddr", r.RemoteAddr).Debug("subscriber detached")
					return
				}
			}
		}()
	}
}

// Publish marshals the event once and sends it to every attached listener.
// Listeners whose send fails are dropped; they resync on reconnect.
func (h *Hub) Publish(kind Kind, payload interface{}) {
	b, err := json.Marshal(Envelope{Event: kind, Data: payload})
	if err != nil {
		log.WithError(err).WithField("event", kind).Error("error marshalling broadcast event")
		return
	}
	h.mu.RLock()
	targets := make([]*clientConn, 0, len(h.conns))
	for cc := range h.conns {
		targets = append(targets, cc)
	}
	h.mu.RUnlock()
	for _, cc := range targets {
		cc.mu.Lock()
		werr := cc.c.WriteMessage(websocket.TextMessage, b)
		cc.mu.Unlock()
		if werr != nil {
			log.WithError(werr).WithField("event", kind).Debug("dropping broken subscriber")
			h.unregister(cc)
		}
	}
	log.WithFields(log.Fields{"event": kind, "subscriberCount": len(targets)}).Debug("broadcast event published")
}
