package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gawulo-platform/shared/pkg/metrics"
)

// Hub fans order events out to connected sockets. Clients join exactly one
// group on connect: vendors get vendor_<vendorID>_orders, customers get
// customer_<userID>_orders. Admin sockets join the wildcard admin group and
// receive everything.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Client]struct{}
	log    zerolog.Logger
}

const GroupAdmin = "admin_orders"

func VendorGroup(vendorID string) string { return "vendor_" + vendorID + "_orders" }
func CustomerGroup(userID string) string { return "customer_" + userID + "_orders" }

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		groups: make(map[string]map[*Client]struct{}),
		log:    log,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.groups[c.group]
	if !ok {
		set = make(map[*Client]struct{})
		h.groups[c.group] = set
	}
	set[c] = struct{}{}
	metrics.WSConnections.WithLabelValues(c.role).Inc()
	h.log.Debug().Str("group", c.group).Int("size", len(set)).Msg("ws client joined")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.groups[c.group]
	if !ok {
		return
	}
	if _, present := set[c]; !present {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.groups, c.group)
	}
	metrics.WSConnections.WithLabelValues(c.role).Dec()
}

// Broadcast sends a message to every socket in the given groups plus the
// admin group. Frames are `{"type":...,"order":...,"timestamp":...}`, the
// shape clients already parse. Slow clients whose buffers are full are
// dropped rather than allowed to stall the hub.
func (h *Hub) Broadcast(msgType string, order any, groups ...string) {
	msg, err := json.Marshal(map[string]any{
		"type":      msgType,
		"order":     order,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		h.log.Error().Err(err).Str("type", msgType).Msg("ws marshal failed")
		return
	}

	var stalled []*Client
	h.mu.RLock()
	for _, g := range append(groups, GroupAdmin) {
		for c := range h.groups[g] {
			select {
			case c.send <- msg:
				metrics.WSMessagesSent.WithLabelValues(msgType).Inc()
			default:
				stalled = append(stalled, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range stalled {
		h.log.Warn().Str("group", c.group).Msg("dropping stalled ws client")
		h.unregister(c)
		c.conn.Close()
	}
}

// GroupSize reports the current membership of a group, for tests and the
// health endpoint.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}
