package realtime

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/eventnest/eventnest/pkg/logger"
	"github.com/eventnest/eventnest/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10

	defaultBufferSize = 64
)

// Application close codes shared by every socket consumer.
const (
	CloseGeneric      = 4000
	CloseAuthFailed   = 4001
	CloseTokenExpired = 4002
	CloseForbidden    = 4003
)

// Hub fans JSON messages out to named groups of connections.
type Hub struct {
	mu         sync.RWMutex
	groups     map[string]map[*Conn]struct{}
	upgrader   websocket.Upgrader
	bufferSize int
	log        *zap.Logger
}

// HubOption customises a Hub.
type HubOption func(*Hub)

// WithBufferSize sets the per-connection send queue length.
func WithBufferSize(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.bufferSize = size
		}
	}
}

// WithOriginCheck replaces the default same-host origin policy.
func WithOriginCheck(check func(r *http.Request) bool) HubOption {
	return func(h *Hub) {
		if check != nil {
			h.upgrader.CheckOrigin = check
		}
	}
}

// NewHub constructs an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		groups:     make(map[string]map[*Conn]struct{}),
		bufferSize: defaultBufferSize,
		log:        logger.WithModule("realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     SameOrigin,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Upgrade switches the request to a WebSocket and starts the connection writer.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request, channel string) (*Conn, error) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	conn := &Conn{
		hub:     h,
		socket:  socket,
		channel: channel,
		send:    make(chan []byte, h.bufferSize),
		done:    make(chan struct{}),
	}
	metrics.RealtimeConnections.WithLabelValues(channel).Inc()
	go conn.writeLoop()
	return conn, nil
}

// Join adds conn to group.
func (h *Hub) Join(group string, conn *Conn) {
	if group == "" || conn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.groups[group]
	if members == nil {
		members = make(map[*Conn]struct{})
		h.groups[group] = members
	}
	members[conn] = struct{}{}
}

// Leave removes conn from group and drops the group once empty.
func (h *Hub) Leave(group string, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[group]
	if !ok {
		return
	}
	delete(members, conn)
	if len(members) == 0 {
		delete(h.groups, group)
	}
}

// Broadcast encodes message once and enqueues it for every member of group.
// Members whose queue is full are dropped.
func (h *Hub) Broadcast(group string, message any) {
	payload, err := json.Marshal(message)
	if err != nil {
		h.log.Error("encode broadcast", zap.String("group", group), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.groups[group] {
		if conn.closed() {
			continue
		}
		if !conn.enqueue(payload) {
			metrics.RealtimeDropped.Inc()
			h.log.Warn("dropping slow realtime connection", zap.String("group", group))
			conn.Close(CloseGeneric, "send queue full")
		}
	}
}

// Size reports how many connections are in group.
func (h *Hub) Size(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// Conn is one upgraded socket with a buffered send queue drained by a single writer.
type Conn struct {
	hub     *Hub
	socket  *websocket.Conn
	channel string
	send    chan []byte
	done    chan struct{}
	once    sync.Once

	closeCode   int
	closeReason string
}

// Send encodes message and queues it. It reports false when the connection is closed or saturated.
func (c *Conn) Send(message any) bool {
	payload, err := json.Marshal(message)
	if err != nil {
		c.hub.log.Error("encode message", zap.Error(err))
		return false
	}
	return c.enqueue(payload)
}

func (c *Conn) enqueue(payload []byte) bool {
	if c.closed() {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// ReadLoop delivers inbound text frames to handle until the peer goes away or Close is called.
func (c *Conn) ReadLoop(handle func(payload []byte)) {
	defer c.Close(websocket.CloseNormalClosure, "")

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.hub.log.Debug("realtime read ended", zap.Error(err))
			}
			return
		}
		if len(payload) == 0 {
			continue
		}
		handle(payload)

		select {
		case <-c.done:
			return
		default:
		}
	}
}

// Close asks the writer to flush queued messages, send a close frame with code and reason, and
// release the socket. Only the first call has an effect.
func (c *Conn) Close(code int, reason string) {
	c.once.Do(func() {
		c.closeCode, c.closeReason = code, reason
		close(c.done)
		metrics.RealtimeConnections.WithLabelValues(c.channel).Dec()
	})
}

func (c *Conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Done is closed once the connection is closing.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.socket.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(c.closeCode, c.closeReason), time.Now().Add(writeWait))
		_ = c.socket.Close()
	}()

	for {
		select {
		case <-c.done:
			c.drain()
			return
		case payload := <-c.send:
			if err := c.write(payload); err != nil {
				c.Close(CloseGeneric, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.socket.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.Close(CloseGeneric, "ping failed")
				return
			}
		}
	}
}

func (c *Conn) drain() {
	for {
		select {
		case payload := <-c.send:
			if err := c.write(payload); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) write(payload []byte) error {
	_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
	return c.socket.WriteMessage(websocket.TextMessage, payload)
}

// SameOrigin allows requests without an Origin header, from the request host, or from loopback.
func SameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originHost := hostWithoutPort(origin)
	return originHost == hostWithoutPort(r.Host) || isLoopback(originHost)
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	host = strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://")
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
