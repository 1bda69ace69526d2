package signaling

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultSweepInterval is how often the liveness sweep runs.
	DefaultSweepInterval = 30 * time.Second

	// DefaultStaleTimeout is how long a client may stay silent before
	// the sweep evicts it. Twice the sweep interval.
	DefaultStaleTimeout = 60 * time.Second

	// maxFileMessageSize caps file-message payloads: ~5 MB of content
	// plus base64 framing overhead.
	maxFileMessageSize = 7 * 1024 * 1024
)

// HubConfig configures the hub's liveness sweep.
type HubConfig struct {
	SweepInterval time.Duration
	StaleTimeout  time.Duration
}

// Hub is the central brain of the signaling server. It owns the
// connection registry and the room directory, and its run loop is the
// single goroutine that performs every composite mutation: message
// dispatch, disconnect teardown and the liveness sweep all serialize
// through it, so no handler ever observes a half-applied state.
type Hub struct {
	cfg    HubConfig
	logger *slog.Logger

	registry *Registry
	rooms    *Rooms

	register   chan *Client
	unregister chan *Client
	inbound    chan *Envelope
	done       chan struct{}
}

// NewHub creates a new Hub instance.
func NewHub(cfg HubConfig, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.StaleTimeout <= 0 {
		cfg.StaleTimeout = DefaultStaleTimeout
	}

	return &Hub{
		cfg:        cfg,
		logger:     logger,
		registry:   NewRegistry(),
		rooms:      NewRooms(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan *Envelope),
		done:       make(chan struct{}),
	}
}

// Accept wraps a freshly upgraded connection in a Client, registers it
// and starts its read/write pumps.
func (h *Hub) Accept(conn *websocket.Conn) *Client {
	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	h.registry.Register(client)
	h.register <- client

	go client.WritePump()
	go client.ReadPump()

	return client
}

// Run starts the hub's main processing loop. The liveness sweep shares
// the loop with message dispatch so both mutate state from the same
// goroutine.
func (h *Hub) Run() {
	ticker := time.NewTicker(h.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.logger.Info("client connected", "client", client.ID)

		case client := <-h.unregister:
			h.cleanup(client)

		case env := <-h.inbound:
			h.dispatch(env)

		case <-ticker.C:
			h.sweep()

		case <-h.done:
			return
		}
	}
}

// Stop terminates the run loop.
func (h *Hub) Stop() {
	close(h.done)
}

// dispatch routes one decoded inbound message. Any message from a live
// client refreshes its liveness, whatever the type.
func (h *Hub) dispatch(env *Envelope) {
	client := env.client

	// The client may have been torn down while this message sat in the
	// inbound queue.
	if _, ok := h.registry.Get(client.ID); !ok {
		return
	}
	h.registry.Touch(client.ID)

	switch env.Type {
	case TypeJoin:
		h.handleJoin(client, env)

	case TypeLeave:
		h.leaveRoom(client)

	case TypeOffer, TypeAnswer, TypeICECandidate:
		if env.Target == "" {
			return
		}
		h.relay(env.Target, signalMsg{Type: env.Type, From: client.ID, Data: env.Data})

	case TypeChatMessage, TypeFileMessage:
		h.handleChat(client, env)

	case TypeHeartbeat:
		h.sendTo(client, ackMsg{Type: TypeHeartbeatAck})

	default:
		h.logger.Debug("ignoring unknown message type", "type", env.Type, "client", client.ID)
	}
}

// handleJoin moves the client into the requested room. A client already
// in a room leaves it first with full departure notifications.
func (h *Hub) handleJoin(client *Client, env *Envelope) {
	if env.Room == "" {
		h.logger.Debug("join without room id", "client", client.ID)
		return
	}

	h.leaveRoom(client)

	info := defaultUserInfo()
	if env.UserInfo != nil {
		info = *env.UserInfo
	}
	h.rooms.Join(env.Room, client.ID, info)

	h.sendTo(client, joinedMsg{
		Type:      TypeJoined,
		UserID:    client.ID,
		UserInfo:  info,
		Users:     h.rooms.Members(env.Room),
		UsersInfo: h.rooms.MemberInfo(env.Room),
	})

	h.broadcast(env.Room, userJoinedMsg{Type: TypeUserJoined, UserID: client.ID, UserInfo: info}, client.ID)
	h.broadcastUserList(env.Room)

	h.logger.Info("client joined room", "client", client.ID, "room", env.Room)
}

// handleChat broadcasts a chat or file message to the sender's room
// with the sender's identity attached. Oversized file payloads are the
// one case where the client gets an explicit error back.
func (h *Hub) handleChat(client *Client, env *Envelope) {
	roomID, ok := h.rooms.RoomOf(client.ID)
	if !ok {
		return
	}

	if env.Type == TypeFileMessage && len(env.Data) > maxFileMessageSize {
		h.sendTo(client, errorMsg{Type: TypeError, Message: "file too large, 5 MB maximum"})
		return
	}

	info, _ := h.rooms.InfoOf(client.ID)
	h.broadcast(roomID, chatMsg{
		Type:     env.Type,
		UserID:   client.ID,
		UserInfo: info,
		Content:  env.Content,
		Name:     env.Name,
		Data:     env.Data,
	}, client.ID)
}

// leaveRoom takes the client out of its current room and notifies the
// remaining members. No-op when the client is not in a room.
func (h *Hub) leaveRoom(client *Client) {
	roomID, ok := h.rooms.Leave(client.ID)
	if !ok {
		return
	}

	h.broadcast(roomID, userLeftMsg{Type: TypeUserLeft, UserID: client.ID}, client.ID)
	h.broadcastUserList(roomID)
}

// cleanup is the single teardown path for normal close, protocol error
// and liveness timeout. Safe to run more than once per client: only the
// call that actually removes the registry record closes the send
// channel, and a closed send channel is what stops the write pump.
func (h *Hub) cleanup(client *Client) {
	h.leaveRoom(client)

	if h.registry.Remove(client.ID) {
		close(client.send)
		h.logger.Info("client disconnected", "client", client.ID)
	}
}

// sweep evicts every client that has been silent for longer than the
// stale timeout, through the same path as a disconnect. The candidate
// ids are snapshotted first because teardown mutates the registry.
func (h *Hub) sweep() {
	for _, id := range h.registry.Stale(h.cfg.StaleTimeout) {
		client, ok := h.registry.Get(id)
		if !ok {
			continue
		}
		h.logger.Info("evicting stale client", "client", id)
		h.cleanup(client)
	}
}

// broadcast serializes the payload once and attempts best-effort
// delivery to every member of the room except exclude. A recipient
// whose buffer is full or whose record is already gone is logged and
// skipped; the rest of the fan-out always proceeds.
func (h *Hub) broadcast(roomID string, payload any, exclude string) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal broadcast payload", "room", roomID, "error", err)
		return
	}

	for _, id := range h.rooms.Members(roomID) {
		if id == exclude {
			continue
		}
		client, ok := h.registry.Get(id)
		if !ok {
			continue
		}
		if !client.enqueue(data) {
			h.logger.Warn("send buffer full, dropping broadcast", "client", id, "room", roomID)
		}
	}
}

// broadcastUserList sends the room's current member-info snapshot to
// the whole room.
func (h *Hub) broadcastUserList(roomID string) {
	h.broadcast(roomID, userListMsg{Type: TypeUserList, Users: h.rooms.MemberInfo(roomID)}, "")
}

// relay delivers a payload directly to one client. Unknown targets and
// full buffers drop silently; staleness is expected in signaling and
// the sender is never told.
func (h *Hub) relay(target string, payload any) {
	client, ok := h.registry.Get(target)
	if !ok {
		return
	}
	h.sendTo(client, payload)
}

// sendTo marshals and enqueues a payload for one client.
func (h *Hub) sendTo(client *Client, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal payload", "client", client.ID, "error", err)
		return
	}
	if !client.enqueue(data) {
		h.logger.Warn("send buffer full, dropping message", "client", client.ID)
	}
}
