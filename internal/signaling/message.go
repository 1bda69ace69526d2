package signaling

import "encoding/json"

// Inbound message types (C2S).
const (
	TypeJoin         = "join"
	TypeLeave        = "leave"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
	TypeChatMessage  = "message"
	TypeFileMessage  = "file-message"
	TypeHeartbeat    = "heartbeat"
)

// Outbound message types (S2C).
const (
	TypeJoined       = "joined"
	TypeUserJoined   = "user-joined"
	TypeUserLeft     = "user-left"
	TypeUserList     = "user-list"
	TypeHeartbeatAck = "heartbeat-ack"
	TypeError        = "error"
)

// UserInfo is the display metadata a client supplies when joining a room.
// The server stores and echoes it to peers but never interprets it.
type UserInfo struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Envelope is the decoded form of every C2S message. One struct covers
// all inbound types; fields that don't apply to a given type are left
// empty by the decoder, and the hub switches on Type.
type Envelope struct {
	Type     string          `json:"type"`
	Room     string          `json:"room,omitempty"`     // join
	UserInfo *UserInfo       `json:"userInfo,omitempty"` // join
	Target   string          `json:"target,omitempty"`   // offer/answer/ice-candidate
	Data     json.RawMessage `json:"data,omitempty"`     // offer/answer/ice-candidate, file-message
	Content  json.RawMessage `json:"content,omitempty"`  // message
	Name     string          `json:"name,omitempty"`     // file-message filename

	// client is the connection that sent the message.
	// It's set by the read pump and never travels on the wire.
	client *Client `json:"-"`
}

// joinedMsg confirms a join to the joining client itself.
type joinedMsg struct {
	Type      string              `json:"type"`
	UserID    string              `json:"userId"`
	UserInfo  UserInfo            `json:"userInfo"`
	Users     []string            `json:"users"`
	UsersInfo map[string]UserInfo `json:"usersInfo"`
}

// userJoinedMsg announces a new arrival to the rest of the room.
type userJoinedMsg struct {
	Type     string   `json:"type"`
	UserID   string   `json:"userId"`
	UserInfo UserInfo `json:"userInfo"`
}

// userLeftMsg announces a departure to the remaining members.
type userLeftMsg struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// userListMsg carries a full member-info snapshot of the room.
type userListMsg struct {
	Type  string              `json:"type"`
	Users map[string]UserInfo `json:"users"`
}

// signalMsg is a relayed offer/answer/ice-candidate, rewritten so the
// recipient learns who it came from.
type signalMsg struct {
	Type string          `json:"type"`
	From string          `json:"from"`
	Data json.RawMessage `json:"data"`
}

// chatMsg is a relayed chat or file message with the sender attached.
type chatMsg struct {
	Type     string          `json:"type"`
	UserID   string          `json:"userId"`
	UserInfo UserInfo        `json:"userInfo"`
	Content  json.RawMessage `json:"content,omitempty"`
	Name     string          `json:"name,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// ackMsg is a bare typed reply (heartbeat-ack).
type ackMsg struct {
	Type string `json:"type"`
}

// errorMsg is the only error surfaced to a client (file-size rejection).
type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
