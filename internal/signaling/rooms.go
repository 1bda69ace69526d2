package signaling

import "sync"

// Room is a named group of clients exchanging signaling messages.
// Rooms are created lazily on first join and deleted the moment the
// last member leaves; an empty room is never observable.
type Room struct {
	ID      string
	members map[string]UserInfo
}

// Rooms maps room ids to member sets and keeps the reverse client->room
// index. Both maps are mutated together under one lock, so a client's
// room and a room's member set can never disagree.
type Rooms struct {
	mu         sync.RWMutex
	rooms      map[string]*Room
	membership map[string]string // client id -> room id
}

// NewRooms creates an empty room directory.
func NewRooms() *Rooms {
	return &Rooms{
		rooms:      make(map[string]*Room),
		membership: make(map[string]string),
	}
}

// Join adds the client to the room, creating it if absent, and stores
// the client's display info. If the client is in another room it is
// moved; callers that need departure notifications must Leave first.
func (d *Rooms) Join(roomID, clientID string, info UserInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.leaveLocked(clientID)

	room, ok := d.rooms[roomID]
	if !ok {
		room = &Room{ID: roomID, members: make(map[string]UserInfo)}
		d.rooms[roomID] = room
	}
	room.members[clientID] = info
	d.membership[clientID] = roomID
}

// Leave removes the client from its current room and reports which room
// it left. The room is deleted if it became empty. No-op when the
// client is not in a room.
func (d *Rooms) Leave(clientID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.leaveLocked(clientID)
}

func (d *Rooms) leaveLocked(clientID string) (string, bool) {
	roomID, ok := d.membership[clientID]
	if !ok {
		return "", false
	}
	delete(d.membership, clientID)

	if room, ok := d.rooms[roomID]; ok {
		delete(room.members, clientID)
		if len(room.members) == 0 {
			delete(d.rooms, roomID)
		}
	}
	return roomID, true
}

// RoomOf reports which room the client is currently in.
func (d *Rooms) RoomOf(clientID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	roomID, ok := d.membership[clientID]
	return roomID, ok
}

// InfoOf returns the display info the client supplied at join time.
func (d *Rooms) InfoOf(clientID string) (UserInfo, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	roomID, ok := d.membership[clientID]
	if !ok {
		return UserInfo{}, false
	}
	room, ok := d.rooms[roomID]
	if !ok {
		return UserInfo{}, false
	}
	info, ok := room.members[clientID]
	return info, ok
}

// Members returns the member ids of the room, empty if the room is absent.
func (d *Rooms) Members(roomID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	room, ok := d.rooms[roomID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(room.members))
	for id := range room.members {
		ids = append(ids, id)
	}
	return ids
}

// MemberInfo returns a copy of the room's member-info map, empty if the
// room is absent.
func (d *Rooms) MemberInfo(roomID string) map[string]UserInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	info := make(map[string]UserInfo)
	if room, ok := d.rooms[roomID]; ok {
		for id, ui := range room.members {
			info[id] = ui
		}
	}
	return info
}

// Exists reports whether the room is currently in the directory.
func (d *Rooms) Exists(roomID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.rooms[roomID]
	return ok
}
