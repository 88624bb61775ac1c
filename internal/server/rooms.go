package server

import (
	"sync"
)

// RoomIndex tracks room membership with both forward and reverse indexes.
// Forward: room -> set of userIds, for membership queries and broadcasts.
// Reverse: userId -> set of rooms, for O(1) RoomsOf and disconnect cleanup.
// Membership is ephemeral; it only exists for the lifetime of the owning
// connection.
type RoomIndex struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{}
	users map[string]map[string]struct{}
}

func NewRoomIndex() *RoomIndex {
	return &RoomIndex{
		rooms: make(map[string]map[string]struct{}),
		users: make(map[string]map[string]struct{}),
	}
}

// Join adds userId to roomId. It reports whether the room was created by this
// join. Re-joining an already-joined room is a no-op.
func (ri *RoomIndex) Join(userId, roomId string) bool {
	ri.mu.Lock()
	defer ri.mu.Unlock()

	created := ri.rooms[roomId] == nil
	if created {
		ri.rooms[roomId] = make(map[string]struct{})
	}
	ri.rooms[roomId][userId] = struct{}{}

	if ri.users[userId] == nil {
		ri.users[userId] = make(map[string]struct{})
	}
	ri.users[userId][roomId] = struct{}{}

	return created
}

// Leave removes userId from roomId. It reports whether the room became empty
// and was dropped.
func (ri *RoomIndex) Leave(userId, roomId string) bool {
	ri.mu.Lock()
	defer ri.mu.Unlock()

	return ri.leaveLocked(userId, roomId)
}

func (ri *RoomIndex) leaveLocked(userId, roomId string) bool {
	removed := false
	if members, ok := ri.rooms[roomId]; ok {
		delete(members, userId)
		if len(members) == 0 {
			delete(ri.rooms, roomId)
			removed = true
		}
	}

	if rooms, ok := ri.users[userId]; ok {
		delete(rooms, roomId)
		if len(rooms) == 0 {
			delete(ri.users, userId)
		}
	}

	return removed
}

func (ri *RoomIndex) MembersOf(roomId string) []string {
	ri.mu.RLock()
	defer ri.mu.RUnlock()

	members := ri.rooms[roomId]
	if len(members) == 0 {
		return nil
	}

	result := make([]string, 0, len(members))
	for userId := range members {
		result = append(result, userId)
	}
	return result
}

func (ri *RoomIndex) IsMember(userId, roomId string) bool {
	ri.mu.RLock()
	defer ri.mu.RUnlock()

	_, ok := ri.rooms[roomId][userId]
	return ok
}

func (ri *RoomIndex) RoomsOf(userId string) []string {
	ri.mu.RLock()
	defer ri.mu.RUnlock()

	rooms := ri.users[userId]
	if len(rooms) == 0 {
		return nil
	}

	result := make([]string, 0, len(rooms))
	for roomId := range rooms {
		result = append(result, roomId)
	}
	return result
}

// DropAll removes userId from every room it belongs to, used on disconnect.
// It returns the affected rooms and how many of them became empty.
func (ri *RoomIndex) DropAll(userId string) ([]string, int) {
	ri.mu.Lock()
	defer ri.mu.Unlock()

	rooms, ok := ri.users[userId]
	if !ok {
		return nil, 0
	}

	affected := make([]string, 0, len(rooms))
	emptied := 0
	for roomId := range rooms {
		affected = append(affected, roomId)
		if members, ok := ri.rooms[roomId]; ok {
			delete(members, userId)
			if len(members) == 0 {
				delete(ri.rooms, roomId)
				emptied++
			}
		}
	}
	delete(ri.users, userId)

	return affected, emptied
}

func (ri *RoomIndex) NumRooms() int {
	ri.mu.RLock()
	defer ri.mu.RUnlock()

	return len(ri.rooms)
}
