package server

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/npezzotti/go-presence/internal/directory"
	"github.com/npezzotti/go-presence/internal/stats"
	"github.com/npezzotti/go-presence/internal/types"
	"github.com/teris-io/shortid"
)

// EventRoomActive notifies a freshly-connected client that a room it is
// subscribed to currently has members online.
const EventRoomActive = "room_active"

var validStatuses = map[string]struct{}{
	"online": {},
	"away":   {},
	"busy":   {},
}

// PresenceServer owns the five in-memory component tables and is the only
// place where they are composed. Each component guards its own state, so a
// handler never holds more than one lock at a time.
type PresenceServer struct {
	log      *log.Logger
	dir      directory.Directory
	stats    stats.StatsProvider
	sid      *shortid.Shortid
	registry *ConnectionRegistry
	rooms    *RoomIndex
	typing   *TypingTracker
	queue    *OfflineQueue
	ledger   *DeliveryLedger
}

func NewPresenceServer(logger *log.Logger, dir directory.Directory, su stats.StatsProvider, typingTimeout time.Duration) (*PresenceServer, error) {
	sid, err := shortid.New(1, shortid.DefaultABC, uint64(time.Now().UnixNano()))
	if err != nil {
		return nil, err
	}

	ps := &PresenceServer{
		log:      logger,
		dir:      dir,
		stats:    su,
		sid:      sid,
		registry: NewConnectionRegistry(),
		rooms:    NewRoomIndex(),
		typing:   NewTypingTracker(typingTimeout),
		queue:    NewOfflineQueue(defaultQueueCapacity),
		ledger:   NewDeliveryLedger(),
	}

	for _, name := range []string{
		stats.NumConnections,
		stats.NumRooms,
		stats.NumTypingSessions,
		stats.NumQueuedMessages,
		stats.NumDeliveryRecords,
	} {
		su.RegisterMetric(name)
	}

	return ps, nil
}

// Connect registers c as the user's live connection, displacing any prior
// session, then drains the user's offline queue onto the new channel before
// any newly-addressed messages are processed.
func (ps *PresenceServer) Connect(ctx context.Context, c *Client) {
	c.user.ConnectedAt = Now()

	if prev := ps.registry.Register(c.user.Id, c); prev != nil {
		ps.log.Printf("replacing existing session for user %q", c.user.Id)
		prev.queueEvent(newEvent(EventError, &ErrorPayload{
			Code:    409,
			Message: "session replaced by a newer connection",
		}))
		prev.stopClient()
	} else {
		ps.stats.Incr(stats.NumConnections)
	}

	queued := ps.queue.Drain(c.user.Id)
	for _, qm := range queued {
		if mp, ok := qm.Event.Data.(*MessagePayload); ok {
			mp.FromQueue = true
		}
		c.queueEvent(qm.Event)
	}
	if len(queued) > 0 {
		ps.log.Printf("delivered %d queued messages to user %q", len(queued), c.user.Id)
		ps.stats.Add(stats.NumQueuedMessages, -len(queued))
	}

	ps.notifyActiveRooms(ctx, c)
}

// notifyActiveRooms tells the connecting client which of its subscribed rooms
// currently have members online. Subscriptions live in the external
// directory; failure to read them only costs the snapshot.
func (ps *PresenceServer) notifyActiveRooms(ctx context.Context, c *Client) {
	subscribed, err := ps.dir.ListUserRooms(ctx, c.user.Id)
	if err != nil {
		ps.log.Printf("list rooms for user %q: %v", c.user.Id, err)
		return
	}

	for _, roomId := range subscribed {
		members := ps.rooms.MembersOf(roomId)
		if len(members) == 0 {
			continue
		}

		c.queueEvent(newEvent(EventRoomActive, &types.Room{
			Id:      roomId,
			Members: members,
		}))
	}
}

// Disconnect tears down all state owned by c's session: typing sessions,
// room memberships, and the registry entry. A stale client from a replaced
// session cannot tear down its successor's state.
func (ps *PresenceServer) Disconnect(c *Client) {
	userId := c.user.Id
	if !ps.registry.Unregister(userId, c) {
		return
	}
	ps.stats.Decr(stats.NumConnections)

	typingRooms := ps.typing.StopAll(userId)
	for _, roomId := range typingRooms {
		ps.broadcastToRoom(roomId, newEvent(EventTypingStop, &TypingEventPayload{
			RoomId: roomId,
			UserId: userId,
		}), userId)
	}
	ps.stats.Add(stats.NumTypingSessions, -len(typingRooms))

	affected, emptied := ps.rooms.DropAll(userId)
	for _, roomId := range affected {
		ps.broadcastToRoom(roomId, newEvent(EventUserOffline, &RoomPresencePayload{
			RoomId:      roomId,
			UserId:      userId,
			DisplayName: c.user.DisplayName,
		}), userId)
	}
	ps.stats.Add(stats.NumRooms, -emptied)

	ps.log.Printf("user %q disconnected", userId)
}

// dispatch routes one inbound event to its handler. A failure here is
// isolated to the event: at worst the sender gets an error event back.
func (ps *PresenceServer) dispatch(c *Client, ev *ClientEvent) {
	switch ev.Event {
	case EventJoinRoom:
		var p JoinRoomPayload
		if !decode(ev.Data, &p) || p.RoomId == "" {
			ps.rejectInvalid(c, ev)
			return
		}
		ps.handleJoinRoom(c, &p)
	case EventLeaveRoom:
		var p LeaveRoomPayload
		if !decode(ev.Data, &p) || p.RoomId == "" {
			ps.rejectInvalid(c, ev)
			return
		}
		ps.handleLeaveRoom(c, &p)
	case EventSendMessage:
		var p SendMessagePayload
		if !decode(ev.Data, &p) || p.RoomId == "" || p.Message == "" {
			ps.rejectInvalid(c, ev)
			return
		}
		ps.handleSendMessage(c, &p)
	case EventTypingStart:
		var p TypingPayload
		if !decode(ev.Data, &p) || p.RoomId == "" {
			ps.rejectInvalid(c, ev)
			return
		}
		ps.handleTypingStart(c, &p)
	case EventTypingStop:
		var p TypingPayload
		if !decode(ev.Data, &p) || p.RoomId == "" {
			ps.rejectInvalid(c, ev)
			return
		}
		ps.handleTypingStop(c, &p)
	case EventAddReaction, EventRemoveReaction:
		var p ReactionPayload
		if !decode(ev.Data, &p) || p.RoomId == "" || p.MessageId == "" || p.Emoji == "" {
			ps.rejectInvalid(c, ev)
			return
		}
		ps.handleReaction(c, ev.Event, &p)
	case EventEditMessage:
		var p EditMessagePayload
		if !decode(ev.Data, &p) || p.RoomId == "" || p.MessageId == "" || p.Message == "" {
			ps.rejectInvalid(c, ev)
			return
		}
		ps.handleEditMessage(c, &p)
	case EventDeleteMessage:
		var p DeleteMessagePayload
		if !decode(ev.Data, &p) || p.RoomId == "" || p.MessageId == "" {
			ps.rejectInvalid(c, ev)
			return
		}
		ps.handleDeleteMessage(c, &p)
	case EventMarkRead:
		var p MarkReadPayload
		if !decode(ev.Data, &p) || p.MessageId == "" || p.SenderId == "" {
			ps.rejectInvalid(c, ev)
			return
		}
		ps.handleMarkRead(c, &p)
	case EventStatusUpdate:
		var p StatusUpdatePayload
		if !decode(ev.Data, &p) {
			ps.rejectInvalid(c, ev)
			return
		}
		if _, ok := validStatuses[p.Status]; !ok {
			ps.rejectInvalid(c, ev)
			return
		}
		ps.handleStatusUpdate(c, &p)
	case EventPing:
		c.queueEvent(newEvent(EventPong, nil))
	default:
		c.queueEvent(ErrUnknownEvent(ev.Event))
	}
}

func decode(raw json.RawMessage, v any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func (ps *PresenceServer) rejectInvalid(c *Client, ev *ClientEvent) {
	ps.log.Printf("invalid %q payload from user %q", ev.Event, c.user.Id)
	c.queueEvent(ErrInvalidPayload())
}

func (ps *PresenceServer) handleJoinRoom(c *Client, p *JoinRoomPayload) {
	if ps.rooms.Join(c.user.Id, p.RoomId) {
		ps.stats.Incr(stats.NumRooms)
	}

	// a repeat join re-announces presence on purpose
	ps.broadcastToRoom(p.RoomId, newEvent(EventUserJoined, &RoomPresencePayload{
		RoomId:      p.RoomId,
		UserId:      c.user.Id,
		DisplayName: c.user.DisplayName,
	}), c.user.Id)
}

func (ps *PresenceServer) handleLeaveRoom(c *Client, p *LeaveRoomPayload) {
	if ps.typing.Stop(p.RoomId, c.user.Id) {
		ps.stats.Decr(stats.NumTypingSessions)
		ps.broadcastToRoom(p.RoomId, newEvent(EventTypingStop, &TypingEventPayload{
			RoomId: p.RoomId,
			UserId: c.user.Id,
		}), c.user.Id)
	}

	if ps.rooms.Leave(c.user.Id, p.RoomId) {
		ps.stats.Decr(stats.NumRooms)
	}

	ps.broadcastToRoom(p.RoomId, newEvent(EventUserLeft, &RoomPresencePayload{
		RoomId:      p.RoomId,
		UserId:      c.user.Id,
		DisplayName: c.user.DisplayName,
	}), c.user.Id)
}

// handleSendMessage partitions the room's members into online and offline
// sets, pushes to the online ones, queues for the rest, and replies to the
// sender with a delivery receipt. An unknown room is a broadcast to zero
// recipients, not an error; room membership is ephemeral and races are
// expected.
func (ps *PresenceServer) handleSendMessage(c *Client, p *SendMessagePayload) {
	messageId, err := ps.sid.Generate()
	if err != nil {
		ps.log.Println("generate message id:", err)
		c.queueEvent(ErrInternalError())
		return
	}

	delivered, queued := 0, 0
	for _, member := range ps.rooms.MembersOf(p.RoomId) {
		if member == c.user.Id {
			continue
		}

		ev := newEvent(EventNewMessage, &MessagePayload{
			RoomId:     p.RoomId,
			MessageId:  messageId,
			SenderId:   c.user.Id,
			SenderName: c.user.DisplayName,
			Message:    p.Message,
		})

		// a failed send to an ostensibly-online member falls through to
		// the queue, same as offline
		if ps.registry.Send(member, ev) {
			if ps.ledger.MarkDelivered(messageId, member) {
				ps.stats.Incr(stats.NumDeliveryRecords)
			}
			delivered++
		} else {
			if !ps.queue.Enqueue(member, ev) {
				ps.stats.Incr(stats.NumQueuedMessages)
			}
			queued++
		}
	}

	c.queueEvent(newEvent(EventDeliveryConfirmed, &DeliveryReceiptPayload{
		MessageId:   messageId,
		DeliveredTo: delivered,
		QueuedFor:   queued,
	}))
}

func (ps *PresenceServer) handleTypingStart(c *Client, p *TypingPayload) {
	userId := c.user.Id
	roomId := p.RoomId

	created := ps.typing.Start(roomId, userId, func() {
		ps.stats.Decr(stats.NumTypingSessions)
		ps.broadcastToRoom(roomId, newEvent(EventTypingStop, &TypingEventPayload{
			RoomId: roomId,
			UserId: userId,
		}), userId)
	})

	if created {
		ps.stats.Incr(stats.NumTypingSessions)
		ps.broadcastToRoom(roomId, newEvent(EventTypingStart, &TypingEventPayload{
			RoomId: roomId,
			UserId: userId,
		}), userId)
	}
}

func (ps *PresenceServer) handleTypingStop(c *Client, p *TypingPayload) {
	if !ps.typing.Stop(p.RoomId, c.user.Id) {
		return
	}

	ps.stats.Decr(stats.NumTypingSessions)
	ps.broadcastToRoom(p.RoomId, newEvent(EventTypingStop, &TypingEventPayload{
		RoomId: p.RoomId,
		UserId: c.user.Id,
	}), c.user.Id)
}

func (ps *PresenceServer) handleReaction(c *Client, event string, p *ReactionPayload) {
	outbound := EventReactionAdded
	if event == EventRemoveReaction {
		outbound = EventReactionRemoved
	}

	ps.broadcastToRoom(p.RoomId, newEvent(outbound, &ReactionEventPayload{
		RoomId:    p.RoomId,
		MessageId: p.MessageId,
		UserId:    c.user.Id,
		Emoji:     p.Emoji,
	}), c.user.Id)
}

func (ps *PresenceServer) handleEditMessage(c *Client, p *EditMessagePayload) {
	ps.broadcastToRoom(p.RoomId, newEvent(EventMessageEdited, &MessageEditedPayload{
		RoomId:    p.RoomId,
		MessageId: p.MessageId,
		UserId:    c.user.Id,
		Message:   p.Message,
	}), c.user.Id)
}

func (ps *PresenceServer) handleDeleteMessage(c *Client, p *DeleteMessagePayload) {
	ps.broadcastToRoom(p.RoomId, newEvent(EventMessageDeleted, &MessageDeletedPayload{
		RoomId:    p.RoomId,
		MessageId: p.MessageId,
		UserId:    c.user.Id,
	}), c.user.Id)
}

func (ps *PresenceServer) handleMarkRead(c *Client, p *MarkReadPayload) {
	// a missing record is a no-op: it may have been pruned, or the message
	// was delivered from the queue and never entered the ledger
	ps.ledger.MarkRead(p.MessageId, c.user.Id)

	ps.registry.Send(p.SenderId, newEvent(EventMessageRead, &MessageReadPayload{
		MessageId: p.MessageId,
		ReaderId:  c.user.Id,
	}))
}

func (ps *PresenceServer) handleStatusUpdate(c *Client, p *StatusUpdatePayload) {
	for _, roomId := range ps.rooms.RoomsOf(c.user.Id) {
		ps.broadcastToRoom(roomId, newEvent(EventStatusUpdate, &StatusEventPayload{
			RoomId: roomId,
			UserId: c.user.Id,
			Status: p.Status,
		}), c.user.Id)
	}
}

// broadcastToRoom pushes ev to every online member of roomId except skipUserId.
// Members without a live connection are skipped; room broadcasts are not queued.
func (ps *PresenceServer) broadcastToRoom(roomId string, ev *ServerEvent, skipUserId string) {
	for _, member := range ps.rooms.MembersOf(roomId) {
		if member == skipUserId {
			continue
		}

		ps.registry.Send(member, ev)
	}
}

// QueueSizeOf reports the offline queue depth for a user, for diagnostics.
func (ps *PresenceServer) QueueSizeOf(userId string) int {
	return ps.queue.SizeOf(userId)
}

// IsOnline reports whether the user has a live connection.
func (ps *PresenceServer) IsOnline(userId string) bool {
	return ps.registry.IsOnline(userId)
}

// Shutdown stops every live client and waits for their sessions to be torn
// down or the context to expire.
func (ps *PresenceServer) Shutdown(ctx context.Context) error {
	ps.log.Println("shutting down presence server")
	for _, c := range ps.registry.Clients() {
		c.stopClient()
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if ps.registry.Len() == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
