package server

import (
	"encoding/json"
	"time"
)

// Inbound event names (client -> server).
const (
	EventJoinRoom       = "join_room"
	EventLeaveRoom      = "leave_room"
	EventSendMessage    = "send_message"
	EventTypingStart    = "typing_start"
	EventTypingStop     = "typing_stop"
	EventAddReaction    = "add_reaction"
	EventRemoveReaction = "remove_reaction"
	EventEditMessage    = "edit_message"
	EventDeleteMessage  = "delete_message"
	EventMarkRead       = "mark_read"
	EventStatusUpdate   = "status_update"
	EventPing           = "ping"
)

// Outbound event names (server -> client).
const (
	EventNewMessage        = "new_message"
	EventUserJoined        = "user_joined"
	EventUserLeft          = "user_left"
	EventUserOffline       = "user_offline"
	EventReactionAdded     = "reaction_added"
	EventReactionRemoved   = "reaction_removed"
	EventMessageEdited     = "message_edited"
	EventMessageDeleted    = "message_deleted"
	EventMessageRead       = "message_read"
	EventDeliveryConfirmed = "message_delivery_confirmed"
	EventError             = "error"
	EventPong              = "pong"
)

// ClientEvent is the envelope for every inbound frame. The payload is decoded
// per event name by the dispatcher.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinRoomPayload struct {
	RoomId string `json:"room_id"`
}

type LeaveRoomPayload struct {
	RoomId string `json:"room_id"`
}

type SendMessagePayload struct {
	RoomId  string `json:"room_id"`
	Message string `json:"message"`
}

type TypingPayload struct {
	RoomId string `json:"room_id"`
}

type ReactionPayload struct {
	RoomId    string `json:"room_id"`
	MessageId string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type EditMessagePayload struct {
	RoomId    string `json:"room_id"`
	MessageId string `json:"message_id"`
	Message   string `json:"message"`
}

type DeleteMessagePayload struct {
	RoomId    string `json:"room_id"`
	MessageId string `json:"message_id"`
}

type MarkReadPayload struct {
	MessageId string `json:"message_id"`
	SenderId  string `json:"sender_id"`
}

type StatusUpdatePayload struct {
	Status string `json:"status"`
}

// ServerEvent is the envelope for every outbound frame.
type ServerEvent struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

type MessagePayload struct {
	RoomId     string `json:"room_id"`
	MessageId  string `json:"message_id"`
	SenderId   string `json:"sender_id"`
	SenderName string `json:"sender_name,omitempty"`
	Message    string `json:"message"`
	FromQueue  bool   `json:"from_queue,omitempty"`
}

type RoomPresencePayload struct {
	RoomId      string `json:"room_id"`
	UserId      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
}

type TypingEventPayload struct {
	RoomId string `json:"room_id"`
	UserId string `json:"user_id"`
}

type ReactionEventPayload struct {
	RoomId    string `json:"room_id"`
	MessageId string `json:"message_id"`
	UserId    string `json:"user_id"`
	Emoji     string `json:"emoji"`
}

type MessageEditedPayload struct {
	RoomId    string `json:"room_id"`
	MessageId string `json:"message_id"`
	UserId    string `json:"user_id"`
	Message   string `json:"message"`
}

type MessageDeletedPayload struct {
	RoomId    string `json:"room_id"`
	MessageId string `json:"message_id"`
	UserId    string `json:"user_id"`
}

type MessageReadPayload struct {
	MessageId string `json:"message_id"`
	ReaderId  string `json:"reader_id"`
}

type StatusEventPayload struct {
	RoomId string `json:"room_id"`
	UserId string `json:"user_id"`
	Status string `json:"status"`
}

// DeliveryReceiptPayload is the acknowledgment returned to the sender of a
// send_message event once recipients are partitioned.
type DeliveryReceiptPayload struct {
	MessageId   string `json:"message_id"`
	DeliveredTo int    `json:"delivered_to"`
	QueuedFor   int    `json:"queued_for"`
}

type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func newEvent(name string, data any) *ServerEvent {
	return &ServerEvent{
		Event:     name,
		Timestamp: Now(),
		Data:      data,
	}
}

func ErrInvalidPayload() *ServerEvent {
	return newEvent(EventError, &ErrorPayload{
		Code:    400,
		Message: "invalid payload",
	})
}

func ErrUnknownEvent(name string) *ServerEvent {
	return newEvent(EventError, &ErrorPayload{
		Code:    400,
		Message: "unknown event: " + name,
	})
}

func ErrInternalError() *ServerEvent {
	return newEvent(EventError, &ErrorPayload{
		Code:    500,
		Message: "internal server error",
	})
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
