package main

import (
	"encoding/json"
	"time"
)

// Client→server event names.
const (
	evtJoinChat    = "join_chat"
	evtSendMessage = "send_message"
	evtAck         = "ack"
	evtTyping      = "typing"
)

// Server→client event names.
const (
	evtMessage       = "message"
	evtMessageStatus = "message_status"
	evtMentioned     = "mentioned"
	evtCallback      = "callback"
)

// Ack types accepted on the ack event.
const (
	ackDelivered = "delivered"
	ackRead      = "read"
)

// Event is the outbound wire envelope. Seq echoes the client's sequence
// number on callback events so the client can correlate the reply with its
// request; it is omitted on pushed events.
type Event struct {
	Event string `json:"event"`
	Seq   int64  `json:"seq,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// clientEnvelope is the inbound wire envelope. Data stays raw until the
// event name selects the payload type.
type clientEnvelope struct {
	Event string          `json:"event"`
	Seq   int64           `json:"seq,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// joinChatPayload subscribes the connection to a chat room. No response.
type joinChatPayload struct {
	ChatID string `json:"chatId"`
}

// sendMessagePayload appends a message. ClientMsgID is the sender-chosen
// idempotency key, unique within the chat.
type sendMessagePayload struct {
	ClientMsgID string `json:"clientMsgId"`
	ChatID      string `json:"chatId"`
	Type        string `json:"type"`
	Content     string `json:"content"`
}

// ackPayload records a delivered or read acknowledgment. No direct response.
type ackPayload struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	AckType   string `json:"ackType"`
}

// typingPayload relays a typing indicator to the chat's other participants.
type typingPayload struct {
	ChatID string `json:"chatId"`
	State  bool   `json:"state"`
}

// callbackData is the reply to send_message: either {ok, messageId} or
// {error}.
type callbackData struct {
	OK        bool   `json:"ok,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// messageData is the pushed message event. MessageID is the client message
// id; receivers must dedup by it because the same message may arrive through
// both the chat room and the personal channel.
type messageData struct {
	MessageID string    `json:"messageId"`
	ChatID    string    `json:"chatId"`
	SenderID  string    `json:"senderId"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Mentions  []string  `json:"mentions,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// statusData notifies a sender that a recipient acknowledged a message.
type statusData struct {
	MessageID string    `json:"messageId"`
	ChatID    string    `json:"chatId"`
	UserID    string    `json:"userId"`
	Status    string    `json:"status"`
	At        time.Time `json:"at"`
}

// mentionedData is the targeted notification pushed to a mentioned user.
type mentionedData struct {
	MessageID string    `json:"messageId"`
	ChatID    string    `json:"chatId"`
	From      string    `json:"from"`
	At        time.Time `json:"at"`
}

// typingData is the typing indicator pushed to other participants.
type typingData struct {
	FromUserID string `json:"fromUserId"`
	ChatID     string `json:"chatId"`
	State      bool   `json:"state"`
}

func callbackEvent(seq int64, data callbackData) *Event {
	return &Event{Event: evtCallback, Seq: seq, Data: data}
}

func messageEvent(m messageData) *Event {
	return &Event{Event: evtMessage, Data: m}
}
