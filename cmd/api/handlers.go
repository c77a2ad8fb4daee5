package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/kelechukwu/pingme/internal/data"
)

// dispatch routes one inbound client event to its handler. Errors from
// persistence or fan-out are contained here: they are logged and, for sends,
// reported through the callback error field; they never crash the connection.
func (s *Server) dispatch(c *wsClient, raw []byte) {
	var env clientEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Debug().Err(err).Msg("invalid event envelope")
		return
	}

	ctx := context.Background()

	switch env.Event {
	case evtJoinChat:
		var p joinChatPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		s.handleJoinChat(ctx, c, p)

	case evtSendMessage:
		var p sendMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.Send(callbackEvent(env.Seq, callbackData{Error: "server error"}))
			return
		}
		s.handleSendMessage(ctx, c, env.Seq, p)

	case evtAck:
		var p ackPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		s.handleAck(ctx, c, p)

	case evtTyping:
		var p typingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		s.handleTyping(ctx, c, p)

	default:
		c.log.Debug().Str("event", env.Event).Msg("unknown event")
	}
}

// handleJoinChat subscribes the connection to a chat room. Idempotent, no
// response. Joins to chats the user does not belong to are silently ignored.
func (s *Server) handleJoinChat(ctx context.Context, c *wsClient, p joinChatPayload) {
	chat, err := s.chats.FindByID(ctx, p.ChatID)
	if err != nil {
		c.log.Debug().Err(err).Str("chat_id", p.ChatID).Msg("join_chat failed")
		return
	}
	if !chat.HasParticipant(c.userID) {
		c.log.Debug().Str("chat_id", p.ChatID).Msg("join_chat from non-participant ignored")
		return
	}
	s.hub.Join(c.connID, p.ChatID)
}

// handleSendMessage appends the message idempotently and fans it out. The
// callback carries {ok, messageId} on success; the only user-visible
// failures are "chat not found" and "server error". A retry with the same
// clientMsgId converges on the stored message and acks with the same id.
func (s *Server) handleSendMessage(ctx context.Context, c *wsClient, seq int64, p sendMessagePayload) {
	chat, err := s.chats.FindByID(ctx, p.ChatID)
	if err != nil {
		if errors.Is(err, data.ErrChatNotFound) {
			c.Send(callbackEvent(seq, callbackData{Error: "chat not found"}))
			return
		}
		c.log.Error().Err(err).Msg("send_message: chat lookup failed")
		c.Send(callbackEvent(seq, callbackData{Error: "server error"}))
		return
	}

	// Mentions resolve before the append so they are stored on the message.
	// Resolution never fails the send.
	var mentions []string
	if p.Type == "" || p.Type == "text" {
		mentions, err = s.mentions.Resolve(ctx, p.Content)
		if err != nil {
			c.log.Warn().Err(err).Msg("mention resolution failed")
			mentions = nil
		}
	}

	msg, err := s.msgs.Append(ctx, p.ChatID, p.ClientMsgID, c.userID, p.Type, p.Content, mentions)
	if err != nil {
		c.log.Error().Err(err).Msg("send_message: append failed")
		c.Send(callbackEvent(seq, callbackData{Error: "server error"}))
		return
	}

	// Best-effort update of the denormalized last-message pointer.
	if err := s.chats.SetLastMessage(ctx, p.ChatID, data.LastMessage{
		MessageID: msg.ClientMsgID,
		Text:      msg.Content,
		Timestamp: msg.CreatedAt,
	}); err != nil {
		c.log.Warn().Err(err).Msg("send_message: last-message update failed")
	}

	ev := messageEvent(messageData{
		MessageID: msg.ClientMsgID,
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		Type:      msg.Type,
		Content:   msg.Content,
		Mentions:  msg.Mentions,
		CreatedAt: msg.CreatedAt,
	})

	// Dual delivery: the chat room and every participant's personal channel.
	// A recipient that just created the chat may not have joined the room
	// yet; the personal channel covers that window and clients dedup by
	// clientMsgId.
	s.hub.SendToChat(msg.ChatID, ev, "")
	for _, pid := range chat.ParticipantIDs() {
		s.hub.SendToUser(pid, ev)
	}

	for _, uid := range msg.Mentions {
		s.hub.SendToUser(uid, &Event{Event: evtMentioned, Data: mentionedData{
			MessageID: msg.ClientMsgID,
			ChatID:    msg.ChatID,
			From:      msg.SenderID,
			At:        msg.CreatedAt,
		}})
	}

	c.Send(callbackEvent(seq, callbackData{OK: true, MessageID: msg.ClientMsgID}))
}

// handleAck records a delivered/read acknowledgment and notifies the sender
// on their personal channel. Idempotent: re-acking is a no-op on the stored
// sets. Acks from non-participants are dropped so the delivered and read
// sets stay within the chat's participant set. No direct response; the
// status notification itself is best-effort and unacknowledged.
func (s *Server) handleAck(ctx context.Context, c *wsClient, p ackPayload) {
	chat, err := s.chats.FindByID(ctx, p.ChatID)
	if err != nil {
		c.log.Debug().Err(err).Str("chat_id", p.ChatID).Msg("ack: chat lookup failed")
		return
	}
	if !chat.HasParticipant(c.userID) {
		c.log.Debug().Str("chat_id", p.ChatID).Msg("ack from non-participant ignored")
		return
	}

	var msg *data.Message
	switch p.AckType {
	case ackDelivered:
		msg, err = s.msgs.MarkDelivered(ctx, p.ChatID, p.MessageID, c.userID)
	case ackRead:
		msg, err = s.msgs.MarkRead(ctx, p.ChatID, p.MessageID, c.userID)
	default:
		c.log.Debug().Str("ack_type", p.AckType).Msg("unknown ack type")
		return
	}
	if err != nil {
		c.log.Debug().Err(err).Str("message_id", p.MessageID).Msg("ack failed")
		return
	}

	s.hub.SendToUser(msg.SenderID, &Event{Event: evtMessageStatus, Data: statusData{
		MessageID: msg.ClientMsgID,
		ChatID:    msg.ChatID,
		UserID:    c.userID,
		Status:    p.AckType,
		At:        time.Now(),
	}})
}

// handleTyping relays a typing indicator to every other participant's
// personal channel. Fire-and-forget, no failure channel.
func (s *Server) handleTyping(ctx context.Context, c *wsClient, p typingPayload) {
	chat, err := s.chats.FindByID(ctx, p.ChatID)
	if err != nil {
		return
	}

	ev := &Event{Event: evtTyping, Data: typingData{
		FromUserID: c.userID,
		ChatID:     p.ChatID,
		State:      p.State,
	}}
	for _, pid := range chat.ParticipantIDs() {
		if pid == c.userID {
			continue
		}
		s.hub.SendToUser(pid, ev)
	}
}

// replayPending pushes the messages stored while the user was offline to a
// newly live connection, chat by chat in chronological order, marking each
// delivered and notifying its sender. Runs once per connection. Delivery
// marking is idempotent and keyed by message identity, so a message that
// also arrives through live fan-out during replay is marked once and the
// duplicate event is absorbed by client-side dedup.
func (s *Server) replayPending(c *wsClient) {
	ctx := context.Background()

	chats, err := s.chats.FindByParticipant(ctx, c.userID)
	if err != nil {
		c.log.Error().Err(err).Msg("replay: chat enumeration failed")
		return
	}

	for _, chat := range chats {
		pending, err := s.msgs.PendingFor(ctx, chat.ID.Hex(), c.userID)
		if err != nil {
			c.log.Error().Err(err).Str("chat_id", chat.ID.Hex()).Msg("replay: pending query failed")
			continue
		}

		for _, msg := range pending {
			s.hub.SendToConn(c.connID, messageEvent(messageData{
				MessageID: msg.ClientMsgID,
				ChatID:    msg.ChatID,
				SenderID:  msg.SenderID,
				Type:      msg.Type,
				Content:   msg.Content,
				Mentions:  msg.Mentions,
				CreatedAt: msg.CreatedAt,
			}))

			updated, err := s.msgs.MarkDelivered(ctx, msg.ChatID, msg.ClientMsgID, c.userID)
			if err != nil {
				c.log.Warn().Err(err).Str("message_id", msg.ClientMsgID).Msg("replay: delivery mark failed")
				continue
			}

			s.hub.SendToUser(updated.SenderID, &Event{Event: evtMessageStatus, Data: statusData{
				MessageID: updated.ClientMsgID,
				ChatID:    updated.ChatID,
				UserID:    c.userID,
				Status:    ackDelivered,
				At:        time.Now(),
			}})
		}
	}
}
