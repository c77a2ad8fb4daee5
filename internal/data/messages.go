package data

import (
	"context"
	"time"

	"github.com/google/uuid"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MessagesStore provides message database operations. Message identity is the
// (chat_id, client_msg_id) pair; its unique index is the synchronization
// point that makes appends idempotent under concurrent retries.
type MessagesStore struct {
	coll *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using the given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll}
}

// Append stores a message and returns the stored record. If a message with
// the same (chatID, clientMsgID) already exists the existing document is
// returned unchanged, so a sender can retry a send after a lost ack without
// creating duplicates. CreatedAt is assigned at first successful append and
// never changes on retries. An empty clientMsgID gets a generated one.
func (m *MessagesStore) Append(ctx context.Context, chatID, clientMsgID, senderID, msgType, content string, mentions []string) (*Message, error) {
	if clientMsgID == "" {
		clientMsgID = uuid.NewString()
	}
	if msgType == "" {
		msgType = "text"
	}

	msg := &Message{
		ClientMsgID: clientMsgID,
		ChatID:      chatID,
		SenderID:    senderID,
		Type:        msgType,
		Content:     content,
		Mentions:    mentions,
		CreatedAt:   time.Now(),
		DeliveredTo: []string{},
		ReadBy:      []string{},
	}

	result, err := m.coll.InsertOne(ctx, msg)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return m.FindByID(ctx, chatID, clientMsgID)
		}
		return nil, err
	}

	msg.ID = result.InsertedID.(bson.ObjectID)
	return msg, nil
}

// FindByID looks up a message by its (chatID, clientMsgID) identity.
func (m *MessagesStore) FindByID(ctx context.Context, chatID, clientMsgID string) (*Message, error) {
	var msg Message
	err := m.coll.FindOne(ctx, bson.M{"chat_id": chatID, "client_msg_id": clientMsgID}).Decode(&msg)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// History returns every message of a chat in chronological order. Ties on
// created_at are broken by insertion order via the _id secondary sort.
func (m *MessagesStore) History(ctx context.Context, chatID string) ([]*Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := m.coll.Find(ctx, bson.M{"chat_id": chatID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []*Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// PendingFor returns the chat's messages not yet delivered to the given user,
// excluding the user's own messages, in chronological order. Used by offline
// replay on (re)connect.
func (m *MessagesStore) PendingFor(ctx context.Context, chatID, userID string) ([]*Message, error) {
	filter := bson.M{
		"chat_id":      chatID,
		"sender_id":    bson.M{"$ne": userID},
		"delivered_to": bson.M{"$ne": userID},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []*Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkDelivered adds userID to the message's delivered set and returns the
// updated message. $addToSet makes the operation idempotent: re-acking an
// already delivered message is a no-op and the set only ever grows.
func (m *MessagesStore) MarkDelivered(ctx context.Context, chatID, clientMsgID, userID string) (*Message, error) {
	return m.mark(ctx, chatID, clientMsgID, bson.M{
		"$addToSet": bson.M{"delivered_to": userID},
	})
}

// MarkRead adds userID to the message's read set. The delivered set is grown
// as well, so read-before-delivered acks still leave delivered_to consistent
// with read_by.
func (m *MessagesStore) MarkRead(ctx context.Context, chatID, clientMsgID, userID string) (*Message, error) {
	return m.mark(ctx, chatID, clientMsgID, bson.M{
		"$addToSet": bson.M{"read_by": userID, "delivered_to": userID},
	})
}

func (m *MessagesStore) mark(ctx context.Context, chatID, clientMsgID string, update bson.M) (*Message, error) {
	filter := bson.M{"chat_id": chatID, "client_msg_id": clientMsgID}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var msg Message
	err := m.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&msg)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}
