package data

import (
	"context"
	"time"

	"github.com/kelechukwu/pingme/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ChatsStore provides chat database operations.
type ChatsStore struct {
	coll *mongo.Collection
}

// NewChatsStore returns a ChatsStore using the given collection.
func NewChatsStore(coll *mongo.Collection) *ChatsStore {
	return &ChatsStore{coll: coll}
}

// FindByID looks up a chat by the hex form of its ObjectID.
func (c *ChatsStore) FindByID(ctx context.Context, chatID string) (*Chat, error) {
	oid, err := bson.ObjectIDFromHex(chatID)
	if err != nil {
		return nil, ErrChatNotFound
	}

	var chat Chat
	if err := c.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&chat); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return &chat, nil
}

// FindByParticipant returns every chat the user belongs to, most recently
// updated first.
func (c *ChatsStore) FindByParticipant(ctx context.Context, userID string) ([]*Chat, error) {
	opts := options.Find().SetSort(bson.M{"updated_at": -1})
	cursor, err := c.coll.Find(ctx, bson.M{"participants.user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chats []*Chat
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// CreateDirect returns the canonical direct chat between two users, creating
// it if necessary. The member key is symmetric, so CreateDirect(a, b) and
// CreateDirect(b, a) resolve to the same chat. Concurrent creation attempts
// race on the partial unique index over (member_key, kind): the loser's
// insert fails with a duplicate-key error and the winner's chat is re-fetched
// and returned, never surfaced as a conflict.
func (c *ChatsStore) CreateDirect(ctx context.Context, userA, userB string) (*Chat, error) {
	memberKey := normalize.MemberKey(userA, userB)
	filter := bson.M{"member_key": memberKey, "kind": ChatKindDirect}

	var existing Chat
	err := c.coll.FindOne(ctx, filter).Decode(&existing)
	if err == nil {
		return &existing, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	now := time.Now()
	chat := &Chat{
		Kind: ChatKindDirect,
		Participants: []Participant{
			{UserID: userA, Role: "member", JoinedAt: now},
			{UserID: userB, Role: "member", JoinedAt: now},
		},
		MemberKey: memberKey,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := c.coll.InsertOne(ctx, chat)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Lost the creation race; return the winner.
			var winner Chat
			if err := c.coll.FindOne(ctx, filter).Decode(&winner); err != nil {
				return nil, err
			}
			return &winner, nil
		}
		return nil, err
	}

	chat.ID = result.InsertedID.(bson.ObjectID)
	return chat, nil
}

// CreateGroup inserts a new group chat. There is no canonical-key step: every
// call produces a new chat. The creator is added as admin and duplicate
// participant ids are dropped.
func (c *ChatsStore) CreateGroup(ctx context.Context, name, creatorID string, participantIDs []string) (*Chat, error) {
	now := time.Now()
	participants := []Participant{{UserID: creatorID, Role: "admin", JoinedAt: now}}
	seen := map[string]bool{creatorID: true}
	for _, pid := range participantIDs {
		if seen[pid] {
			continue
		}
		seen[pid] = true
		participants = append(participants, Participant{UserID: pid, Role: "member", JoinedAt: now})
	}

	if name == "" {
		name = "New Group"
	}
	chat := &Chat{
		Kind:         ChatKindGroup,
		Name:         name,
		Participants: participants,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	result, err := c.coll.InsertOne(ctx, chat)
	if err != nil {
		return nil, err
	}

	chat.ID = result.InsertedID.(bson.ObjectID)
	return chat, nil
}

// SetLastMessage updates the denormalized last-message pointer on a chat.
// Best-effort: the pointer is an optimization for listings, so callers may
// log and ignore a failure.
func (c *ChatsStore) SetLastMessage(ctx context.Context, chatID string, lm LastMessage) error {
	oid, err := bson.ObjectIDFromHex(chatID)
	if err != nil {
		return ErrChatNotFound
	}

	update := bson.M{"$set": bson.M{"last_message": lm, "updated_at": time.Now()}}
	_, err = c.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	return err
}
