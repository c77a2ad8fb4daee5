package data

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestMessagesAppendIdempotent(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	msgs := NewMessagesStore(c.MessagesCollection())
	ctx := context.Background()

	chatID := bson.NewObjectID().Hex()
	alice := bson.NewObjectID().Hex()

	first, err := msgs.Append(ctx, chatID, "m1", alice, "text", "hi bob", nil)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// retry with the same identity converges on the stored document
	retry, err := msgs.Append(ctx, chatID, "m1", alice, "text", "hi bob", nil)
	if err != nil {
		t.Fatalf("Append retry failed: %v", err)
	}
	if retry.ID != first.ID {
		t.Fatalf("retry produced a different document: %s vs %s", retry.ID.Hex(), first.ID.Hex())
	}
	if !retry.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("retry changed CreatedAt")
	}

	// the same clientMsgId in another chat is a distinct message
	other, err := msgs.Append(ctx, bson.NewObjectID().Hex(), "m1", alice, "text", "different chat", nil)
	if err != nil {
		t.Fatalf("Append in other chat failed: %v", err)
	}
	if other.ID == first.ID {
		t.Fatalf("messages in different chats must not collide")
	}

	history, err := msgs.History(ctx, chatID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 message in chat, got %d", len(history))
	}
}

func TestMessagesAppendGeneratesID(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	msgs := NewMessagesStore(c.MessagesCollection())
	ctx := context.Background()

	m, err := msgs.Append(ctx, bson.NewObjectID().Hex(), "", bson.NewObjectID().Hex(), "", "no client id", nil)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if m.ClientMsgID == "" {
		t.Fatalf("expected a generated client message id")
	}
	if m.Type != "text" {
		t.Fatalf("expected default type text, got %s", m.Type)
	}
}

func TestMessagesDeliveryTracking(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	msgs := NewMessagesStore(c.MessagesCollection())
	ctx := context.Background()

	chatID := bson.NewObjectID().Hex()
	alice := bson.NewObjectID().Hex()
	bob := bson.NewObjectID().Hex()

	if _, err := msgs.Append(ctx, chatID, "m1", alice, "text", "hi", nil); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// pending excludes the sender's own messages
	if pending, err := msgs.PendingFor(ctx, chatID, alice); err != nil || len(pending) != 0 {
		t.Fatalf("sender should have no pending messages: n=%d err=%v", len(pending), err)
	}
	pending, err := msgs.PendingFor(ctx, chatID, bob)
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected 1 pending message for bob: n=%d err=%v", len(pending), err)
	}

	m, err := msgs.MarkDelivered(ctx, chatID, "m1", bob)
	if err != nil {
		t.Fatalf("MarkDelivered failed: %v", err)
	}
	if !m.DeliveredToContains(bob) {
		t.Fatalf("deliveredTo missing bob: %v", m.DeliveredTo)
	}

	// idempotent: a second ack does not grow the set
	m, err = msgs.MarkDelivered(ctx, chatID, "m1", bob)
	if err != nil {
		t.Fatalf("MarkDelivered retry failed: %v", err)
	}
	if len(m.DeliveredTo) != 1 {
		t.Fatalf("expected deliveredTo of size 1, got %v", m.DeliveredTo)
	}

	// delivered messages are no longer pending
	if pending, err := msgs.PendingFor(ctx, chatID, bob); err != nil || len(pending) != 0 {
		t.Fatalf("delivered message still pending: n=%d err=%v", len(pending), err)
	}

	if _, err := msgs.MarkDelivered(ctx, chatID, "no-such-message", bob); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestMessagesReadImpliesDelivered(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	msgs := NewMessagesStore(c.MessagesCollection())
	ctx := context.Background()

	chatID := bson.NewObjectID().Hex()
	alice := bson.NewObjectID().Hex()
	bob := bson.NewObjectID().Hex()

	if _, err := msgs.Append(ctx, chatID, "m1", alice, "text", "hi", nil); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// read ack with no prior delivered ack grows both sets
	m, err := msgs.MarkRead(ctx, chatID, "m1", bob)
	if err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if len(m.ReadBy) != 1 || m.ReadBy[0] != bob {
		t.Fatalf("expected readBy [%s], got %v", bob, m.ReadBy)
	}
	if !m.DeliveredToContains(bob) {
		t.Fatalf("read ack should imply delivered: %v", m.DeliveredTo)
	}
}

func TestMessagesHistoryOrder(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	msgs := NewMessagesStore(c.MessagesCollection())
	ctx := context.Background()

	chatID := bson.NewObjectID().Hex()
	alice := bson.NewObjectID().Hex()

	for _, id := range []string{"m1", "m2", "m3"} {
		if _, err := msgs.Append(ctx, chatID, id, alice, "text", id, nil); err != nil {
			t.Fatalf("Append %s failed: %v", id, err)
		}
	}

	history, err := msgs.History(ctx, chatID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}
	for i, want := range []string{"m1", "m2", "m3"} {
		if history[i].ClientMsgID != want {
			t.Fatalf("history out of order at %d: got %s want %s", i, history[i].ClientMsgID, want)
		}
	}
}
