package data

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/kelechukwu/pingme/internal/db"
)

func setupDB(t *testing.T) *db.Client {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := db.New(ctx, uri)
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}

	// ensure clean collections in case previous runs left data
	_ = c.UsersCollection().Drop(ctx)
	_ = c.ChatsCollection().Drop(ctx)
	_ = c.MessagesCollection().Drop(ctx)

	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}

	return c
}

func TestUsersCreateAndGet(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	users := NewUsersStore(c.UsersCollection())

	ctx := context.Background()
	phone := "+1555" + time.Now().UTC().Format("0102150405")

	user, err := users.CreateUser(ctx, phone, "Alice", "hashed-password")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.Handle != "alice" {
		t.Fatalf("expected normalized handle alice, got %s", user.Handle)
	}

	// duplicate phone is rejected with the sentinel
	if _, err := users.CreateUser(ctx, phone, "Alice2", "other-hash"); !errors.Is(err, ErrPhoneRegistered) {
		t.Fatalf("expected ErrPhoneRegistered, got %v", err)
	}

	// lookup by phone with extra whitespace still resolves
	u2, err := users.GetByPhone(ctx, "  "+phone+"  ")
	if err != nil {
		t.Fatalf("GetByPhone failed: %v", err)
	}
	if u2.ID != user.ID {
		t.Fatalf("GetByPhone returned wrong user")
	}

	got, err := users.GetByID(ctx, user.ID.Hex())
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.PhoneNumber != user.PhoneNumber {
		t.Fatalf("GetByID returned wrong phone: %s", got.PhoneNumber)
	}

	if _, err := users.GetByID(ctx, "not-a-hex-id"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for malformed id, got %v", err)
	}
}

func TestUsersSearchAndHandles(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	users := NewUsersStore(c.UsersCollection())
	ctx := context.Background()

	var ids []string
	for i, name := range []string{"Bob", "Bobby", "Carol"} {
		u, err := users.CreateUser(ctx, fmt.Sprintf("+1555000%04d", i), name, "hash")
		if err != nil {
			t.Fatalf("CreateUser %s failed: %v", name, err)
		}
		ids = append(ids, u.ID.Hex())
	}

	// case-insensitive username match, excluding the caller
	found, err := users.Search(ctx, "bob", ids[0])
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(found) != 1 || found[0].Username != "Bobby" {
		t.Fatalf("expected only Bobby, got %d results", len(found))
	}

	all, err := users.List(ctx, ids[2])
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 users excluding caller, got %d", len(all))
	}

	// unknown handles are dropped, not errors
	resolved, err := users.FindByHandles(ctx, []string{"BOB", "nobody"})
	if err != nil {
		t.Fatalf("FindByHandles failed: %v", err)
	}
	if len(resolved) != 1 || resolved[0].Handle != "bob" {
		t.Fatalf("expected handle bob only, got %d results", len(resolved))
	}
}
