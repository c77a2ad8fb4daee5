package mention

import (
	"context"
	"reflect"
	"testing"

	"github.com/kelechukwu/pingme/internal/data"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// fakeDirectory resolves handles from a fixed map of handle -> user.
type fakeDirectory struct {
	users map[string]*data.User
}

func (f *fakeDirectory) FindByHandles(ctx context.Context, handles []string) ([]*data.User, error) {
	var out []*data.User
	for _, h := range handles {
		if u, ok := f.users[h]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func TestExtract(t *testing.T) {
	cases := []struct {
		content string
		want    []string
	}{
		{"@alice hi", []string{"alice"}},
		{"hey @bob.c and @d-e_f2", []string{"bob.c", "d-e_f2"}},
		{"@alice @alice twice", []string{"alice"}},
		{"no mentions here", nil},
		{"mail me at a@b.c", []string{"b.c"}},
	}

	for _, c := range cases {
		got := Extract(c.content)
		if !reflect.DeepEqual(got, c.want) {
			t.Fatalf("Extract(%q) = %v, want %v", c.content, got, c.want)
		}
	}
}

func TestResolve_KnownHandle(t *testing.T) {
	aliceID := bson.NewObjectID()
	dir := &fakeDirectory{users: map[string]*data.User{
		"alice": {ID: aliceID, Username: "alice", Handle: "alice"},
	}}
	r := NewResolver(dir)

	ids, err := r.Resolve(context.Background(), "@alice hi")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != aliceID.Hex() {
		t.Fatalf("expected [%s], got %v", aliceID.Hex(), ids)
	}
}

func TestResolve_UnknownHandleDropped(t *testing.T) {
	r := NewResolver(&fakeDirectory{users: map[string]*data.User{}})

	ids, err := r.Resolve(context.Background(), "@nobody hi")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no mentions, got %v", ids)
	}
}
