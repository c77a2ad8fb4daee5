package data

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Chat kinds. Direct chats are deduplicated by member key; group chats are
// created unconditionally and never set a member key.
const (
	ChatKindDirect = "direct"
	ChatKindGroup  = "group"
)

// Sentinel errors shared by the stores. Handlers map these to user-visible
// failures; everything else is treated as a server error.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrPhoneRegistered = errors.New("phone number already registered")
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
)

// User maps to the users collection. PhoneNumber is unique; Handle is the
// normalized username used for @-mention resolution.
type User struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Username     string        `bson:"username"`
	Handle       string        `bson:"handle"`
	PhoneNumber  string        `bson:"phone_number"`
	PasswordHash string        `bson:"password_hash"`
	CreatedAt    time.Time     `bson:"created_at"`
}

// Participant is one member of a chat. UserID is the hex form of the user's
// ObjectID; all cross-collection references are stored as hex strings so the
// member key and ack sets compare as plain strings.
type Participant struct {
	UserID   string    `bson:"user_id" json:"userId"`
	Role     string    `bson:"role" json:"role"`
	JoinedAt time.Time `bson:"joined_at" json:"joinedAt"`
}

// LastMessage is the denormalized pointer kept on a chat. It is an
// optimization for chat listings, not authoritative state.
type LastMessage struct {
	MessageID string    `bson:"message_id" json:"messageId"`
	Text      string    `bson:"text" json:"text"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// Chat maps to the chats collection. MemberKey is set only for direct chats
// and is covered by a partial unique index on (member_key, kind).
type Chat struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Kind         string        `bson:"kind"`
	Name         string        `bson:"name,omitempty"`
	Participants []Participant `bson:"participants"`
	MemberKey    string        `bson:"member_key,omitempty"`
	LastMessage  *LastMessage  `bson:"last_message,omitempty"`
	CreatedAt    time.Time     `bson:"created_at"`
	UpdatedAt    time.Time     `bson:"updated_at"`
}

// HasParticipant reports whether the user belongs to the chat.
func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// ParticipantIDs returns the user ids of every participant, in order.
func (c *Chat) ParticipantIDs() []string {
	ids := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// Message maps to the messages collection. The (chat_id, client_msg_id) pair
// is the message identity and carries a unique index: retried appends resolve
// to the already-stored document. DeliveredTo and ReadBy only ever grow.
type Message struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	ClientMsgID string        `bson:"client_msg_id"`
	ChatID      string        `bson:"chat_id"`
	SenderID    string        `bson:"sender_id"`
	Type        string        `bson:"type"`
	Content     string        `bson:"content"`
	Mentions    []string      `bson:"mentions,omitempty"`
	CreatedAt   time.Time     `bson:"created_at"`
	DeliveredTo []string      `bson:"delivered_to"`
	ReadBy      []string      `bson:"read_by"`
}

// DeliveredToContains reports whether userID is already in the delivered set.
func (m *Message) DeliveredToContains(userID string) bool {
	for _, id := range m.DeliveredTo {
		if id == userID {
			return true
		}
	}
	return false
}
